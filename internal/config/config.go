package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/xypicmic/internal/eventsource"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/xypicmic.defaults.json"

// Config is the runtime configuration of the encoder. Every field is optional;
// the Get* methods supply the default for unset fields, so partial files are
// safe.
type Config struct {
	// Inputs
	TablePath *string `json:"table_path,omitempty"`

	// Processing
	Workers           *int  `json:"workers,omitempty"` // 0 means one per CPU
	VerifyRoundTrip   *bool `json:"verify_round_trip,omitempty"`
	MinActiveFamilies *int  `json:"min_active_families,omitempty"`
	Strict            *bool `json:"strict,omitempty"` // fail the run on the first rejected event
	LogDiagnostics    *bool `json:"log_diagnostics,omitempty"`

	// Outputs
	DBPath    *string `json:"db_path,omitempty"`
	ReportDir *string `json:"report_dir,omitempty"`

	// Serial readout
	Serial *eventsource.PortOptions `json:"serial,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable.
func (c *Config) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MinActiveFamilies != nil {
		if n := *c.MinActiveFamilies; n < 0 || n > 3 {
			return fmt.Errorf("min_active_families must be between 0 and 3, got %d", n)
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

// Merge overlays the fields set in o onto c.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	if o.TablePath != nil {
		c.TablePath = o.TablePath
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.VerifyRoundTrip != nil {
		c.VerifyRoundTrip = o.VerifyRoundTrip
	}
	if o.MinActiveFamilies != nil {
		c.MinActiveFamilies = o.MinActiveFamilies
	}
	if o.Strict != nil {
		c.Strict = o.Strict
	}
	if o.LogDiagnostics != nil {
		c.LogDiagnostics = o.LogDiagnostics
	}
	if o.DBPath != nil {
		c.DBPath = o.DBPath
	}
	if o.ReportDir != nil {
		c.ReportDir = o.ReportDir
	}
	if o.Serial != nil {
		c.Serial = o.Serial
	}
}

// SetTablePath sets the address table path.
func (c *Config) SetTablePath(p string) { c.TablePath = ptrString(p) }

// SetDBPath sets the sqlite store path.
func (c *Config) SetDBPath(p string) { c.DBPath = ptrString(p) }

// SetReportDir sets the report output directory.
func (c *Config) SetReportDir(p string) { c.ReportDir = ptrString(p) }

// SetWorkers sets the worker count.
func (c *Config) SetWorkers(n int) { c.Workers = ptrInt(n) }

// SetStrict sets strict mode.
func (c *Config) SetStrict(v bool) { c.Strict = ptrBool(v) }

// GetTablePath returns the address table path, or "" if unset.
func (c *Config) GetTablePath() string {
	if c.TablePath == nil {
		return ""
	}
	return *c.TablePath
}

// GetWorkers returns the worker count, one per CPU by default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetVerifyRoundTrip reports whether every encoding is decoded and compared.
func (c *Config) GetVerifyRoundTrip() bool {
	if c.VerifyRoundTrip == nil {
		return true
	}
	return *c.VerifyRoundTrip
}

// GetMinActiveFamilies returns how many families must have active lines for
// an event to be encoded. Events with fewer carry no usable intersection.
func (c *Config) GetMinActiveFamilies() int {
	if c.MinActiveFamilies == nil {
		return 2
	}
	return *c.MinActiveFamilies
}

// GetStrict reports whether a rejected event fails the run.
func (c *Config) GetStrict() bool {
	if c.Strict == nil {
		return false
	}
	return *c.Strict
}

// GetLogDiagnostics reports whether builder diagnostics are logged.
func (c *Config) GetLogDiagnostics() bool {
	if c.LogDiagnostics == nil {
		return true
	}
	return *c.LogDiagnostics
}

// GetDBPath returns the sqlite store path, or "" when storage is disabled.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetReportDir returns the report directory, or "" when no report is written.
func (c *Config) GetReportDir() string {
	if c.ReportDir == nil {
		return ""
	}
	return *c.ReportDir
}

// GetSerial returns the serial options with defaults applied.
func (c *Config) GetSerial() eventsource.PortOptions {
	var opts eventsource.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalized, err := opts.Normalize()
	if err != nil {
		return opts
	}
	return normalized
}

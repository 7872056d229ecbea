// Package db stores encoding runs and their encoded events in sqlite.
package db

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// pragmas are applied to every pooled connection.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

type DB struct {
	*sql.DB
}

// NewDB opens the sqlite database at path and migrates it to the latest
// schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Printf("initialized run database %s", path)
	return db, nil
}

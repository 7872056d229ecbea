package eventsource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// testPort implements Porter over a fixed string. Once the data is consumed
// it either reports EOF or blocks until closed, like an idle serial line.
type testPort struct {
	r      io.Reader
	block  bool
	closed chan struct{}
	once   sync.Once
}

func newTestPort(data string, block bool) *testPort {
	return &testPort{r: strings.NewReader(data), block: block, closed: make(chan struct{})}
}

func (p *testPort) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if err == io.EOF && p.block {
		<-p.closed
		return 0, io.EOF
	}
	return n, err
}

func (p *testPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func collect(ch chan string) []string {
	var out []string
	for line := range ch {
		out = append(out, line)
	}
	return out
}

func TestMuxLosslessDeliversAllLines(t *testing.T) {
	port := newTestPort("2 1 2 3 4\r\n# comment\n1 5 6\n", false)
	mux := NewMux(port, true)

	id, ch := mux.Subscribe()
	done := make(chan []string)
	go func() { done <- collect(ch) }()

	require.NoError(t, mux.Monitor(context.Background()))
	mux.Unsubscribe(id)

	assert.Equal(t, []string{"2 1 2 3 4", "# comment", "1 5 6"}, <-done)
}

func TestMuxMonitorCancel(t *testing.T) {
	port := newTestPort("1 0 0\n", true)
	mux := NewMux(port, false)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- mux.Monitor(ctx) }()

	select {
	case line := <-ch:
		assert.Equal(t, "1 0 0", line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())

	_, ok := <-ch
	assert.False(t, ok, "Close must close subscriber channels")
}

func TestMuxLosslessStalledSubscriber(t *testing.T) {
	data := strings.Repeat("1 0 0\n", 200)

	detach := map[string]func(mux *Mux[*testPort], id string){
		"unsubscribe": func(mux *Mux[*testPort], id string) { mux.Unsubscribe(id) },
		"close":       func(mux *Mux[*testPort], _ string) { _ = mux.Close() },
	}
	for name, fn := range detach {
		t.Run(name, func(t *testing.T) {
			mux := NewMux(newTestPort(data, false), true)
			id, ch := mux.Subscribe()

			errc := make(chan error, 1)
			go func() { errc <- mux.Monitor(context.Background()) }()

			// nobody reads ch, so Monitor stalls once the buffer is full
			require.Eventually(t, func() bool { return len(ch) == cap(ch) },
				2*time.Second, 5*time.Millisecond)

			returned := make(chan struct{})
			go func() {
				fn(mux, id)
				close(returned)
			}()
			select {
			case <-returned:
			case <-time.After(2 * time.Second):
				t.Fatal("detaching a stalled subscriber blocked")
			}

			select {
			case err := <-errc:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("Monitor did not finish after the subscriber left")
			}

			assert.Len(t, collect(ch), cap(ch))
			require.NoError(t, mux.Close())
		})
	}
}

func TestMuxUnsubscribeUnknown(t *testing.T) {
	mux := NewMux(newTestPort("", false), false)
	mux.Unsubscribe("missing")
	require.NoError(t, mux.Close())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2 3\n"), 0o644))

	mux, err := OpenFile(path)
	require.NoError(t, err)
	defer mux.Close()

	_, ch := mux.Subscribe()
	done := make(chan []string)
	go func() { done <- collect(ch) }()
	require.NoError(t, mux.Monitor(context.Background()))
	require.NoError(t, mux.Close())
	assert.Equal(t, []string{"1 2 3"}, <-done)

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{Parity: "O", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, serial.OddParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	_, err = PortOptions{DataBits: 4}.SerialMode()
	assert.Error(t, err)
}

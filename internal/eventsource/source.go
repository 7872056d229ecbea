// Package eventsource delivers raw event-log lines from a serial readout board
// or a file to any number of subscribers.
package eventsource

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Source is a line source with multiple subscribers.
type Source interface {
	// Subscribe creates a new channel receiving lines from the source. The ID
	// identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes and closes a channel.
	Unsubscribe(string)
	// Monitor reads lines until the source is exhausted or ctx is done.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the underlying port.
	Close() error
}

// subscriber is one receiving channel. done is closed before ch so a send
// blocked on a stalled reader gives up before ch is closed.
type subscriber struct {
	ch     chan string
	done   chan struct{}
	sendMu sync.Mutex
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan string, 64), done: make(chan struct{})}
}

func (sub *subscriber) send(ctx context.Context, line string, lossless bool) error {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	if sub.closed {
		return nil
	}
	if lossless {
		select {
		case sub.ch <- line:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	select {
	case sub.ch <- line:
	default:
		// subscriber not ready; skip so the port keeps draining
	}
	return nil
}

func (sub *subscriber) close() {
	close(sub.done)
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()
	sub.closed = true
	close(sub.ch)
}

// Mux fans lines read from a Porter out to subscribers.
type Mux[T Porter] struct {
	port         T
	lossless     bool
	subscribers  map[string]*subscriber
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// NewMux creates a Mux reading from port. A lossless Mux blocks until every
// subscriber has taken each line; otherwise lines are dropped for subscribers
// that are not ready, as a live serial stream cannot be paused.
func NewMux[T Porter](port T, lossless bool) *Mux[T] {
	return &Mux[T]{
		port:        port,
		lossless:    lossless,
		subscribers: make(map[string]*subscriber),
	}
}

// OpenSerial opens a serial port at path and wraps it in a lossy Mux.
func OpenSerial(path string, opts PortOptions) (*Mux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return NewMux[serial.Port](port, false), nil
}

// OpenFile opens an event log on disk and wraps it in a lossless Mux.
func OpenFile(path string) (*Mux[*os.File], error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return NewMux(f, true), nil
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Mux[T]) Subscribe() (string, chan string) {
	id := randomID()
	sub := newSubscriber()
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber from the mux and closes its channel. It
// does not wait for the subscriber to drain.
func (s *Mux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	sub, ok := s.subscribers[id]
	delete(s.subscribers, id)
	s.subscriberMu.Unlock()
	if ok {
		sub.close()
	}
}

// Monitor reads lines from the port and sends them to subscribers. It returns
// nil when the port reaches EOF and ctx.Err() on cancellation.
func (s *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the loop below can
	// still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- strings.TrimRight(scan.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			if err := s.publish(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (s *Mux[T]) publish(ctx context.Context, line string) error {
	s.subscriberMu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscriberMu.Unlock()

	for _, sub := range subs {
		if err := sub.send(ctx, line, s.lossless); err != nil {
			return err
		}
	}
	return nil
}

func (s *Mux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

func (s *Mux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	subs := s.subscribers
	s.subscribers = make(map[string]*subscriber)
	s.subscriberMu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return s.port.Close()
}

var _ Source = (*Mux[*os.File])(nil)

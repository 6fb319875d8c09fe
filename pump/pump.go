// mjpeg-recorder - capture JPEG video from COACH 10P USB cameras
//  Copyright (C) 2021, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package pump keeps a single bulk read outstanding against a
// transport for as long as it is armed, handing every completed read
// to a handler.
package pump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	tomb "gopkg.in/tomb.v2"
)

var (
	// ErrRemoved is returned by Start when the device has gone away.
	ErrRemoved = errors.New("device removed")

	// ErrShutdown is returned by a Transport read when the transport
	// has been shut down for good. It stops the pump.
	ErrShutdown = errors.New("transport shut down")
)

const errorBackoff = 10 * time.Millisecond

// Chunk is the result of one completed read. Data is only valid for
// the duration of the Handler call.
type Chunk struct {
	Data []byte
	// Short is set when the read returned fewer bytes than requested,
	// which marks the end of a frame.
	Short bool
}

// Transport is the bulk data source the pump reads from.
type Transport interface {
	// Read blocks until a read of up to len(buf) bytes completes or
	// ctx is cancelled.
	Read(ctx context.Context, buf []byte) (int, error)
	// SetStreaming asks the sensor to start or stop streaming.
	SetStreaming(on bool) error
	Removed() bool
}

// Handler receives chunks on the pump goroutine. It must not block.
type Handler func(Chunk)

// ErrorReporter is told about runs of consecutive transport errors.
type ErrorReporter interface {
	ReportTransportErrors(consecutive int, total uint64, err error)
}

// State is the connection state of the pump.
type State int

const (
	Idle State = iota
	Armed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Pump drives reads against a Transport.
type Pump struct {
	errors uint64

	transport Transport
	size      int
	handler   Handler

	reporter    ErrorReporter
	reportEvery int

	mu    sync.Mutex
	state State
	tomb  *tomb.Tomb
}

// New returns an idle pump which issues reads of size bytes.
func New(transport Transport, size int, handler Handler) *Pump {
	return &Pump{
		transport:   transport,
		size:        size,
		handler:     handler,
		reportEvery: 1,
	}
}

// SetErrorReporter sets where runs of transport errors are reported.
// The reporter is called after every `every` consecutive errors.
func (p *Pump) SetErrorReporter(r ErrorReporter, every int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if every < 1 {
		every = 1
	}
	p.reporter = r
	p.reportEvery = every
}

// Start enables streaming on the sensor and arms the read loop. It is
// a no-op if the pump is already armed and still running.
func (p *Pump) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Armed {
		select {
		case <-p.tomb.Dead():
			// The loop died on its own. Clean up and rearm.
			p.tomb = nil
			p.state = Stopped
		default:
			return nil
		}
	}

	if p.transport.Removed() {
		return ErrRemoved
	}
	if err := p.transport.SetStreaming(true); err != nil {
		return err
	}

	t, ctx := tomb.WithContext(context.Background())
	reporter, every := p.reporter, p.reportEvery
	t.Go(func() error {
		return p.loop(t, ctx, reporter, every)
	})
	p.tomb = t
	p.state = Armed
	return nil
}

// Stop cancels any in-flight read, waits for the read loop to exit
// and disables streaming on the sensor. Once Stop returns no more
// chunks are delivered. Calling Stop more than once is harmless.
func (p *Pump) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Armed {
		if p.state == Idle {
			p.state = Stopped
		}
		return nil
	}
	p.state = Stopped
	p.tomb.Kill(nil)
	p.tomb.Wait()

	if p.transport.Removed() {
		return nil
	}
	return p.transport.SetStreaming(false)
}

// State returns the current connection state.
func (p *Pump) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dying returns a channel which is closed when the current read loop
// stops, whether through Stop or because the transport shut down. It
// returns nil if the pump has never been started.
func (p *Pump) Dying() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tomb == nil {
		return nil
	}
	return p.tomb.Dying()
}

// Err returns the reason the last read loop stopped, or nil.
func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tomb == nil {
		return nil
	}
	select {
	case <-p.tomb.Dead():
		return p.tomb.Err()
	default:
		return nil
	}
}

// Errors returns the number of transport errors seen so far.
func (p *Pump) Errors() uint64 {
	return atomic.LoadUint64(&p.errors)
}

func (p *Pump) loop(t *tomb.Tomb, ctx context.Context, reporter ErrorReporter, every int) error {
	buf := make([]byte, p.size)
	consecutive := 0
	for {
		n, err := p.transport.Read(ctx, buf)

		// A read completing after Stop is dropped.
		select {
		case <-t.Dying():
			return tomb.ErrDying
		default:
		}

		if err != nil {
			if err == ErrShutdown {
				return err
			}
			total := atomic.AddUint64(&p.errors, 1)
			consecutive++
			if reporter != nil && consecutive%every == 0 {
				reporter.ReportTransportErrors(consecutive, total, err)
			}
			select {
			case <-t.Dying():
				return tomb.ErrDying
			case <-time.After(errorBackoff):
			}
			continue
		}
		consecutive = 0
		p.handler(Chunk{Data: buf[:n], Short: n < len(buf)})
	}
}

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

// Package handoff passes completed frames from the capture goroutine
// to consumer supplied capture buffers.
package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBufferTooSmall is returned when a request can't hold a frame of
// the maximum size.
var ErrBufferTooSmall = errors.New("capture buffer smaller than maximum frame size")

// ErrRequestBusy is returned when a request is queued again before it
// has been filled and reset.
var ErrRequestBusy = errors.New("capture buffer already queued or not reset")

// Request states. A request moves idle -> queued -> filled and only
// Reset takes it back to idle.
const (
	reqIdle uint32 = iota
	reqQueued
	reqFilled
)

// Request is a capture buffer queued by a consumer. Once it has been
// filled its Done channel is closed.
type Request struct {
	buf       []byte
	n         int
	sequence  uint64
	timestamp time.Time
	done      chan struct{}
	state     uint32
}

// NewRequest allocates a request with a buffer of size bytes.
func NewRequest(size int) *Request {
	return &Request{
		buf:  make([]byte, size),
		done: make(chan struct{}),
	}
}

// Bytes returns the frame held by the request.
func (r *Request) Bytes() []byte {
	return r.buf[:r.n]
}

func (r *Request) Sequence() uint64 {
	return r.sequence
}

func (r *Request) Timestamp() time.Time {
	return r.timestamp
}

// Done is closed when the request has been filled.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Reset readies a filled request to be queued again. It does nothing
// to a request which hasn't been filled.
func (r *Request) Reset() {
	if atomic.LoadUint32(&r.state) != reqFilled {
		return
	}
	r.n = 0
	r.sequence = 0
	r.timestamp = time.Time{}
	r.done = make(chan struct{})
	atomic.StoreUint32(&r.state, reqIdle)
}

// ReadyFunc is called after each frame is delivered.
type ReadyFunc func(sequence uint64, timestamp time.Time, n int)

// Queue holds the requests waiting for a frame and the requests which
// have been filled but not yet collected. A single mutex covers both
// lists and the marking of a request as ready.
type Queue struct {
	minSize int
	now     func() time.Time

	mu      sync.Mutex
	active  []*Request
	ready   []*Request
	onReady ReadyFunc
	notify  chan struct{}
}

// NewQueue returns a queue which accepts requests of at least
// minSize bytes.
func NewQueue(minSize int) *Queue {
	return &Queue{
		minSize: minSize,
		now:     time.Now,
		notify:  make(chan struct{}, 1),
	}
}

// OnFrameReady sets a hook called after each delivery. It runs on the
// delivering goroutine and must not block.
func (q *Queue) OnFrameReady(f ReadyFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onReady = f
}

// Enqueue adds a request to the back of the queue. A request which
// is already queued, or was filled and not reset, is rejected with
// ErrRequestBusy.
func (q *Queue) Enqueue(r *Request) error {
	if len(r.buf) < q.minSize {
		return ErrBufferTooSmall
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !atomic.CompareAndSwapUint32(&r.state, reqIdle, reqQueued) {
		return ErrRequestBusy
	}
	q.active = append(q.active, r)
	return nil
}

// Deliver copies frame into the oldest queued request and marks it
// ready. It never blocks. If no request is queued the frame is
// dropped and false is returned.
func (q *Queue) Deliver(frame []byte, sequence uint64) bool {
	q.mu.Lock()
	if len(q.active) == 0 {
		q.mu.Unlock()
		return false
	}
	r := q.active[0]
	q.active[0] = nil
	q.active = q.active[1:]

	n := copy(r.buf, frame)
	ts := q.now()
	r.n = n
	r.sequence = sequence
	r.timestamp = ts
	done := r.done
	atomic.StoreUint32(&r.state, reqFilled)
	q.ready = append(q.ready, r)
	close(done)
	q.signal()

	onReady := q.onReady
	q.mu.Unlock()

	// The consumer may already own r, so only locals are passed on.
	if onReady != nil {
		onReady(sequence, ts, n)
	}
	return true
}

// TryTakeReady returns the oldest filled request, or nil if there
// isn't one.
func (q *Queue) TryTakeReady() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil
	}
	r := q.ready[0]
	q.ready[0] = nil
	q.ready = q.ready[1:]
	if len(q.ready) > 0 {
		q.signal()
	}
	return r
}

// WaitReady blocks until a filled request is available or ctx is
// done.
func (q *Queue) WaitReady(ctx context.Context) (*Request, error) {
	for {
		if r := q.TryTakeReady(); r != nil {
			return r, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drain removes and returns every request still waiting for a frame.
// The returned requests may be queued again.
func (q *Queue) Drain() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.active
	q.active = nil
	for _, r := range drained {
		atomic.StoreUint32(&r.state, reqIdle)
	}
	return drained
}

// Pending returns the number of requests waiting for a frame.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

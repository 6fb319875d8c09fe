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

package capture

import (
	"time"

	"github.com/TheCacophonyProject/mjpeg-recorder/handoff"
	"github.com/TheCacophonyProject/mjpeg-recorder/jfif"
	"github.com/TheCacophonyProject/mjpeg-recorder/loglimiter"
	"github.com/TheCacophonyProject/mjpeg-recorder/pump"
)

const logInterval = 30 * time.Second

// Reassembler turns the chunks delivered by the pump into complete
// JPEG frames. A frame ends with the first short chunk. All methods
// except SetDimensions run on the pump goroutine.
type Reassembler struct {
	ring  *frameRing
	acq   *Acquisition
	stats *Stats
	queue *handoff.Queue
	dims  jfif.Dimensions
	log   *loglimiter.LogLimiter
}

// NewReassembler allocates slots frame buffers of maxFrameSize bytes.
func NewReassembler(slots, maxFrameSize int, acq *Acquisition, stats *Stats, queue *handoff.Queue) *Reassembler {
	return &Reassembler{
		ring:  newFrameRing(slots, maxFrameSize),
		acq:   acq,
		stats: stats,
		queue: queue,
		log:   loglimiter.New(logInterval),
	}
}

// SetDimensions sets the dimensions written into each frame header.
// It must only be called while the pump is stopped.
func (r *Reassembler) SetDimensions(dims jfif.Dimensions) {
	r.dims = dims
}

// headerDims returns the dimensions written into each frame header.
func (r *Reassembler) headerDims() jfif.Dimensions {
	return r.dims
}

// Process handles one chunk. It never blocks.
func (r *Reassembler) Process(chunk pump.Chunk) {
	if r.acq.takeReset() {
		r.ring.reset()
	}

	s := r.ring.cur()
	data := chunk.Data
	if s.state == slotIdle {
		if len(data) < jfif.MetadataLen {
			r.stats.inc(&r.stats.c.Runts)
			r.log.Printf("ignoring %d byte chunk at start of frame", len(data))
			return
		}
		s.begin()
		s.size = jfif.BuildHeader(s.buf, data[:jfif.MetadataLen], r.dims)
		data = data[jfif.MetadataLen:]
	}

	if s.write(data) {
		r.stats.inc(&r.stats.c.Oversize)
		r.log.Printf("frame larger than %d bytes, truncating", len(s.buf))
	}

	if chunk.Short {
		r.endFrame()
	}
}

func (r *Reassembler) endFrame() {
	s := r.ring.complete()
	defer r.ring.release()

	if !r.acq.Acquiring() {
		r.stats.inc(&r.stats.c.Discarded)
		return
	}

	sequence := r.acq.nextFrame()
	r.stats.inc(&r.stats.c.Frames)
	frame := s.bytes()

	switch jfif.Scan(frame) {
	case jfif.Bogus:
		r.stats.inc(&r.stats.c.Bogus)
		r.log.Printf("dropping bogus frame (%d bytes)", len(frame))
		return
	case jfif.NoEOI:
		r.stats.inc(&r.stats.c.NoEOI)
		r.log.Print("frame has no EOI marker")
	}

	if r.acq.consumeSkip() {
		r.stats.inc(&r.stats.c.Skipped)
		return
	}

	if r.queue.Deliver(frame, sequence) {
		r.stats.inc(&r.stats.c.Delivered)
	} else {
		r.stats.inc(&r.stats.c.Dropped)
	}
}

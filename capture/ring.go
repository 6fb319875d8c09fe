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

type slotState int

const (
	slotIdle slotState = iota
	slotCollecting
)

// slot holds one frame while it is being collected.
type slot struct {
	state     slotState
	buf       []byte
	size      int
	truncated bool
}

func (s *slot) begin() {
	s.state = slotCollecting
	s.size = 0
	s.truncated = false
}

// write appends data, discarding anything past the end of the buffer.
// It returns true the first time a frame is truncated.
func (s *slot) write(data []byte) bool {
	n := copy(s.buf[s.size:], data)
	s.size += n
	if n < len(data) && !s.truncated {
		s.truncated = true
		return true
	}
	return false
}

func (s *slot) bytes() []byte {
	return s.buf[:s.size]
}

// frameRing is a fixed set of frame slots. Only the current slot is
// ever collecting. A completed slot is resolved before the next chunk
// is processed.
type frameRing struct {
	slots     []slot
	current   int
	completed int
}

func newFrameRing(count, capacity int) *frameRing {
	r := &frameRing{
		slots:     make([]slot, count),
		completed: -1,
	}
	for i := range r.slots {
		r.slots[i].buf = make([]byte, capacity)
	}
	return r
}

func (r *frameRing) cur() *slot {
	return &r.slots[r.current]
}

// complete marks the current slot as completed and moves on to the
// next slot.
func (r *frameRing) complete() *slot {
	r.completed = r.current
	r.current = (r.current + 1) % len(r.slots)
	return &r.slots[r.completed]
}

// release returns the completed slot to idle.
func (r *frameRing) release() {
	if r.completed < 0 {
		return
	}
	r.slots[r.completed].state = slotIdle
	r.completed = -1
}

func (r *frameRing) reset() {
	for i := range r.slots {
		r.slots[i].state = slotIdle
		r.slots[i].size = 0
		r.slots[i].truncated = false
	}
	r.current = 0
	r.completed = -1
}

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

import "sync/atomic"

// Counters is a snapshot of the session counters.
type Counters struct {
	Frames          uint64
	Delivered       uint64
	Dropped         uint64
	Skipped         uint64
	Bogus           uint64
	NoEOI           uint64
	Oversize        uint64
	Runts           uint64
	Discarded       uint64
	TransportErrors uint64

	// Frames still to be skipped since acquisition started.
	SkipRemaining uint64
}

// Stats counts per-frame outcomes. Counters are updated on the pump
// goroutine and may be read from anywhere.
type Stats struct {
	c Counters
}

func (s *Stats) inc(counter *uint64) {
	atomic.AddUint64(counter, 1)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Counters {
	return Counters{
		Frames:    atomic.LoadUint64(&s.c.Frames),
		Delivered: atomic.LoadUint64(&s.c.Delivered),
		Dropped:   atomic.LoadUint64(&s.c.Dropped),
		Skipped:   atomic.LoadUint64(&s.c.Skipped),
		Bogus:     atomic.LoadUint64(&s.c.Bogus),
		NoEOI:     atomic.LoadUint64(&s.c.NoEOI),
		Oversize:  atomic.LoadUint64(&s.c.Oversize),
		Runts:     atomic.LoadUint64(&s.c.Runts),
		Discarded: atomic.LoadUint64(&s.c.Discarded),
	}
}

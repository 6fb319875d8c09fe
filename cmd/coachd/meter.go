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

package main

import (
	"sync"
	"time"
)

// frameMeter follows the frames handed off by the capture goroutine.
// The largest frame seen helps size max-frame-size.
type frameMeter struct {
	mu       sync.Mutex
	sequence uint64
	size     int
	maxSize  int
	at       time.Time
}

// frameReady is called on the capture goroutine and must not block
// for long.
func (m *frameMeter) frameReady(sequence uint64, ts time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = sequence
	m.size = n
	if n > m.maxSize {
		m.maxSize = n
	}
	m.at = ts
}

// lastFrame returns when the last frame was handed off, or the zero
// time if none has been.
func (m *frameMeter) lastFrame() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at
}

func (m *frameMeter) addStats(stats map[string]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats["last-sequence"] = m.sequence
	stats["last-frame-bytes"] = uint64(m.size)
	stats["max-frame-bytes"] = uint64(m.maxSize)
}

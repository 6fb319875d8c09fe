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

// Acquisition holds the start/stop state of a capture session. It is
// written by the control surface and read on the pump goroutine.
type Acquisition struct {
	// Accessed atomically; kept first for 64-bit alignment on ARM.
	frameCount uint64

	acquiring    int32
	resetPending int32
	skip         int32
}

// Start zeroes the frame counter, sets the number of frames to skip
// and begins acquiring. The frame ring is reset before the next chunk
// is processed.
func (a *Acquisition) Start(skip int) {
	atomic.StoreUint64(&a.frameCount, 0)
	atomic.StoreInt32(&a.skip, int32(skip))
	atomic.StoreInt32(&a.resetPending, 1)
	atomic.StoreInt32(&a.acquiring, 1)
}

// Stop stops acquiring. A frame in progress is discarded at its next
// boundary.
func (a *Acquisition) Stop() {
	atomic.StoreInt32(&a.acquiring, 0)
}

func (a *Acquisition) Acquiring() bool {
	return atomic.LoadInt32(&a.acquiring) == 1
}

// FrameCount returns the number of frames completed since Start.
func (a *Acquisition) FrameCount() uint64 {
	return atomic.LoadUint64(&a.frameCount)
}

// SkipRemaining returns how many more frames will be skipped.
func (a *Acquisition) SkipRemaining() int {
	return int(atomic.LoadInt32(&a.skip))
}

// nextFrame counts a completed frame and returns its sequence number.
func (a *Acquisition) nextFrame() uint64 {
	return atomic.AddUint64(&a.frameCount, 1) - 1
}

// consumeSkip returns true if the current frame should be skipped.
func (a *Acquisition) consumeSkip() bool {
	for {
		s := atomic.LoadInt32(&a.skip)
		if s <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&a.skip, s, s-1) {
			return true
		}
	}
}

func (a *Acquisition) takeReset() bool {
	return atomic.CompareAndSwapInt32(&a.resetPending, 1, 0)
}

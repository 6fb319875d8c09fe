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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquisitionStart(t *testing.T) {
	a := new(Acquisition)
	assert.False(t, a.Acquiring())

	a.Start(2)
	assert.True(t, a.Acquiring())
	assert.Equal(t, 2, a.SkipRemaining())
	assert.True(t, a.takeReset())
	assert.False(t, a.takeReset())

	assert.Equal(t, uint64(0), a.nextFrame())
	assert.Equal(t, uint64(1), a.nextFrame())
	assert.Equal(t, uint64(2), a.FrameCount())

	a.Start(1)
	assert.Equal(t, uint64(0), a.FrameCount())
	assert.Equal(t, 1, a.SkipRemaining())
}

func TestAcquisitionSkip(t *testing.T) {
	a := new(Acquisition)
	a.Start(2)

	assert.True(t, a.consumeSkip())
	assert.True(t, a.consumeSkip())
	assert.False(t, a.consumeSkip())
	assert.Equal(t, 0, a.SkipRemaining())
}

func TestAcquisitionStop(t *testing.T) {
	a := new(Acquisition)
	a.Start(0)
	a.nextFrame()
	a.Stop()

	assert.False(t, a.Acquiring())
	assert.Equal(t, uint64(1), a.FrameCount())

	// Stopping twice is fine.
	a.Stop()
	assert.False(t, a.Acquiring())
}

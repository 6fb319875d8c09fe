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

package coach

import (
	"math"
	"time"
)

// Format is a streaming mode supported by the sensor.
type Format struct {
	Width  uint16
	Height uint16
	// Ratio is the nominal compression ratio of the mode.
	Ratio       uint16
	MinInterval time.Duration
	MaxInterval time.Duration
}

const maxInterval = 2 * time.Second

// Formats lists the supported modes, smallest first.
var Formats = []Format{
	{320, 240, 12, 33333300 * time.Nanosecond, maxInterval},
	{640, 480, 12, 33333300 * time.Nanosecond, maxInterval},
	{960, 720, 16, 33333300 * time.Nanosecond, maxInterval},
	{1024, 576, 16, 33333300 * time.Nanosecond, maxInterval},
	{1024, 768, 16, 40000000 * time.Nanosecond, maxInterval},
	{1280, 720, 16, 66666700 * time.Nanosecond, maxInterval},
	{1280, 960, 16, 83333300 * time.Nanosecond, maxInterval},
}

// ClosestFormat returns the largest supported mode which fits within
// the requested size. Anything at or below 320x240 in either
// dimension gets the smallest mode.
func ClosestFormat(width, height int) Format {
	if width <= 320 || height <= 240 {
		return Formats[0]
	}
	for i := len(Formats) - 1; i >= 0; i-- {
		f := Formats[i]
		if width >= int(f.Width) && height >= int(f.Height) {
			return f
		}
	}
	return Formats[0]
}

// StreamCompressionRatio is the compression ratio the sensor is asked
// to use when streaming this mode.
func (f Format) StreamCompressionRatio() uint16 {
	if f.Width > 640 || f.Height > 480 {
		return 20
	}
	return 16
}

// MaxFrameRate is the highest frame rate the mode supports.
func (f Format) MaxFrameRate() int {
	return int(math.Round(float64(time.Second) / float64(f.MinInterval)))
}

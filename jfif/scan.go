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

package jfif

// Result is the outcome of scanning a completed frame.
type Result int

const (
	// Clean frames end in a recognisable end of image marker.
	Clean Result = iota
	// NoEOI frames have no end of image marker. They are still
	// forwarded since the camera often omits it.
	NoEOI
	// Bogus frames carry the filler run the COACH firmware emits when
	// a frame has been corrupted in the sensor, or are too short to
	// hold anything at all.
	Bogus
)

func (r Result) String() string {
	switch r {
	case Clean:
		return "clean"
	case NoEOI:
		return "no EOI"
	case Bogus:
		return "bogus"
	}
	return "unknown"
}

// ScanWindow is the number of bytes matched at each scan position.
const ScanWindow = 3

// Scan looks backwards through frame for the end of image marker
// followed by the start of the next marker (FF D9 FF), then keeps
// going backwards looking for a run of three 0xFF filler bytes.
//
// This heuristic is specific to the COACH 10P firmware. It is not a
// general JPEG integrity check. The frame is never modified.
func Scan(frame []byte) Result {
	if len(frame) < ScanWindow {
		return Bogus
	}

	i := len(frame) - ScanWindow
	for ; i > 0; i-- {
		if frame[i] == 0xFF && frame[i+1] == 0xD9 && frame[i+2] == 0xFF {
			break
		}
	}
	if i == 0 {
		return NoEOI
	}

	for ; i > 0; i-- {
		if frame[i] == 0xFF && frame[i+1] == 0xFF && frame[i+2] == 0xFF {
			return Bogus
		}
	}
	return Clean
}

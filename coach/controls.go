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

// Control is a user adjustable sensor setting.
type Control struct {
	Name    string
	Param   Param
	Min     int32
	Max     int32
	Default int32
}

// InRange reports whether v is an acceptable value for the control.
func (c Control) InRange(v int32) bool {
	return v >= c.Min && v <= c.Max
}

var Controls = []Control{
	{Name: "brightness", Param: ParamBrightness, Min: 0, Max: 15, Default: 7},
	{Name: "auto-focus", Param: ParamAutoFocus, Min: 0, Max: 1},
	{Name: "sensor-flip", Param: ParamSensorFlip, Min: 0, Max: 1},
	{Name: "zoom-in", Param: ParamZoomIn, Min: 0, Max: 1},
	{Name: "zoom-out", Param: ParamZoomOut, Min: 0, Max: 1},
}

// LookupControl finds a control by name.
func LookupControl(name string) (Control, bool) {
	for _, c := range Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

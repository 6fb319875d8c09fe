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
	"errors"
	"fmt"
)

var (
	// ErrStreaming is returned when the format is changed while
	// acquiring.
	ErrStreaming = errors.New("can't change format while streaming")

	ErrOutOfRange     = errors.New("value out of range")
	ErrUnknownControl = errors.New("unknown control")
)

// TransportError is a failure to start or stop the transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConfigError is a failed control request to the sensor.
type ConfigError struct {
	Param string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuring %s: %v", e.Param, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// mjpeg-recorder - capture JPEG video from COACH 10P USB cameras
//  Copyright (C) 2018, The Cacophony Project
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

package recorder

import (
	"errors"

	"github.com/TheCacophonyProject/window"
)

type RecorderConfig struct {
	MinSecs     int              `yaml:"min-secs"`
	MaxSecs     int              `yaml:"max-secs"`
	WindowStart window.TimeOfDay `yaml:"window-start"`
	WindowEnd   window.TimeOfDay `yaml:"window-end"`
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		MinSecs: 10,
		MaxSecs: 60,
	}
}

func (conf *RecorderConfig) Validate() error {
	if !conf.WindowStart.IsZero() && conf.WindowEnd.IsZero() {
		return errors.New("window-start is set but window-end isn't")
	}
	if conf.WindowStart.IsZero() && !conf.WindowEnd.IsZero() {
		return errors.New("window-end is set but window-start isn't")
	}
	if conf.MaxSecs < conf.MinSecs {
		return errors.New("max-secs should be larger than min-secs")
	}
	if conf.MaxSecs < 1 {
		return errors.New("max-secs must be at least 1")
	}
	return nil
}

// Window returns the daily recording window. Without a configured
// window recording is always allowed.
func (conf *RecorderConfig) Window() *window.Window {
	return window.New(conf.WindowStart.Time, conf.WindowEnd.Time)
}

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
	"log"

	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
)

type formatSetter interface {
	Acquiring() bool
	StopAcquisition() error
	SetDimensions(width, height int) (coach.Format, error)
	StartAcquisition() error
}

// setFormat reconfigures the frame size. The camera only accepts a new
// size while it isn't streaming so acquisition is stopped first and
// restarted afterwards if it was running.
func setFormat(s formatSetter, width, height int) (coach.Format, error) {
	restart := s.Acquiring()
	if err := s.StopAcquisition(); err != nil {
		return coach.Format{}, err
	}

	f, err := s.SetDimensions(width, height)
	if err != nil {
		return coach.Format{}, err
	}
	log.Printf("frame size set to %dx%d", f.Width, f.Height)

	if restart {
		if err := s.StartAcquisition(); err != nil {
			return coach.Format{}, err
		}
	}
	return f, nil
}

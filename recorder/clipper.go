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

package recorder

import (
	"log"

	"github.com/TheCacophonyProject/window"
)

// Clipper splits a continuous stream of frames into clips no longer
// than the configured maximum. Frames arriving outside the recording
// window end any clip in progress and are otherwise ignored.
type Clipper struct {
	recorder  Recorder
	window    *window.Window
	maxFrames int
	frames    int
	recording bool
}

func NewClipper(rec Recorder, conf RecorderConfig, fps int) *Clipper {
	return &Clipper{
		recorder:  rec,
		window:    conf.Window(),
		maxFrames: conf.MaxSecs * fps,
	}
}

func (c *Clipper) WriteFrame(frame []byte) error {
	if !c.window.Active() {
		return c.Stop()
	}

	if !c.recording {
		if err := c.recorder.CheckCanRecord(); err != nil {
			return err
		}
		if err := c.recorder.StartRecording(); err != nil {
			return err
		}
		c.recording = true
		c.frames = 0
	}

	if err := c.recorder.WriteFrame(frame); err != nil {
		return err
	}
	c.frames++
	if c.frames >= c.maxFrames {
		log.Printf("clip reached %d frames", c.frames)
		return c.Stop()
	}
	return nil
}

// Recording reports whether a clip is in progress.
func (c *Clipper) Recording() bool {
	return c.recording
}

// Stop ends the clip in progress, if any.
func (c *Clipper) Stop() error {
	if !c.recording {
		return nil
	}
	c.recording = false
	c.frames = 0
	return c.recorder.StopRecording()
}

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
	"io"
	"log"
	"net"
	"time"

	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
	"github.com/TheCacophonyProject/mjpeg-recorder/headers"
	"github.com/TheCacophonyProject/mjpeg-recorder/loglimiter"
	"github.com/TheCacophonyProject/mjpeg-recorder/output"
	"github.com/TheCacophonyProject/mjpeg-recorder/recorder"
	"github.com/TheCacophonyProject/mjpeg-recorder/throttle"
)

const (
	brand = "coach"
	model = "10P"

	notifySecs = 5
)

// frameConsumer takes each frame the camera produces and passes it
// to the frame socket and the clip recorder.
type frameConsumer struct {
	conf        *Config
	dial        func(path string) (io.WriteCloser, error)
	notify      func()
	notifyEvery int
	notifyCount int
	log         *loglimiter.LogLimiter

	conn    io.WriteCloser
	out     *output.Writer
	format  coach.Format
	clipper *recorder.Clipper
	snap    *snapshotter
}

func newFrameConsumer(conf *Config, snap *snapshotter) *frameConsumer {
	c := &frameConsumer{
		conf:        conf,
		snap:        snap,
		dial:        dialFrameOutput,
		notify:      func() { daemon.SdNotify(false, "WATCHDOG=1") },
		notifyEvery: notifySecs * conf.FrameRate,
		log:         loglimiter.New(time.Minute),
	}
	if conf.OutputDir != "" {
		var rec recorder.Recorder = recorder.NewFileRecorder(conf.OutputDir, conf.MinDiskSpace)
		if conf.Throttler.ApplyThrottling {
			rec = throttle.NewThrottledRecorder(
				rec,
				&conf.Throttler,
				conf.Recorder.MinSecs,
				conf.FrameRate,
				throttle.NewThrottledEventRecorder(),
			)
		}
		c.clipper = recorder.NewClipper(rec, conf.Recorder, conf.FrameRate)
	}
	return c
}

func dialFrameOutput(path string) (io.WriteCloser, error) {
	return net.DialUnix("unix", nil, &net.UnixAddr{
		Net:  "unix",
		Name: path,
	})
}

// Frame handles one frame in the given format.
func (c *frameConsumer) Frame(frame []byte, format coach.Format) {
	if c.notifyCount++; c.notifyCount >= c.notifyEvery {
		c.notify()
		c.notifyCount = 0
	}

	if c.snap != nil {
		c.snap.update(frame)
	}

	if c.conf.FrameOutput != "" {
		if err := c.output(frame, format); err != nil {
			c.log.Printf("frame output failed: %v", err)
			c.closeOutput()
		}
	}

	if c.clipper != nil {
		if err := c.clipper.WriteFrame(frame); err != nil {
			c.log.Printf("recording failed: %v", err)
		}
	}
}

// Idle keeps the watchdog happy while no frames are expected.
func (c *frameConsumer) Idle() {
	c.notify()
	c.notifyCount = 0
	if c.clipper != nil {
		if err := c.clipper.Stop(); err != nil {
			log.Printf("failed to stop recording: %v", err)
		}
	}
}

func (c *frameConsumer) output(frame []byte, format coach.Format) error {
	if c.out != nil && format != c.format {
		// Readers only learn the frame size from the header.
		c.closeOutput()
	}
	if c.out == nil {
		conn, err := c.dial(c.conf.FrameOutput)
		if err != nil {
			return err
		}
		out, err := output.NewWriter(conn, c.header(format))
		if err != nil {
			conn.Close()
			return err
		}
		c.conn = conn
		c.out = out
		c.format = format
	}
	return c.out.WriteFrame(frame)
}

func (c *frameConsumer) header(format coach.Format) *headers.HeaderInfo {
	fps := c.conf.FrameRate
	if max := format.MaxFrameRate(); fps > max {
		fps = max
	}
	return headers.New(int(format.Width), int(format.Height), fps, c.conf.MaxFrameSize, brand, model)
}

func (c *frameConsumer) closeOutput() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.out = nil
}

func (c *frameConsumer) Close() {
	if c.clipper != nil {
		if err := c.clipper.Stop(); err != nil {
			log.Printf("failed to stop recording: %v", err)
		}
	}
	c.closeOutput()
}

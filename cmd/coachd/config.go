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
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/mjpeg-recorder/capture"
	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
	"github.com/TheCacophonyProject/mjpeg-recorder/recorder"
	"github.com/TheCacophonyProject/mjpeg-recorder/throttle"
)

type Config struct {
	VendorID            uint16                   `yaml:"vendor-id"`
	ProductID           uint16                   `yaml:"product-id"`
	PowerPin            string                   `yaml:"power-pin"`
	TransferSize        int                      `yaml:"transfer-size"`
	MaxFrameSize        int                      `yaml:"max-frame-size"`
	FrameSlots          int                      `yaml:"frame-slots"`
	CaptureBuffers      int                      `yaml:"capture-buffers"`
	SkipFrames          int                      `yaml:"skip-frames"`
	Width               int                      `yaml:"width"`
	Height              int                      `yaml:"height"`
	FrameRate           int                      `yaml:"frame-rate"`
	ControlTimeout      time.Duration            `yaml:"control-timeout"`
	ErrorReportInterval int                      `yaml:"error-report-interval"`
	Controls            map[string]int32         `yaml:"controls"`
	FrameOutput         string                   `yaml:"frame-output"`
	OutputDir           string                   `yaml:"output-dir"`
	SnapshotDir         string                   `yaml:"snapshot-dir"`
	MinDiskSpace        uint64                   `yaml:"min-disk-space"`
	Recorder            recorder.RecorderConfig  `yaml:"recorder"`
	Throttler           throttle.ThrottlerConfig `yaml:"throttler"`
}

func defaultConfig() Config {
	session := capture.DefaultConfig()
	return Config{
		VendorID:            uint16(coach.VendorID),
		ProductID:           uint16(coach.ProductID),
		PowerPin:            "GPIO23",
		TransferSize:        session.TransferSize,
		MaxFrameSize:        session.MaxFrameSize,
		FrameSlots:          session.FrameSlots,
		CaptureBuffers:      4,
		SkipFrames:          session.SkipFrames,
		Width:               640,
		Height:              480,
		FrameRate:           session.FrameRate,
		ControlTimeout:      500 * time.Millisecond,
		ErrorReportInterval: session.ErrorReportInterval,
		FrameOutput:         "/var/run/coach-frames",
		OutputDir:           "/var/spool/mjpeg",
		SnapshotDir:         "/var/spool/mjpeg",
		MinDiskSpace:        200,
		Recorder:            recorder.DefaultRecorderConfig(),
		Throttler:           throttle.DefaultThrottlerConfig(),
	}
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Validate() error {
	if err := conf.Session().Validate(); err != nil {
		return err
	}
	if conf.CaptureBuffers < 1 {
		return errors.New("capture-buffers must be at least 1")
	}
	if conf.Width < 1 || conf.Height < 1 {
		return errors.New("width and height must be positive")
	}
	if conf.ControlTimeout <= 0 {
		return errors.New("control-timeout must be positive")
	}
	for name, value := range conf.Controls {
		c, ok := coach.LookupControl(name)
		if !ok {
			return fmt.Errorf("unknown control %q", name)
		}
		if !c.InRange(value) {
			return fmt.Errorf("%s must be between %d and %d", name, c.Min, c.Max)
		}
	}
	if err := conf.Recorder.Validate(); err != nil {
		return err
	}
	return conf.Throttler.Validate()
}

// Session returns the capture settings.
func (conf *Config) Session() capture.Config {
	session := capture.DefaultConfig()
	session.TransferSize = conf.TransferSize
	session.MaxFrameSize = conf.MaxFrameSize
	session.FrameSlots = conf.FrameSlots
	session.SkipFrames = conf.SkipFrames
	session.FrameRate = conf.FrameRate
	session.ErrorReportInterval = conf.ErrorReportInterval
	return session
}

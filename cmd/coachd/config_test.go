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
	"testing"
	"time"

	"github.com/TheCacophonyProject/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/mjpeg-recorder/recorder"
	"github.com/TheCacophonyProject/mjpeg-recorder/throttle"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, Config{
		VendorID:            0x172f,
		ProductID:           0x0080,
		PowerPin:            "GPIO23",
		TransferSize:        4096,
		MaxFrameSize:        200000,
		FrameSlots:          2,
		CaptureBuffers:      4,
		SkipFrames:          2,
		Width:               640,
		Height:              480,
		FrameRate:           30,
		ControlTimeout:      500 * time.Millisecond,
		ErrorReportInterval: 10,
		FrameOutput:         "/var/run/coach-frames",
		OutputDir:           "/var/spool/mjpeg",
		SnapshotDir:         "/var/spool/mjpeg",
		MinDiskSpace:        200,
		Recorder: recorder.RecorderConfig{
			MinSecs: 10,
			MaxSecs: 60,
		},
		Throttler: throttle.ThrottlerConfig{
			ApplyThrottling: true,
			BucketSize:      10 * time.Minute,
			MinRefill:       10 * time.Minute,
		},
	}, *conf)
}

func TestAllSet(t *testing.T) {
	// All config set at non-default values.
	config := []byte(`
vendor-id: 0x1234
product-id: 0x5678
power-pin: "PIN"
transfer-size: 8192
max-frame-size: 300000
frame-slots: 3
capture-buffers: 6
skip-frames: 5
width: 1280
height: 960
frame-rate: 15
control-timeout: 2s
error-report-interval: 20
controls:
  brightness: 9
  sensor-flip: 1
frame-output: "/some/sock"
output-dir: "/some/dir"
snapshot-dir: "/snap/dir"
min-disk-space: 1000
recorder:
  min-secs: 2
  max-secs: 20
  window-start: "17:10"
  window-end: "07:20"
throttler:
  apply-throttling: false
  bucket-size: 3m
  min-refill: 1m
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)

	assert.Equal(t, Config{
		VendorID:            0x1234,
		ProductID:           0x5678,
		PowerPin:            "PIN",
		TransferSize:        8192,
		MaxFrameSize:        300000,
		FrameSlots:          3,
		CaptureBuffers:      6,
		SkipFrames:          5,
		Width:               1280,
		Height:              960,
		FrameRate:           15,
		ControlTimeout:      2 * time.Second,
		ErrorReportInterval: 20,
		Controls: map[string]int32{
			"brightness":  9,
			"sensor-flip": 1,
		},
		FrameOutput:  "/some/sock",
		OutputDir:    "/some/dir",
		SnapshotDir:  "/snap/dir",
		MinDiskSpace: 1000,
		Recorder: recorder.RecorderConfig{
			MinSecs:     2,
			MaxSecs:     20,
			WindowStart: *window.NewTimeOfDay("17:10"),
			WindowEnd:   *window.NewTimeOfDay("07:20"),
		},
		Throttler: throttle.ThrottlerConfig{
			ApplyThrottling: false,
			BucketSize:      3 * time.Minute,
			MinRefill:       time.Minute,
		},
	}, *conf)
}

func TestPartialRecorderSection(t *testing.T) {
	conf, err := ParseConfig([]byte("recorder:\n  max-secs: 30\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, conf.Recorder.MinSecs)
	assert.Equal(t, 30, conf.Recorder.MaxSecs)
}

func TestInvalid(t *testing.T) {
	cases := []struct {
		config string
		err    string
	}{
		{"frame-slots: 1", "frame-slots must be at least 2"},
		{"frame-rate: 31", "frame-rate must be between 1 and 30"},
		{"capture-buffers: 0", "capture-buffers must be at least 1"},
		{"width: 0", "width and height must be positive"},
		{"control-timeout: 0s", "control-timeout must be positive"},
		{"controls:\n  contrast: 1", `unknown control "contrast"`},
		{"controls:\n  brightness: 16", "brightness must be between 0 and 15"},
		{"recorder:\n  max-secs: 5", "max-secs should be larger than min-secs"},
		{"throttler:\n  bucket-size: 0s", "bucket-size must be positive"},
	}
	for _, c := range cases {
		_, err := ParseConfig([]byte(c.config))
		assert.EqualError(t, err, c.err, c.config)
	}
}

func TestSessionConfig(t *testing.T) {
	conf, err := ParseConfig([]byte("frame-slots: 4\nskip-frames: 0\n"))
	require.NoError(t, err)

	session := conf.Session()
	assert.Equal(t, 4, session.FrameSlots)
	assert.Equal(t, 0, session.SkipFrames)
	assert.Equal(t, 200000, session.MaxFrameSize)
	assert.Equal(t, 100*time.Millisecond, session.SettleDelay)
}

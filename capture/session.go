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

// Package capture assembles JPEG frames streamed by a COACH 10P and
// hands them to queued capture buffers.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
	"github.com/TheCacophonyProject/mjpeg-recorder/handoff"
	"github.com/TheCacophonyProject/mjpeg-recorder/jfif"
	"github.com/TheCacophonyProject/mjpeg-recorder/pump"
)

// Device is the camera a session reads from and configures.
type Device interface {
	pump.Transport
	SetParam(p coach.Param, value uint16) error
	GetParam(p coach.Param) (uint16, error)
}

// Config holds the session tunables.
type Config struct {
	TransferSize        int
	MaxFrameSize        int
	FrameSlots          int
	SkipFrames          int
	FrameRate           int
	SettleDelay         time.Duration
	ErrorReportInterval int
}

func DefaultConfig() Config {
	return Config{
		TransferSize:        coach.TransferSize,
		MaxFrameSize:        200000,
		FrameSlots:          2,
		SkipFrames:          2,
		FrameRate:           30,
		SettleDelay:         100 * time.Millisecond,
		ErrorReportInterval: 10,
	}
}

func (c Config) Validate() error {
	if c.TransferSize <= jfif.MetadataLen {
		return fmt.Errorf("transfer-size must be larger than %d", jfif.MetadataLen)
	}
	if c.MaxFrameSize <= jfif.HeaderLen {
		return fmt.Errorf("max-frame-size must be larger than %d", jfif.HeaderLen)
	}
	if c.FrameSlots < 2 {
		return errors.New("frame-slots must be at least 2")
	}
	if c.SkipFrames < 0 {
		return errors.New("skip-frames can't be negative")
	}
	if c.FrameRate < 1 || c.FrameRate > coach.Formats[0].MaxFrameRate() {
		return fmt.Errorf("frame-rate must be between 1 and %d", coach.Formats[0].MaxFrameRate())
	}
	if c.ErrorReportInterval < 1 {
		return errors.New("error-report-interval must be at least 1")
	}
	return nil
}

// Session ties a camera to the frame reassembly pipeline and exposes
// the control surface.
type Session struct {
	dev   Device
	conf  Config
	acq   *Acquisition
	stats *Stats
	queue *handoff.Queue
	reasm *Reassembler
	pump  *pump.Pump
	sleep func(time.Duration)

	mu       sync.Mutex
	format   coach.Format
	controls map[string]int32
	settle   bool
}

// NewSession allocates the frame buffers for a session. The camera
// isn't touched until Init is called.
func NewSession(dev Device, conf Config) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		dev:      dev,
		conf:     conf,
		acq:      new(Acquisition),
		stats:    new(Stats),
		queue:    handoff.NewQueue(conf.MaxFrameSize),
		sleep:    time.Sleep,
		format:   coach.Formats[0],
		controls: make(map[string]int32),
	}
	for _, c := range coach.Controls {
		s.controls[c.Name] = c.Default
	}
	s.reasm = NewReassembler(conf.FrameSlots, conf.MaxFrameSize, s.acq, s.stats, s.queue)
	s.reasm.SetDimensions(dimensions(s.format))
	s.pump = pump.New(dev, conf.TransferSize, s.reasm.Process)
	return s, nil
}

// SetErrorReporter sets where runs of transport errors are reported.
func (s *Session) SetErrorReporter(r pump.ErrorReporter) {
	s.pump.SetErrorReporter(r, s.conf.ErrorReportInterval)
}

// Init puts the camera into a known state: streaming off, 320x240 at
// the configured frame rate. It returns the camera's HCE mode.
func (s *Session) Init() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pump.State() == pump.Armed {
		return 0, ErrStreaming
	}

	f := coach.Formats[0]
	steps := []struct {
		p coach.Param
		v uint16
	}{
		{coach.ParamReqStream, 0},
		{coach.ParamStreamWidth, f.Width},
		{coach.ParamStreamHeight, f.Height},
		{coach.ParamStreamRate, uint16(s.conf.FrameRate)},
		{coach.ParamStreamCR, f.StreamCompressionRatio()},
	}
	for _, step := range steps {
		if err := s.setParam(step.p, step.v); err != nil {
			return 0, err
		}
	}
	s.format = f
	s.reasm.SetDimensions(dimensions(f))

	mode, err := s.dev.GetParam(coach.ParamHCEMode)
	if err != nil {
		return 0, &ConfigError{Param: coach.ParamHCEMode.String(), Err: err}
	}
	return mode, nil
}

// SetDimensions picks the supported mode closest to the requested
// size and configures the camera for it. It fails with ErrStreaming
// unless acquisition is stopped.
func (s *Session) SetDimensions(width, height int) (coach.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pump.State() == pump.Armed {
		return coach.Format{}, ErrStreaming
	}

	f := coach.ClosestFormat(width, height)
	if err := s.setParam(coach.ParamStreamWidth, f.Width); err != nil {
		return coach.Format{}, err
	}
	if err := s.setParam(coach.ParamStreamHeight, f.Height); err != nil {
		return coach.Format{}, err
	}
	if err := s.setParam(coach.ParamStreamCR, f.StreamCompressionRatio()); err != nil {
		return coach.Format{}, err
	}
	s.format = f
	s.reasm.SetDimensions(dimensions(f))
	s.settle = true
	return f, nil
}

// Format returns the current streaming mode.
func (s *Session) Format() coach.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// StartAcquisition starts streaming if needed and begins handing off
// frames after skipping the first few.
func (s *Session) StartAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pump.Start(); err != nil {
		return &TransportError{Op: "start streaming", Err: err}
	}
	if s.settle {
		// The camera can crash if reads start too soon after a
		// format change.
		s.sleep(s.conf.SettleDelay)
		s.settle = false
	}
	s.acq.Start(s.conf.SkipFrames)
	return nil
}

// StopAcquisition stops handing off frames and stops streaming. It
// may be called more than once.
func (s *Session) StopAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acq.Stop()
	if err := s.pump.Stop(); err != nil {
		return &TransportError{Op: "stop streaming", Err: err}
	}
	return nil
}

// Acquiring reports whether frames are being handed off.
func (s *Session) Acquiring() bool {
	return s.acq.Acquiring()
}

// SetControl sets a named sensor control.
func (s *Session) SetControl(name string, value int32) error {
	c, ok := coach.LookupControl(name)
	if !ok {
		return ErrUnknownControl
	}
	if !c.InRange(value) {
		return ErrOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setParam(c.Param, uint16(value)); err != nil {
		return err
	}
	s.controls[name] = value
	return nil
}

// Control returns the last value set for a named control.
func (s *Session) Control(name string) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.controls[name]
	if !ok {
		return 0, ErrUnknownControl
	}
	return v, nil
}

// SetSensorParam sends a raw parameter to the sensor.
func (s *Session) SetSensorParam(p coach.Param, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setParam(p, value)
}

// Queue returns the capture buffer queue frames are handed to.
func (s *Session) Queue() *handoff.Queue {
	return s.queue
}

// Stats returns the current frame counters.
func (s *Session) Stats() Counters {
	c := s.stats.Snapshot()
	c.TransportErrors = s.pump.Errors()
	c.SkipRemaining = uint64(s.acq.SkipRemaining())
	return c
}

// FrameCount returns the number of frames completed since acquisition
// started.
func (s *Session) FrameCount() uint64 {
	return s.acq.FrameCount()
}

// Dying is closed when streaming stops, including when the camera
// goes away.
func (s *Session) Dying() <-chan struct{} {
	return s.pump.Dying()
}

// Err returns why streaming stopped, if it stopped by itself.
func (s *Session) Err() error {
	return s.pump.Err()
}

// Close stops acquisition and returns any capture buffers still
// waiting for a frame.
func (s *Session) Close() ([]*handoff.Request, error) {
	err := s.StopAcquisition()
	return s.queue.Drain(), err
}

func (s *Session) setParam(p coach.Param, value uint16) error {
	if err := s.dev.SetParam(p, value); err != nil {
		return &ConfigError{Param: p.String(), Err: err}
	}
	return nil
}

func dimensions(f coach.Format) jfif.Dimensions {
	return jfif.Dimensions{Width: f.Width, Height: f.Height}
}

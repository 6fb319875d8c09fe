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
	"sync"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/TheCacophonyProject/mjpeg-recorder/capture"
)

const (
	dbusName = "org.cacophony.coachd"
	dbusPath = "/org/cacophony/coachd"
)

var errNoCamera = errors.New("no camera available")

type coachdService struct {
	mu       sync.Mutex
	session  *capture.Session
	meter    *frameMeter
	snapshot *snapshotter
}

func startService(snapshot *snapshotter) (*coachdService, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}
	s := &coachdService{snapshot: snapshot}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return s, nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

func (s *coachdService) setSession(session *capture.Session, meter *frameMeter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.meter = meter
}

func (s *coachdService) removeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.meter = nil
}

func (s *coachdService) StartAcquisition() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return makeDbusError("StartAcquisition", errNoCamera)
	}
	if err := s.session.StartAcquisition(); err != nil {
		return makeDbusError("StartAcquisition", err)
	}
	return nil
}

func (s *coachdService) StopAcquisition() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return makeDbusError("StopAcquisition", errNoCamera)
	}
	if err := s.session.StopAcquisition(); err != nil {
		return makeDbusError("StopAcquisition", err)
	}
	return nil
}

// SetFormat changes the frame size, pausing acquisition while the
// camera is reconfigured. It returns the size actually chosen.
func (s *coachdService) SetFormat(width, height int32) (int32, int32, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0, 0, makeDbusError("SetFormat", errNoCamera)
	}
	f, err := setFormat(s.session, int(width), int(height))
	if err != nil {
		return 0, 0, makeDbusError("SetFormat", err)
	}
	return int32(f.Width), int32(f.Height), nil
}

func (s *coachdService) SetControl(name string, value int32) *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return makeDbusError("SetControl", errNoCamera)
	}
	if err := s.session.SetControl(name, value); err != nil {
		return makeDbusError("SetControl", err)
	}
	return nil
}

func (s *coachdService) GetControl(name string) (int32, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0, makeDbusError("GetControl", errNoCamera)
	}
	value, err := s.session.Control(name)
	if err != nil {
		return 0, makeDbusError("GetControl", err)
	}
	return value, nil
}

func (s *coachdService) Stats() (map[string]uint64, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, makeDbusError("Stats", errNoCamera)
	}
	stats := statsMap(s.session.Stats())
	if s.meter != nil {
		s.meter.addStats(stats)
	}
	return stats, nil
}

// TakeSnapshot saves the most recent frame as a still.
func (s *coachdService) TakeSnapshot() *dbus.Error {
	if err := s.snapshot.take(); err != nil {
		return makeDbusError("TakeSnapshot", err)
	}
	return nil
}

func statsMap(c capture.Counters) map[string]uint64 {
	return map[string]uint64{
		"frames":           c.Frames,
		"delivered":        c.Delivered,
		"dropped":          c.Dropped,
		"skipped":          c.Skipped,
		"bogus":            c.Bogus,
		"no-eoi":           c.NoEOI,
		"oversize":         c.Oversize,
		"runts":            c.Runts,
		"discarded":        c.Discarded,
		"transport-errors": c.TransportErrors,
		"skip-remaining":   c.SkipRemaining,
	}
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}

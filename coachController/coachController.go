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

package coachController

import "github.com/godbus/dbus"

const (
	dbusPath   = "/org/cacophony/coachd"
	dbusDest   = "org.cacophony.coachd"
	methodBase = "org.cacophony.coachd"
)

func getDbusObj() (dbus.BusObject, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusDest, dbusPath)
	return obj, nil
}

func StartAcquisition() error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".StartAcquisition", 0).Store()
}

func StopAcquisition() error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".StopAcquisition", 0).Store()
}

// SetFormat asks for a frame size and returns the size the camera
// settled on.
func SetFormat(width, height int32) (int32, int32, error) {
	obj, err := getDbusObj()
	if err != nil {
		return 0, 0, err
	}
	var w, h int32
	err = obj.Call(methodBase+".SetFormat", 0, width, height).Store(&w, &h)
	return w, h, err
}

func SetControl(name string, value int32) error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".SetControl", 0, name, value).Store()
}

func GetControl(name string) (int32, error) {
	obj, err := getDbusObj()
	if err != nil {
		return 0, err
	}
	var value int32
	err = obj.Call(methodBase+".GetControl", 0, name).Store(&value)
	return value, err
}

// TakeSnapshot asks for the latest frame to be saved as a still.
func TakeSnapshot() error {
	obj, err := getDbusObj()
	if err != nil {
		return err
	}
	return obj.Call(methodBase+".TakeSnapshot", 0).Store()
}

// Stats returns the daemon's frame counters by name.
func Stats() (map[string]uint64, error) {
	obj, err := getDbusObj()
	if err != nil {
		return nil, err
	}
	stats := make(map[string]uint64)
	err = obj.Call(methodBase+".Stats", 0).Store(&stats)
	return stats, err
}

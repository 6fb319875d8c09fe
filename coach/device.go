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

// Package coach talks to the COACH 10P camera over USB.
package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gousb"

	"github.com/TheCacophonyProject/mjpeg-recorder/pump"
)

// USB identifiers of the COACH 10P.
const (
	VendorID  gousb.ID = 0x172f
	ProductID gousb.ID = 0x0080
)

// TransferSize is the size of each bulk read.
const TransferSize = 0x1000

// ErrNotFound is returned by Open when no matching camera is attached.
var ErrNotFound = errors.New("camera not found")

// Device is an open camera. It implements pump.Transport.
type Device struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	release func()
	in      *gousb.InEndpoint
	removed int32

	// Control transfers are serialised.
	mu sync.Mutex
}

// Open finds and claims the camera's default interface and its bulk
// in endpoint. Control requests time out after controlTimeout.
func Open(vid, pid gousb.ID, controlTimeout time.Duration) (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, ErrNotFound
	}
	dev.ControlTimeout = controlTimeout
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	intf, release, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	in, err := findBulkIn(intf)
	if err != nil {
		release()
		dev.Close()
		ctx.Close()
		return nil, err
	}

	return &Device{
		ctx:     ctx,
		dev:     dev,
		release: release,
		in:      in,
	}, nil
}

// findBulkIn returns the lowest numbered bulk in endpoint.
func findBulkIn(intf *gousb.Interface) (*gousb.InEndpoint, error) {
	num := -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction != gousb.EndpointDirectionIn || ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if num < 0 || ep.Number < num {
			num = ep.Number
		}
	}
	if num < 0 {
		return nil, fmt.Errorf("no bulk in endpoint on %s", intf)
	}
	return intf.InEndpoint(num)
}

// Read implements pump.Transport. Once the camera has been unplugged
// it returns pump.ErrShutdown.
func (d *Device) Read(ctx context.Context, buf []byte) (int, error) {
	if d.Removed() {
		return 0, pump.ErrShutdown
	}
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		if d.checkRemoved(err) {
			return n, pump.ErrShutdown
		}
		return n, err
	}
	return n, nil
}

// SetStreaming implements pump.Transport.
func (d *Device) SetStreaming(on bool) error {
	var v uint16
	if on {
		v = 1
	}
	return d.SetParam(ParamReqStream, v)
}

// Removed implements pump.Transport.
func (d *Device) Removed() bool {
	return atomic.LoadInt32(&d.removed) == 1
}

// SetParam sets a sensor parameter.
func (d *Device) SetParam(p Param, value uint16) error {
	if d.Removed() {
		return pump.ErrRemoved
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	rType := uint8(gousb.ControlVendor | gousb.ControlOut | gousb.ControlDevice)
	_, err := d.dev.Control(rType, paramRequest, setParamValue, 0, encodeSetParam(p, value))
	if err != nil {
		d.checkRemoved(err)
		return fmt.Errorf("set %s: %v", p, err)
	}
	return nil
}

// GetParam reads a sensor parameter.
func (d *Device) GetParam(p Param) (uint16, error) {
	if d.Removed() {
		return 0, pump.ErrRemoved
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	rType := uint8(gousb.ControlVendor | gousb.ControlIn | gousb.ControlDevice)
	reply := make([]byte, getParamReply)
	n, err := d.dev.Control(rType, paramRequest, getParamValue, uint16(p), reply)
	if err != nil {
		d.checkRemoved(err)
		return 0, fmt.Errorf("get %s: %v", p, err)
	}
	v, err := decodeGetParam(reply[:n])
	if err != nil {
		return 0, fmt.Errorf("get %s: %v", p, err)
	}
	return v, nil
}

// Close releases the interface and closes the device.
func (d *Device) Close() error {
	d.release()
	err := d.dev.Close()
	if cerr := d.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Device) String() string {
	return d.dev.String()
}

func (d *Device) checkRemoved(err error) bool {
	if err == gousb.ErrorNoDevice || err == gousb.TransferNoDevice {
		atomic.StoreInt32(&d.removed, 1)
		return true
	}
	return false
}

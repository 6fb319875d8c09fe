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
	"context"
	"errors"
	"log"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/google/gousb"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/mjpeg-recorder/capture"
	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
	"github.com/TheCacophonyProject/mjpeg-recorder/handoff"
	"github.com/TheCacophonyProject/mjpeg-recorder/recorder"
)

const frameTimeout = 10 * time.Second

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Quick      bool   `arg:"-q,--quick" help:"don't cycle camera power on startup"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/coachd.yaml"
	arg.MustParse(&args)
	return args
}

type nextFrameErr struct {
	cause error
}

func (e *nextFrameErr) Error() string {
	return e.cause.Error()
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	if conf.OutputDir != "" {
		log.Print("deleting temp files")
		if err := recorder.DeleteTempFiles(conf.OutputDir); err != nil {
			return err
		}
	}

	log.Print("host initialisation")
	if _, err := host.Init(); err != nil {
		return err
	}

	if !args.Quick {
		if err := cycleCameraPower(conf.PowerPin); err != nil {
			return err
		}
	}

	snapshot := newSnapshotter(conf.SnapshotDir, conf.MaxFrameSize)
	snapshot.delete()

	log.Print("starting dbus service")
	service, err := startService(snapshot)
	if err != nil {
		return err
	}

	for {
		log.Print("opening camera")
		camera, err := coach.Open(gousb.ID(conf.VendorID), gousb.ID(conf.ProductID), conf.ControlTimeout)
		if err != nil {
			return err
		}
		log.Printf("opened %s", camera)

		err = runCamera(conf, camera, service)
		if err != nil {
			if _, isNextFrameErr := err.(*nextFrameErr); !isNextFrameErr {
				camera.Close()
				return err
			}
			log.Printf("recording error: %v", err)
		}

		log.Print("closing camera")
		camera.Close()

		err = cycleCameraPower(conf.PowerPin)
		if err != nil {
			return err
		}
	}
}

func runCamera(conf *Config, camera capture.Device, service *coachdService) error {
	session, err := capture.NewSession(camera, conf.Session())
	if err != nil {
		return err
	}
	session.SetErrorReporter(newEventReporter())

	log.Print("initialising camera")
	mode, err := session.Init()
	if err != nil {
		return &nextFrameErr{err}
	}
	log.Printf("HCE mode: %d", mode)

	format, err := session.SetDimensions(conf.Width, conf.Height)
	if err != nil {
		return &nextFrameErr{err}
	}
	log.Printf("frame size: %dx%d", format.Width, format.Height)

	for name, value := range conf.Controls {
		if err := session.SetControl(name, value); err != nil {
			return &nextFrameErr{err}
		}
		log.Printf("%s set to %d", name, value)
	}

	queue := session.Queue()
	meter := new(frameMeter)
	queue.OnFrameReady(meter.frameReady)
	for i := 0; i < conf.CaptureBuffers; i++ {
		if err := queue.Enqueue(handoff.NewRequest(conf.MaxFrameSize)); err != nil {
			return err
		}
	}

	consumer := newFrameConsumer(conf, service.snapshot)
	defer consumer.Close()

	service.setSession(session, meter)
	defer service.removeSession()

	log.Print("starting acquisition")
	if err := session.StartAcquisition(); err != nil {
		return &nextFrameErr{err}
	}
	defer func() {
		if _, err := session.Close(); err != nil {
			log.Printf("stopping acquisition: %v", err)
		}
	}()

	log.Print("reading frames")
	for {
		ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
		req, err := queue.WaitReady(ctx)
		cancel()
		if err != nil {
			if serr := session.Err(); serr != nil {
				return &nextFrameErr{serr}
			}
			if session.Acquiring() {
				if last := meter.lastFrame(); !last.IsZero() {
					log.Printf("last frame handed off at %s", last.Format(time.RFC3339))
				}
				return &nextFrameErr{errors.New("timed out waiting for a frame")}
			}
			// Acquisition was stopped over D-Bus.
			consumer.Idle()
			continue
		}

		consumer.Frame(req.Bytes(), session.Format())

		req.Reset()
		if err := queue.Enqueue(req); err != nil {
			return err
		}
	}
}

func logConfig(conf *Config) {
	log.Printf("camera: %04x:%04x", conf.VendorID, conf.ProductID)
	log.Printf("power pin: %s", conf.PowerPin)
	log.Printf("frame size: %dx%d @ %d fps", conf.Width, conf.Height, conf.FrameRate)
	log.Printf("max frame size: %d", conf.MaxFrameSize)
	log.Printf("frame slots: %d, capture buffers: %d", conf.FrameSlots, conf.CaptureBuffers)
	log.Printf("skip frames: %d", conf.SkipFrames)
	log.Printf("frame output: %s", conf.FrameOutput)
	log.Printf("output dir: %s", conf.OutputDir)
	log.Printf("snapshot dir: %s", conf.SnapshotDir)
	log.Printf("recorder: %+v", conf.Recorder)
	log.Printf("throttler: %+v", conf.Throttler)
}

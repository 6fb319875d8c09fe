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
	"log"
	"net"
	"os"
	"sort"
	"strconv"

	arg "github.com/alexflint/go-arg"

	"github.com/TheCacophonyProject/mjpeg-recorder/coachController"
	"github.com/TheCacophonyProject/mjpeg-recorder/output"
)

var version = "<not set>"

type Args struct {
	Command string   `arg:"positional,required" help:"start, stop, format, set, get, stats, snapshot or listen"`
	Params  []string `arg:"positional" help:"command parameters"`
}

func (Args) Version() string {
	return version
}

func (Args) Description() string {
	return `control the coachd camera daemon

  start                  start handing off frames
  stop                   stop handing off frames
  format <width> <height> change the frame size
  set <control> <value>  set a camera control
  get <control>          show a camera control
  stats                  show frame counters
  snapshot               save the latest frame as a still
  listen <socket>        accept frames on a socket instead of the usual consumer`
}

func main() {
	log.SetFlags(0)
	var args Args
	arg.MustParse(&args)
	if err := run(args); err != nil {
		log.Fatal(err)
	}
}

func run(args Args) error {
	switch args.Command {
	case "start":
		return coachController.StartAcquisition()
	case "stop":
		return coachController.StopAcquisition()
	case "format":
		ints, err := parseInts(args.Params, 2)
		if err != nil {
			return err
		}
		w, h, err := coachController.SetFormat(ints[0], ints[1])
		if err != nil {
			return err
		}
		fmt.Printf("%dx%d\n", w, h)
		return nil
	case "set":
		if len(args.Params) != 2 {
			return errors.New("usage: set <control> <value>")
		}
		ints, err := parseInts(args.Params[1:], 1)
		if err != nil {
			return err
		}
		return coachController.SetControl(args.Params[0], ints[0])
	case "get":
		if len(args.Params) != 1 {
			return errors.New("usage: get <control>")
		}
		value, err := coachController.GetControl(args.Params[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	case "stats":
		stats, err := coachController.Stats()
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	case "snapshot":
		return coachController.TakeSnapshot()
	case "listen":
		if len(args.Params) != 1 {
			return errors.New("usage: listen <socket>")
		}
		return listen(args.Params[0])
	}
	return fmt.Errorf("unknown command: %s", args.Command)
}

func parseInts(params []string, count int) ([]int32, error) {
	if len(params) != count {
		return nil, fmt.Errorf("expected %d parameters, got %d", count, len(params))
	}
	out := make([]int32, count)
	for i, p := range params {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", p)
		}
		out[i] = int32(v)
	}
	return out, nil
}

func printStats(stats map[string]uint64) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-18s %d\n", name, stats[name])
	}
}

// listen accepts connections from coachd on socketPath and prints the
// size of each frame received.
func listen(socketPath string) error {
	os.Remove(socketPath)
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		log.Printf("waiting for connection on %s", socketPath)
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		if err := readFrames(conn); err != nil {
			log.Printf("connection closed: %v", err)
		}
		conn.Close()
	}
}

func readFrames(conn net.Conn) error {
	r, err := output.NewReader(conn)
	if err != nil {
		return err
	}
	h := r.Header()
	log.Printf("%s %s: %dx%d @ %d fps", h.Brand(), h.Model(), h.ResX(), h.ResY(), h.FPS())

	buf := make([]byte, h.FrameSize())
	for i := 0; ; i++ {
		frame, err := r.ReadFrame(buf)
		if err != nil {
			return err
		}
		log.Printf("frame %d: %d bytes", i, len(frame))
	}
}

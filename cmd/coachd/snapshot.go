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
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	snapshotName          = "still.jpeg"
	allowedSnapshotPeriod = 500 * time.Millisecond
)

// snapshotter keeps the most recent frame so it can be saved as a
// still on request.
type snapshotter struct {
	mu       sync.Mutex
	dir      string
	frame    []byte
	prevTime time.Time
	now      func() time.Time
}

func newSnapshotter(dir string, maxFrameSize int) *snapshotter {
	return &snapshotter{
		dir:   dir,
		frame: make([]byte, 0, maxFrameSize),
		now:   time.Now,
	}
}

func (s *snapshotter) update(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = append(s.frame[:0], frame...)
}

func (s *snapshotter) take() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Sub(s.prevTime) < allowedSnapshotPeriod {
		return nil
	}
	if len(s.frame) == 0 {
		return errors.New("no frames yet")
	}

	filename := filepath.Join(s.dir, snapshotName)
	tempName := filename + ".temp"
	if err := ioutil.WriteFile(tempName, s.frame, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempName, filename); err != nil {
		return err
	}

	// Only a successful snapshot counts towards the rate limit.
	s.prevTime = s.now()
	return nil
}

func (s *snapshotter) delete() {
	err := os.Remove(filepath.Join(s.dir, snapshotName))
	if err != nil && !os.IsNotExist(err) {
		log.Printf("error deleting snapshot image: %v", err)
	}
}

// mjpeg-recorder - capture JPEG video from COACH 10P USB cameras
//  Copyright (C) 2018, The Cacophony Project
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

package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sys/unix"
)

const (
	mjpegExt     = "mjpeg"
	mjpegTempExt = mjpegExt + ".temp"
	writeBufSize = 1024 * 1024
)

// FileRecorder writes clips as concatenated JPEG frames. A clip is
// written to a temporary file which is renamed once it is complete.
type FileRecorder struct {
	outputDir    string
	minDiskSpace uint64
	now          func() time.Time

	file *os.File
	w    *bufio.Writer
}

// NewFileRecorder returns a recorder which writes to outputDir as
// long as at least minDiskSpace MB are free.
func NewFileRecorder(outputDir string, minDiskSpace uint64) *FileRecorder {
	return &FileRecorder{
		outputDir:    outputDir,
		minDiskSpace: minDiskSpace,
		now:          time.Now,
	}
}

func (fr *FileRecorder) CheckCanRecord() error {
	enoughSpace, err := checkDiskSpace(fr.minDiskSpace, fr.outputDir)
	if err != nil {
		return fmt.Errorf("Problem with checking disk space: %v", err)
	} else if !enoughSpace {
		return errors.New("not enough free disk space to start recording")
	}
	return nil
}

func (fr *FileRecorder) StartRecording() error {
	if fr.file != nil {
		return errors.New("already recording")
	}
	filename := filepath.Join(fr.outputDir, fr.newRecordingTempName())
	log.Printf("recording started: %s", filename)

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	fr.file = f
	fr.w = bufio.NewWriterSize(f, writeBufSize)
	return nil
}

func (fr *FileRecorder) StopRecording() error {
	if fr.file == nil {
		return nil
	}
	tempName := fr.file.Name()
	err := fr.close()
	if err != nil {
		os.Remove(tempName)
		return err
	}

	finalName, err := renameTempRecording(tempName)
	log.Printf("recording stopped: %s", finalName)
	return err
}

// Stop abandons any recording in progress.
func (fr *FileRecorder) Stop() {
	if fr.file != nil {
		name := fr.file.Name()
		fr.close()
		os.Remove(name)
	}
}

func (fr *FileRecorder) WriteFrame(frame []byte) error {
	if fr.w == nil {
		return errors.New("not recording")
	}
	_, err := fr.w.Write(frame)
	return err
}

func (fr *FileRecorder) close() error {
	err := fr.w.Flush()
	if cerr := fr.file.Close(); err == nil {
		err = cerr
	}
	fr.file = nil
	fr.w = nil
	return err
}

func (fr *FileRecorder) newRecordingTempName() string {
	return fr.now().Format("20060102.150405.000." + mjpegTempExt)
}

func renameTempRecording(tempName string) (string, error) {
	finalName := recordingFinalName(tempName)
	err := os.Rename(tempName, finalName)
	if err != nil {
		return "", err
	}
	return finalName, nil
}

var reTempName = regexp.MustCompile(`(.+)\.temp$`)

func recordingFinalName(filename string) string {
	return reTempName.ReplaceAllString(filename, `$1`)
}

// DeleteTempFiles removes clips left incomplete by a previous run.
func DeleteTempFiles(directory string) error {
	matches, _ := filepath.Glob(filepath.Join(directory, "*."+mjpegTempExt))
	for _, filename := range matches {
		if err := os.Remove(filename); err != nil {
			return err
		}
	}
	return nil
}

func checkDiskSpace(mb uint64, dir string) (bool, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(dir, &fs); err != nil {
		return false, err
	}
	return fs.Bavail*uint64(fs.Bsize)/1024/1024 >= mb, nil
}

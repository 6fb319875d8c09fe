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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileRecorder(t *testing.T, minDiskSpace uint64) (*FileRecorder, string) {
	dir, err := ioutil.TempDir("", "mjpeg-recorder")
	require.NoError(t, err)
	fr := NewFileRecorder(dir, minDiskSpace)
	fr.now = func() time.Time {
		return time.Date(2021, 2, 3, 4, 5, 6, 7000000, time.UTC)
	}
	return fr, dir
}

func TestRecordingFinalName(t *testing.T) {
	assert.Equal(t, "/var/x.mjpeg", recordingFinalName("/var/x.mjpeg.temp"))
	assert.Equal(t, "/var/x.mjpeg", recordingFinalName("/var/x.mjpeg"))
}

func TestRecording(t *testing.T) {
	fr, dir := newTestFileRecorder(t, 0)
	defer os.RemoveAll(dir)

	require.NoError(t, fr.CheckCanRecord())
	require.NoError(t, fr.StartRecording())

	tempName := filepath.Join(dir, "20210203.040506.007.mjpeg.temp")
	assert.FileExists(t, tempName)

	require.NoError(t, fr.WriteFrame([]byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}))
	require.NoError(t, fr.WriteFrame([]byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}))
	require.NoError(t, fr.StopRecording())

	_, err := os.Stat(tempName)
	assert.True(t, os.IsNotExist(err))

	data, err := ioutil.ReadFile(filepath.Join(dir, "20210203.040506.007.mjpeg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xFF, 0xD8, 0x01, 0xFF, 0xD9,
		0xFF, 0xD8, 0x02, 0xFF, 0xD9,
	}, data)

	// Stopping again does nothing.
	assert.NoError(t, fr.StopRecording())
}

func TestWriteWithoutRecording(t *testing.T) {
	fr, dir := newTestFileRecorder(t, 0)
	defer os.RemoveAll(dir)

	assert.EqualError(t, fr.WriteFrame([]byte{1}), "not recording")
}

func TestStopAbandonsRecording(t *testing.T) {
	fr, dir := newTestFileRecorder(t, 0)
	defer os.RemoveAll(dir)

	require.NoError(t, fr.StartRecording())
	require.NoError(t, fr.WriteFrame([]byte{1, 2, 3}))
	fr.Stop()

	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, matches)
}

func TestNotEnoughDiskSpace(t *testing.T) {
	fr, dir := newTestFileRecorder(t, 1<<50)
	defer os.RemoveAll(dir)

	assert.EqualError(t, fr.CheckCanRecord(), "not enough free disk space to start recording")
}

func TestDeleteTempFiles(t *testing.T) {
	dir, err := ioutil.TempDir("", "mjpeg-recorder")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	for _, name := range []string{"a.mjpeg.temp", "b.mjpeg.temp", "c.mjpeg"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte{1}, 0644))
	}

	require.NoError(t, DeleteTempFiles(dir))

	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Equal(t, []string{filepath.Join(dir, "c.mjpeg")}, matches)
}

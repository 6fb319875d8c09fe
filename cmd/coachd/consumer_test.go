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
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/mjpeg-recorder/coach"
	"github.com/TheCacophonyProject/mjpeg-recorder/output"
)

type bufferConn struct {
	bytes.Buffer
	closed bool
}

func (b *bufferConn) Close() error {
	b.closed = true
	return nil
}

type testConsumer struct {
	*frameConsumer
	conns    []*bufferConn
	notifies int
}

func newTestConsumer(t *testing.T, conf *Config) *testConsumer {
	tc := &testConsumer{frameConsumer: newFrameConsumer(conf, nil)}
	tc.dial = func(path string) (io.WriteCloser, error) {
		assert.Equal(t, conf.FrameOutput, path)
		conn := new(bufferConn)
		tc.conns = append(tc.conns, conn)
		return conn, nil
	}
	tc.notify = func() { tc.notifies++ }
	return tc
}

func testConfig(t *testing.T) *Config {
	conf, err := ParseConfig([]byte("output-dir: \"\"\nframe-rate: 2\n"))
	require.NoError(t, err)
	return conf
}

func readFrames(t *testing.T, conn *bufferConn) (*output.Reader, [][]byte) {
	r, err := output.NewReader(&conn.Buffer)
	require.NoError(t, err)
	var frames [][]byte
	for {
		frame, err := r.ReadFrame(make([]byte, 100))
		if err == io.EOF {
			return r, frames
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
}

func TestFrameOutput(t *testing.T) {
	c := newTestConsumer(t, testConfig(t))
	vga := coach.ClosestFormat(640, 480)

	c.Frame([]byte{1, 2, 3}, vga)
	c.Frame([]byte{4, 5}, vga)
	require.Len(t, c.conns, 1)

	r, frames := readFrames(t, c.conns[0])
	assert.Equal(t, 640, r.Header().ResX())
	assert.Equal(t, 480, r.Header().ResY())
	assert.Equal(t, 2, r.Header().FPS())
	assert.Equal(t, 200000, r.Header().FrameSize())
	assert.Equal(t, "coach", r.Header().Brand())
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5}}, frames)

	c.Close()
	assert.True(t, c.conns[0].closed)
}

func TestFormatChangeResendsHeader(t *testing.T) {
	c := newTestConsumer(t, testConfig(t))

	c.Frame([]byte{1}, coach.ClosestFormat(640, 480))
	c.Frame([]byte{2}, coach.ClosestFormat(320, 240))
	require.Len(t, c.conns, 2)
	assert.True(t, c.conns[0].closed)

	r, frames := readFrames(t, c.conns[1])
	assert.Equal(t, 320, r.Header().ResX())
	assert.Equal(t, [][]byte{{2}}, frames)
}

func TestFrameOutputRedialsAfterFailure(t *testing.T) {
	c := newTestConsumer(t, testConfig(t))
	dial := c.dial
	c.dial = func(string) (io.WriteCloser, error) {
		return nil, errors.New("connection refused")
	}

	vga := coach.ClosestFormat(640, 480)
	c.Frame([]byte{1}, vga)
	assert.Empty(t, c.conns)

	c.dial = dial
	c.Frame([]byte{2}, vga)
	require.Len(t, c.conns, 1)
	_, frames := readFrames(t, c.conns[0])
	assert.Equal(t, [][]byte{{2}}, frames)
}

func TestWatchdog(t *testing.T) {
	conf := testConfig(t)
	conf.FrameOutput = ""
	c := newTestConsumer(t, conf)

	// Every 5 seconds of frames at 2 fps.
	for i := 0; i < 25; i++ {
		c.Frame([]byte{1}, coach.Formats[0])
	}
	assert.Equal(t, 2, c.notifies)

	c.Idle()
	assert.Equal(t, 3, c.notifies)
}

func TestRecording(t *testing.T) {
	dir, err := ioutil.TempDir("", "coachd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	conf := testConfig(t)
	conf.FrameOutput = ""
	conf.OutputDir = dir
	conf.MinDiskSpace = 0
	conf.Throttler.ApplyThrottling = false
	c := newTestConsumer(t, conf)

	c.Frame([]byte{0xFF, 0xD8, 0xFF, 0xD9}, coach.Formats[0])
	c.Frame([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}, coach.Formats[0])
	c.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "*.mjpeg"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := ioutil.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9, 0xFF, 0xD8, 0x00, 0xFF, 0xD9}, data)
}

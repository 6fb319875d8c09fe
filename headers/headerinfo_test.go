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

package headers

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	h := New(640, 480, 30, 200000, "coach", "10P")
	require.NoError(t, h.Write(&buf))

	// Frame data follows the header.
	buf.Write([]byte{0xFF, 0xD8})

	r := bufio.NewReader(&buf)
	got, err := ReadHeaderInfo(r)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	rest := make([]byte, 2)
	_, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, rest)
}

func TestReadHeaderInfo(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("ResX: 320\nResY: 240\nFPS: 9\nBrand: coach\n\n"))
	h, err := ReadHeaderInfo(r)
	require.NoError(t, err)
	assert.Equal(t, 320, h.ResX())
	assert.Equal(t, 240, h.ResY())
	assert.Equal(t, 9, h.FPS())
	assert.Equal(t, 0, h.FrameSize())
	assert.Equal(t, "coach", h.Brand())
	assert.Equal(t, "", h.Model())
}

func TestReadHeaderInfoUnterminated(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("ResX: 320\n"))
	_, err := ReadHeaderInfo(r)
	assert.Error(t, err)
}

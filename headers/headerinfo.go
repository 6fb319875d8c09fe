// mjpeg-recorder - capture JPEG video from COACH 10P USB cameras
//  Copyright (C) 2020, The Cacophony Project
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
	"io"
	"strings"

	"gopkg.in/yaml.v1"
)

// Keys used in the header which precedes frames on the frame socket.
const (
	XResolution = "ResX"
	YResolution = "ResY"
	FPS         = "FPS"
	FrameSize   = "FrameSize"
	Brand       = "Brand"
	Model       = "Model"
)

type HeaderInfo struct {
	resX      int
	resY      int
	fps       int
	framesize int
	brand     string
	model     string
}

// New returns the header for a stream of JPEG frames no larger than
// frameSize bytes.
func New(resX, resY, fps, frameSize int, brand, model string) *HeaderInfo {
	return &HeaderInfo{
		resX:      resX,
		resY:      resY,
		fps:       fps,
		framesize: frameSize,
		brand:     brand,
		model:     model,
	}
}

func (h *HeaderInfo) ResX() int {
	return h.resX
}

func (h *HeaderInfo) ResY() int {
	return h.resY
}

func (h *HeaderInfo) FPS() int {
	return h.fps
}

func (h *HeaderInfo) FrameSize() int {
	return h.framesize
}

func (h *HeaderInfo) Model() string {
	return h.model
}

func (h *HeaderInfo) Brand() string {
	return h.brand
}

type wireHeader struct {
	ResX      int    `yaml:"ResX"`
	ResY      int    `yaml:"ResY"`
	FPS       int    `yaml:"FPS"`
	FrameSize int    `yaml:"FrameSize"`
	Brand     string `yaml:"Brand"`
	Model     string `yaml:"Model"`
}

// Write sends the header followed by the blank line which terminates it.
func (h *HeaderInfo) Write(w io.Writer) error {
	out, err := yaml.Marshal(&wireHeader{
		ResX:      h.resX,
		ResY:      h.resY,
		FPS:       h.fps,
		FrameSize: h.framesize,
		Brand:     h.brand,
		Model:     h.model,
	})
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func ReadHeaderInfo(reader *bufio.Reader) (*HeaderInfo, error) {
	var buf bytes.Buffer
	for {
		line, err := reader.ReadString(byte('\n'))
		if err != nil {
			return nil, err
		}
		if strings.Trim(line, " ") == "\n" {
			break
		}
		buf.WriteString(line)
	}
	h := make(map[string]interface{})
	err := yaml.Unmarshal(buf.Bytes(), &h)
	if err != nil {
		return nil, err
	}

	return &HeaderInfo{
		resX:      toInt(h[XResolution]),
		resY:      toInt(h[YResolution]),
		fps:       toInt(h[FPS]),
		framesize: toInt(h[FrameSize]),
		brand:     toStr(h[Brand]),
		model:     toStr(h[Model]),
	}, nil
}

func toInt(v interface{}) int {
	out, ok := v.(int)
	if !ok {
		return 0
	}
	return out
}

func toStr(v interface{}) string {
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}

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

// Package output implements the frame socket protocol: a header
// describing the stream followed by JPEG frames, each preceded by its
// length as a big-endian uint32.
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/TheCacophonyProject/mjpeg-recorder/headers"
)

const lenSize = 4

type Writer struct {
	w      io.Writer
	lenBuf [lenSize]byte
}

// NewWriter sends the header and returns a Writer for the frames
// which follow it.
func NewWriter(w io.Writer, header *headers.HeaderInfo) (*Writer, error) {
	if err := header.Write(w); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

func (w *Writer) WriteFrame(frame []byte) error {
	binary.BigEndian.PutUint32(w.lenBuf[:], uint32(len(frame)))
	if _, err := w.w.Write(w.lenBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(frame)
	return err
}

type Reader struct {
	r      *bufio.Reader
	header *headers.HeaderInfo
	lenBuf [lenSize]byte
}

// NewReader reads the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	header, err := headers.ReadHeaderInfo(br)
	if err != nil {
		return nil, err
	}
	return &Reader{r: br, header: header}, nil
}

func (r *Reader) Header() *headers.HeaderInfo {
	return r.header
}

// ReadFrame reads the next frame into buf, which must be large enough
// to hold it, and returns the part of buf which was filled.
func (r *Reader) ReadFrame(buf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(r.lenBuf[:]))
	if n > len(buf) {
		return nil, fmt.Errorf("frame of %d bytes is larger than buffer (%d bytes)", n, len(buf))
	}
	if _, err := io.ReadFull(r.r, buf[:n]); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

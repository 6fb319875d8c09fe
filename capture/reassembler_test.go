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

package capture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/mjpeg-recorder/handoff"
	"github.com/TheCacophonyProject/mjpeg-recorder/jfif"
	"github.com/TheCacophonyProject/mjpeg-recorder/pump"
)

const (
	testTransferSize = 4096
	testMaxFrameSize = 200000
)

var (
	eoi    = []byte{0xFF, 0xD9, 0xFF}
	noEOI  = []byte{0x12, 0x34, 0x56}
	filler = []byte{0xFF, 0xFF, 0xFF, 0x00, 0xFF, 0xD9, 0xFF}

	testDims = jfif.Dimensions{Width: 640, Height: 480}
)

func testQTables() []byte {
	q := make([]byte, jfif.MetadataLen)
	for i := range q {
		q[i] = byte(i%64 + 1)
	}
	return q
}

// makeChunks splits a frame into chunks of the given sizes. The frame
// starts with the quantization tables and finishes with end.
func makeChunks(end []byte, sizes ...int) []pump.Chunk {
	total := 0
	for _, n := range sizes {
		total += n
	}
	data := bytes.Repeat([]byte{0x11}, total)
	copy(data, testQTables())
	copy(data[total-len(end):], end)

	var chunks []pump.Chunk
	offset := 0
	for _, n := range sizes {
		chunks = append(chunks, pump.Chunk{
			Data:  data[offset : offset+n],
			Short: n < testTransferSize,
		})
		offset += n
	}
	return chunks
}

func cleanFrame() []pump.Chunk {
	return makeChunks(eoi, 4096, 4096, 4096, 1200)
}

func expectedFrame(chunks []pump.Chunk, dims jfif.Dimensions) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c.Data...)
	}
	frame := make([]byte, jfif.HeaderLen)
	jfif.BuildHeader(frame, body[:jfif.MetadataLen], dims)
	return append(frame, body[jfif.MetadataLen:]...)
}

type testPipeline struct {
	r     *Reassembler
	acq   *Acquisition
	stats *Stats
	queue *handoff.Queue
}

func newTestPipeline(maxFrameSize int) *testPipeline {
	p := &testPipeline{
		acq:   new(Acquisition),
		stats: new(Stats),
		queue: handoff.NewQueue(maxFrameSize),
	}
	p.r = NewReassembler(2, maxFrameSize, p.acq, p.stats, p.queue)
	p.r.SetDimensions(testDims)
	return p
}

func (p *testPipeline) feed(chunks []pump.Chunk) {
	for _, c := range chunks {
		p.r.Process(c)
	}
}

func (p *testPipeline) enqueue(t *testing.T, count, size int) {
	for i := 0; i < count; i++ {
		require.NoError(t, p.queue.Enqueue(handoff.NewRequest(size)))
	}
}

func TestFrameAssembly(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	chunks := cleanFrame()
	p.feed(chunks)

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	frame := req.Bytes()
	assert.Len(t, frame, jfif.HeaderLen+3*4096+1200-jfif.MetadataLen)
	assert.Equal(t, expectedFrame(chunks, testDims), frame)

	// 480 high, 640 wide.
	assert.Equal(t, []byte{0x01, 0xE0}, frame[607:609])
	assert.Equal(t, []byte{0x02, 0x80}, frame[609:611])

	assert.Equal(t, uint64(0), req.Sequence())
	c := p.stats.Snapshot()
	assert.Equal(t, uint64(1), c.Frames)
	assert.Equal(t, uint64(1), c.Delivered)
	assert.Equal(t, uint64(1), p.acq.FrameCount())
}

func TestSingleChunkFrame(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	p.feed(makeChunks(eoi, 1000))

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Len(t, req.Bytes(), jfif.HeaderLen+1000-jfif.MetadataLen)
}

func TestOnlyOneHandoffPerFrame(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 3, testMaxFrameSize)
	p.acq.Start(0)

	p.feed(cleanFrame())

	assert.NotNil(t, p.queue.TryTakeReady())
	assert.Nil(t, p.queue.TryTakeReady())
	assert.Equal(t, 2, p.queue.Pending())
}

func TestSkipFirstFrames(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 3, testMaxFrameSize)
	p.acq.Start(2)

	p.feed(cleanFrame())
	p.feed(cleanFrame())
	assert.Nil(t, p.queue.TryTakeReady())
	assert.Equal(t, uint64(2), p.acq.FrameCount())

	p.feed(cleanFrame())
	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Equal(t, uint64(2), req.Sequence())

	c := p.stats.Snapshot()
	assert.Equal(t, uint64(3), c.Frames)
	assert.Equal(t, uint64(2), c.Skipped)
	assert.Equal(t, uint64(1), c.Delivered)
}

func TestBogusFrameDropped(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(1)

	p.feed(makeChunks(filler, 4096, 2000))

	assert.Nil(t, p.queue.TryTakeReady())
	c := p.stats.Snapshot()
	assert.Equal(t, uint64(1), c.Bogus)
	assert.Equal(t, uint64(1), c.Frames)
	assert.Equal(t, uint64(0), c.Skipped)

	// Bogus frames don't use up the skip count.
	assert.Equal(t, 1, p.acq.SkipRemaining())
}

func TestNoEOIFrameForwarded(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	p.feed(makeChunks(noEOI, 4096, 2000))

	assert.NotNil(t, p.queue.TryTakeReady())
	c := p.stats.Snapshot()
	assert.Equal(t, uint64(1), c.NoEOI)
	assert.Equal(t, uint64(1), c.Delivered)
}

func TestNotAcquiringDiscards(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)

	p.feed(cleanFrame())

	assert.Nil(t, p.queue.TryTakeReady())
	c := p.stats.Snapshot()
	assert.Equal(t, uint64(1), c.Discarded)
	assert.Equal(t, uint64(0), c.Frames)
	assert.Equal(t, uint64(0), p.acq.FrameCount())
}

func TestStopMidFrameDiscards(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 2, testMaxFrameSize)
	p.acq.Start(0)

	chunks := cleanFrame()
	p.feed(chunks[:2])
	p.acq.Stop()
	p.feed(chunks[2:])

	assert.Nil(t, p.queue.TryTakeReady())
	assert.Equal(t, uint64(1), p.stats.Snapshot().Discarded)
}

func TestOversizeFrameTruncated(t *testing.T) {
	const maxFrameSize = 2000
	p := newTestPipeline(maxFrameSize)
	p.enqueue(t, 2, maxFrameSize)
	p.acq.Start(0)

	p.feed(makeChunks(eoi, 4096, 4096, 4096, 100))

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Len(t, req.Bytes(), maxFrameSize)
	assert.Equal(t, uint64(1), p.stats.Snapshot().Oversize)

	p.feed(makeChunks(eoi, 4096, 100))
	assert.Equal(t, uint64(2), p.stats.Snapshot().Oversize)
}

func TestNoCaptureBufferDropsFrame(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.acq.Start(0)

	p.feed(cleanFrame())
	assert.Equal(t, uint64(1), p.stats.Snapshot().Dropped)

	// A newly queued buffer gets the next frame, not the dropped one.
	p.enqueue(t, 1, testMaxFrameSize)
	p.feed(cleanFrame())

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Equal(t, uint64(1), req.Sequence())
	assert.Equal(t, uint64(1), p.stats.Snapshot().Delivered)
}

func TestRuntChunkIgnored(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	p.r.Process(pump.Chunk{Data: make([]byte, 50), Short: true})
	assert.Equal(t, uint64(1), p.stats.Snapshot().Runts)
	assert.Equal(t, uint64(0), p.acq.FrameCount())

	p.feed(cleanFrame())
	assert.NotNil(t, p.queue.TryTakeReady())
}

func TestHeaderUsesDimensionsAtFrameStart(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	chunks := cleanFrame()
	p.feed(chunks[:1])
	p.r.SetDimensions(jfif.Dimensions{Width: 320, Height: 240})
	p.feed(chunks[1:])

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Equal(t, expectedFrame(chunks, testDims), req.Bytes())
}

func TestStartResetsPartialFrame(t *testing.T) {
	p := newTestPipeline(testMaxFrameSize)
	p.enqueue(t, 1, testMaxFrameSize)
	p.acq.Start(0)

	p.feed(cleanFrame()[:2])

	p.acq.Start(0)
	chunks := cleanFrame()
	p.feed(chunks)

	req := p.queue.TryTakeReady()
	require.NotNil(t, req)
	assert.Equal(t, expectedFrame(chunks, testDims), req.Bytes())
	assert.Equal(t, uint64(0), req.Sequence())
}

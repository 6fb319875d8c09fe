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

package throttle

import (
	"log"
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/mjpeg-recorder/recorder"
)

// ClipListener is told whenever a clip is refused or cut short
// because the recording budget has run out.
type ClipListener interface {
	WhenThrottled()
}

type discardListener struct{}

func (discardListener) WhenThrottled() {}

// clipBudget measures recording time in JPEG frames. Every frame
// written to a clip spends one frame from the budget, which refills at
// a rate that restores one minimum length clip per MinRefill.
type clipBudget struct {
	bucket  *ratelimit.Bucket
	minClip int64
}

func newClipBudget(config *ThrottlerConfig, minSeconds, fps int, clock ratelimit.Clock) clipBudget {
	capacity := int64(config.BucketSize.Seconds()) * int64(fps)
	minClip := int64(minSeconds) * int64(fps)
	if minClip > capacity {
		log.Printf("minimum clip of %d frames exceeds the %d frame throttle budget; no clips will be written",
			minClip, capacity)
	}
	rate := float64(minClip) / config.MinRefill.Seconds()
	return clipBudget{
		bucket:  ratelimit.NewBucketWithRateAndClock(rate, capacity, clock),
		minClip: minClip,
	}
}

// allowsClip reports whether a whole minimum length clip is available.
func (b clipBudget) allowsClip() bool {
	return b.bucket.Available() >= b.minClip
}

// spendFrame takes one frame from the budget, returning false once
// it is exhausted.
func (b clipBudget) spendFrame() bool {
	return b.bucket.TakeAvailable(1) > 0
}

// ThrottledRecorder sits in front of a clip writer and refuses to
// keep writing JPEG clips once the camera has been recording for too
// long. A camera pointed at constant movement would otherwise fill
// the disk with near identical clips. Clips are only opened when the
// budget covers a minimum length clip, and an open clip is closed as
// soon as the budget runs dry.
type ThrottledRecorder struct {
	clips    recorder.Recorder
	listener ClipListener
	budget   clipBudget
	clipOpen bool
}

func NewThrottledRecorder(
	clips recorder.Recorder,
	config *ThrottlerConfig,
	minSeconds int,
	fps int,
	listener ClipListener,
) *ThrottledRecorder {
	return NewThrottledRecorderWithClock(clips, config, minSeconds, fps, listener, wallClock{})
}

// NewThrottledRecorderWithClock is NewThrottledRecorder with the
// budget refill driven by clock.
func NewThrottledRecorderWithClock(
	clips recorder.Recorder,
	config *ThrottlerConfig,
	minSeconds int,
	fps int,
	listener ClipListener,
	clock ratelimit.Clock,
) *ThrottledRecorder {
	if listener == nil {
		listener = discardListener{}
	}
	return &ThrottledRecorder{
		clips:    clips,
		listener: listener,
		budget:   newClipBudget(config, minSeconds, fps, clock),
	}
}

func (t *ThrottledRecorder) CheckCanRecord() error {
	return t.clips.CheckCanRecord()
}

// StartRecording opens a clip if the budget allows one. A refused
// clip is reported to the listener but is not an error; frames that
// follow keep trying to open the clip as the budget refills.
func (t *ThrottledRecorder) StartRecording() error {
	opened, err := t.openClip()
	if err != nil {
		return err
	}
	if !opened {
		log.Print("clip refused: throttle budget is below one minimum length clip")
		t.listener.WhenThrottled()
	}
	return nil
}

func (t *ThrottledRecorder) StopRecording() error {
	if !t.clipOpen {
		return nil
	}
	t.clipOpen = false
	return t.clips.StopRecording()
}

// WriteFrame passes frame to the open clip, opening one first when
// the budget has recovered. Frames arriving while no clip can be
// opened are dropped silently.
func (t *ThrottledRecorder) WriteFrame(frame []byte) error {
	if !t.clipOpen {
		opened, err := t.openClip()
		if err != nil || !opened {
			return err
		}
	}
	if t.budget.spendFrame() {
		return t.clips.WriteFrame(frame)
	}
	log.Print("clip cut short: throttle budget used up")
	t.listener.WhenThrottled()
	return t.StopRecording()
}

// Recording reports whether a clip is open.
func (t *ThrottledRecorder) Recording() bool {
	return t.clipOpen
}

func (t *ThrottledRecorder) openClip() (bool, error) {
	if t.clipOpen {
		return true, nil
	}
	if !t.budget.allowsClip() {
		return false, nil
	}
	if err := t.clips.StartRecording(); err != nil {
		return false, err
	}
	t.clipOpen = true
	return true, nil
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

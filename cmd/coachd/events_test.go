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
	"testing"
	"time"

	"github.com/TheCacophonyProject/event-reporter/eventclient"
	"github.com/stretchr/testify/assert"
)

func TestReportTransportErrors(t *testing.T) {
	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	var events []eventclient.Event
	r := &eventReporter{
		now: func() time.Time { return now },
		addEvent: func(e eventclient.Event) error {
			events = append(events, e)
			return nil
		},
	}

	r.ReportTransportErrors(10, 25, errors.New("libusb: timeout"))

	assert.Equal(t, []eventclient.Event{{
		Timestamp: now,
		Type:      "coachTransferErrors",
		Details: map[string]interface{}{
			"consecutive": 10,
			"total":       uint64(25),
			"error":       "libusb: timeout",
		},
	}}, events)
}

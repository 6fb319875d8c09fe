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
	"log"
	"time"

	"github.com/TheCacophonyProject/event-reporter/eventclient"
)

// eventReporter records runs of USB transfer errors as events so they
// show up on the server.
type eventReporter struct {
	now      func() time.Time
	addEvent func(eventclient.Event) error
}

func newEventReporter() *eventReporter {
	return &eventReporter{
		now:      time.Now,
		addEvent: eventclient.AddEvent,
	}
}

func (r *eventReporter) ReportTransportErrors(consecutive int, total uint64, err error) {
	log.Printf("%d consecutive transfer errors (%d total): %v", consecutive, total, err)
	event := eventclient.Event{
		Timestamp: r.now(),
		Type:      "coachTransferErrors",
		Details: map[string]interface{}{
			"consecutive": consecutive,
			"total":       total,
			"error":       err.Error(),
		},
	}
	if err := r.addEvent(event); err != nil {
		log.Printf("could not record transfer error event: %v", err)
	}
}

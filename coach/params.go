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

package coach

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Param identifies a sensor parameter on the control channel.
type Param uint16

const (
	ParamStreamRate       Param = 0x2001
	ParamStreamCR         Param = 0x2002
	ParamReqStream        Param = 0x2003
	ParamReqSnapshot      Param = 0x2004
	ParamReqPreview       Param = 0x2005
	ParamSensorFlip       Param = 0x2006
	ParamSnapshotComplete Param = 0x2007
	ParamBrightness       Param = 0x2008
	ParamDCEffect         Param = 0x2009
	ParamPowerOff         Param = 0x200A
	ParamHCEMode          Param = 0x200B
	ParamStreamWidth      Param = 0x200C
	ParamStreamHeight     Param = 0x200D
	ParamHCEVersion       Param = 0x200E
	ParamCustomID         Param = 0x200F
	ParamZoomIn           Param = 0x2176
	ParamZoomOut          Param = 0x2177
	ParamAutoFocus        Param = 0x2146
)

var paramNames = map[Param]string{
	ParamStreamRate:       "stream rate",
	ParamStreamCR:         "stream compression ratio",
	ParamReqStream:        "request stream",
	ParamReqSnapshot:      "request snapshot",
	ParamReqPreview:       "request preview",
	ParamSensorFlip:       "sensor flip",
	ParamSnapshotComplete: "snapshot complete",
	ParamBrightness:       "brightness",
	ParamDCEffect:         "DC effect",
	ParamPowerOff:         "power off",
	ParamHCEMode:          "HCE mode",
	ParamStreamWidth:      "stream width",
	ParamStreamHeight:     "stream height",
	ParamHCEVersion:       "HCE version",
	ParamCustomID:         "custom ID",
	ParamZoomIn:           "zoom in",
	ParamZoomOut:          "zoom out",
	ParamAutoFocus:        "auto focus",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("param 0x%04x", uint16(p))
}

// Control channel request layout. Both directions use vendor request
// 1; wValue selects between setting and getting.
const (
	paramRequest  = 1
	setParamValue = 0x1200
	getParamValue = 0x0300

	setParamLen   = 6
	getParamReply = 4
)

var errShortReply = errors.New("short parameter reply")

// encodeSetParam builds the payload for a set request: the parameter
// followed by the value and the value shifted right by 4, each as a
// little-endian uint16.
func encodeSetParam(p Param, value uint16) []byte {
	b := make([]byte, setParamLen)
	binary.LittleEndian.PutUint16(b[0:], uint16(p))
	binary.LittleEndian.PutUint16(b[2:], value)
	binary.LittleEndian.PutUint16(b[4:], value>>4)
	return b
}

func decodeGetParam(reply []byte) (uint16, error) {
	if len(reply) < 2 {
		return 0, errShortReply
	}
	return binary.LittleEndian.Uint16(reply), nil
}

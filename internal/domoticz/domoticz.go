// Package domoticz pushes sensor readings into Domoticz through its MQTT
// "domoticz/in" interface.
package domoticz

import (
	"fmt"
	"strconv"

	"github.com/zberg/go-smartclim/pkg/smartclim"
)

// Update is a Domoticz device update message for a Temp+Hum sensor.
type Update struct {
	Idx     int    `json:"idx"`
	NValue  int    `json:"nvalue"`
	SValue  string `json:"svalue"`
	Battery int    `json:"Battery"`
}

// SValue formats a reading as "<temperature>;<humidity>;<status>", the
// string value of a Domoticz Temp+Hum device.
func SValue(r smartclim.Reading) string {
	return fmt.Sprintf("%s;%d;%d",
		strconv.FormatFloat(r.Temperature, 'f', 1, 64),
		r.Humidity,
		int(r.HumidityStatus()),
	)
}

// NewUpdate builds the update for device idx from a reading.
func NewUpdate(idx int, r smartclim.Reading) Update {
	return Update{
		Idx:     idx,
		NValue:  0,
		SValue:  SValue(r),
		Battery: r.Battery,
	}
}

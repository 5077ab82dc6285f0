package smartclim

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Constants defined by the BeeWi BBW200 GATT layout
const (
	// PayloadLen is the size of the "get values" characteristic value.
	PayloadLen = 10

	// Byte offsets inside the values payload
	offsetTempLow  = 1
	offsetTempHigh = 2
	offsetHumidity = 4
	offsetBattery  = 9

	// Temperature is a signed count of tenths of a degree split over two
	// bytes, low byte first. Values above signBoundary wrap negative.
	signBoundary = 0x8000
	wrapModulus  = 0x10000
)

// Characteristic UUIDs exposed by the sensor.
const (
	UUIDGetValues        = "a8b3fb43-4834-4051-89d0-3de95cddd318" // handle 0x003f
	UUIDDeviceName       = "00002a00-0000-1000-8000-00805f9b34fb" // handle 0x0003
	UUIDModelNumber      = "00002a24-0000-1000-8000-00805f9b34fb" // handle 0x001b
	UUIDSerialNumber     = "00002a25-0000-1000-8000-00805f9b34fb" // handle 0x001d
	UUIDFirmwareRevision = "00002a26-0000-1000-8000-00805f9b34fb" // handle 0x001f
	UUIDHardwareRevision = "00002a27-0000-1000-8000-00805f9b34fb" // handle 0x0021
	UUIDSoftwareRevision = "00002a28-0000-1000-8000-00805f9b34fb" // handle 0x0023
	UUIDManufacturerName = "00002a29-0000-1000-8000-00805f9b34fb" // handle 0x0025
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidHex       = errors.New("invalid hex payload")
)

// Reading is a decoded values payload.
type Reading struct {
	Temperature float64 // degrees Celsius, one decimal
	Humidity    int     // percent
	Battery     int     // percent
}

// HumidityStatus classifies the reading with Classify.
func (r Reading) HumidityStatus() HumidityStatus {
	return Classify(r.Temperature, r.Humidity)
}

// Decode parses the 10 byte value of the "get values" characteristic.
//
// Layout:
//
//	[0]   unused
//	[1:3] temperature, tenths of a degree, low byte first, signed
//	[3]   unused
//	[4]   relative humidity in percent
//	[5:9] unused
//	[9]   battery level in percent
func Decode(data []byte) (Reading, error) {
	if len(data) != PayloadLen {
		return Reading{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedPayload, PayloadLen, len(data))
	}

	raw := int(data[offsetTempHigh])<<8 | int(data[offsetTempLow])
	// 0x8000 itself stays positive; the sensor never reports it in practice.
	if raw > signBoundary {
		raw -= wrapModulus
	}

	return Reading{
		Temperature: float64(raw) / 10.0,
		Humidity:    int(data[offsetHumidity]),
		Battery:     int(data[offsetBattery]),
	}, nil
}

// ParsePayload converts a captured characteristic value into bytes.
// It accepts gatttool output ("Characteristic value/descriptor: 0a d2 ...",
// "Notification handle = 0x003f value: 0a d2 ...") as well as plain hex,
// with or without space, colon, dash or comma separators and per-byte 0x
// prefixes.
func ParsePayload(s string) ([]byte, error) {
	if i := strings.Index(strings.ToLower(s), "value"); i >= 0 {
		j := strings.Index(s[i:], ":")
		if j < 0 {
			return nil, fmt.Errorf("%w: no value after gatttool label", ErrInvalidHex)
		}
		s = s[i+j+1:]
	}

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-', ',':
			return true
		}
		return false
	})

	var b strings.Builder
	for _, tok := range tokens {
		if len(tok) > 1 && tok[0] == '0' && (tok[1] == 'x' || tok[1] == 'X') {
			tok = tok[2:]
		}
		b.WriteString(tok)
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHex)
	}

	data, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return data, nil
}

package smartclim

import "fmt"

// HumidityStatus is the Domoticz humidity status derived from a reading.
type HumidityStatus int

const (
	StatusNormal HumidityStatus = iota
	StatusComfort
	StatusDry
	StatusWet
)

// Heat index regression coefficients (Steadman, Celsius form).
const (
	c1 = -8.78469475556
	c2 = 1.61139411
	c3 = 2.33854883889
	c4 = -0.14611605
	c5 = -0.012308094
	c6 = -0.0164248277778
	c7 = 0.002211732
	c8 = 0.00072546
	c9 = -0.000003582
)

// Status thresholds on the heat index, each lower bound inclusive.
const (
	comfortIndex = 27.0
	dryIndex     = 32.0
	wetIndex     = 41.0
)

func (s HumidityStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusComfort:
		return "comfort"
	case StatusDry:
		return "dry"
	case StatusWet:
		return "wet"
	default:
		return fmt.Sprintf("HumidityStatus(%d)", int(s))
	}
}

// HeatIndex evaluates the biquadratic heat index regression for a
// temperature in Celsius and a relative humidity in percent.
func HeatIndex(temperature float64, humidity int) float64 {
	t := temperature
	h := float64(humidity)
	t2 := t * t
	h2 := h * h

	return c1 + c2*t + c3*h + c4*t*h + c5*t2 + c6*h2 +
		c7*t2*h + c8*t*h2 + c9*t2*h2
}

// StatusForIndex maps a heat index value onto a humidity status.
func StatusForIndex(index float64) HumidityStatus {
	switch {
	case index >= wetIndex:
		return StatusWet
	case index >= dryIndex:
		return StatusDry
	case index >= comfortIndex:
		return StatusComfort
	default:
		return StatusNormal
	}
}

// Classify returns the humidity status for a temperature and humidity pair.
func Classify(temperature float64, humidity int) HumidityStatus {
	return StatusForIndex(HeatIndex(temperature, humidity))
}

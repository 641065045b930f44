package speed

const (
	mphInMetersPerSecond = 2.23694
	kmhInMetersPerSecond = 3.6
)

// Unit is the display unit for speed values.
type Unit string

const (
	UnitMPH Unit = "mph"
	UnitKMH Unit = "kmh"
)

// FromMPS converts a speed in meters per second to the display unit.
func (u Unit) FromMPS(mps float64) float64 {
	switch u {
	case UnitKMH:
		return mps * kmhInMetersPerSecond
	default:
		return mps * mphInMetersPerSecond
	}
}

// Label returns the short label shown next to the speed value.
func (u Unit) Label() string {
	if u == UnitKMH {
		return "km/h"
	}
	return "mph"
}

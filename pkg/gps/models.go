package gps

import "time"

// Fix represents a single reported location sample.
type Fix struct {
	Latitude   float64
	Longitude  float64
	SpeedMPS   float64 // Speed over ground in meters per second
	SpeedValid bool    // False when the provider cannot report speed itself
	Accuracy   float64
	CapturedAt time.Time
}

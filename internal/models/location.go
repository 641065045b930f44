package models

// LocationRecord is the payload synced to the paired device for every
// accepted fix: exactly latitude, longitude and the capture time in Unix
// milliseconds, matching what the companion expects.
type LocationRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      int64   `json:"time"`
}

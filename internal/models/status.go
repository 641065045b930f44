package models

import "time"

// DeviceStatus is the periodic status event published to the paired device.
type DeviceStatus struct {
	DeviceID          string    `json:"device_id"`
	PairedDeviceID    string    `json:"paired_device_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Status            string    `json:"status"`
	UptimeSeconds     uint64    `json:"uptime_seconds"`
	MemoryUsedPercent float64   `json:"memory_used_percent"`
	LoadAverage       float64   `json:"load_average"`
}

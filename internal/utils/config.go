package utils

import (
	"time"

	"github.com/dn51/speedtracker/pkg/file"
)

// Location provider names accepted in configuration.
const (
	ProviderNMEA    = "nmea"
	ProviderNetwork = "network"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // Sync transport broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate (optional)
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Permission struct {
		StateFile string `yaml:"state_file"` // Path to the persisted capability grants
	} `yaml:"permission"`

	Preferences struct {
		File string `yaml:"file"` // Path to the persisted user preferences
	} `yaml:"preferences"`

	Services struct {
		Location struct {
			Provider          string        `yaml:"provider"`        // Fix provider: "nmea" or "network"
			Interval          time.Duration `yaml:"interval"`        // Interval between fixes (in seconds)
			GPSDevicePort     string        `yaml:"gps_device_port"` // Serial port where the GPS receiver is mounted
			GPSDeviceBaudRate int           `yaml:"gps_baud_rate"`   // Baud rate for the GPS receiver
			MapsAPIKey        string        `yaml:"maps_api_key"`    // Google Maps API key for the network provider
		} `yaml:"location"`

		Tracker struct {
			Unit          string        `yaml:"unit"`           // Display unit: "mph" or "kmh"
			DefaultLimit  int           `yaml:"default_limit"`  // Speed limit used until the user picks one
			IndicatorFade time.Duration `yaml:"indicator_fade"` // How long the activity dot stays visible per fix (in milliseconds)
			Workers       int           `yaml:"workers"`        // Worker pool size for off-loop work
		} `yaml:"tracker"`

		Sync struct {
			TopicPrefix string `yaml:"topic_prefix"` // Path prefix for records synced to the paired device
			Urgent      bool   `yaml:"urgent"`       // Request low-latency delivery
		} `yaml:"sync"`

		Status struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the status service
			Interval time.Duration `yaml:"interval"` // Interval between status messages (in seconds)
			QOS      int           `yaml:"qos"`      // MQTT QoS level for status messages
		} `yaml:"status"`

		Display struct {
			ListenAddr string `yaml:"listen_addr"` // Address for the display WebSocket server
		} `yaml:"display"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}

package identity

import (
	"os"

	"github.com/dn51/speedtracker/pkg/file"
)

// Identity holds the wearable's unique identifier and its paired companion.
type Identity struct {
	ID       string `json:"device_id,omitempty"`
	Name     string `json:"device_name,omitempty"`
	PairedID string `json:"paired_device_id,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
	GetPairedDeviceID() string
}

// DeviceInfo manages the device identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) DeviceInfoInterface {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       Identity{},
	}
}

// LoadDeviceInfo reads the device information from the file and populates the Identity field.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil {
		if os.IsNotExist(err) {
			// File does not exist, initialize with default empty values
			d.Identity = Identity{}
			return nil
		}
		return err
	}

	return nil
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}

// GetPairedDeviceID returns the ID of the paired companion device.
func (d *DeviceInfo) GetPairedDeviceID() string {
	return d.Identity.PairedID
}

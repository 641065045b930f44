package gps

import (
	"bufio"
	"errors"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const knotsInMetersPerSecond = 0.514444

// ErrNoDevice indicates the GPS receiver is absent or unreadable.
var ErrNoDevice = errors.New("gps device not available")

// NMEAProvider retrieves location fixes from a GPS receiver connected via serial port.
type NMEAProvider struct {
	port     string // Serial port to which the GPS receiver is connected
	baudRate int    // Baud rate for the serial communication
}

// NewNMEAProvider creates a new instance of NMEAProvider with the specified port and baud rate.
func NewNMEAProvider(port string, baudRate int) *NMEAProvider {
	return &NMEAProvider{
		port:     port,
		baudRate: baudRate,
	}
}

// GetFix reads NMEA sentences from the receiver until it has a position and
// speed over ground, then returns the assembled fix.
func (d *NMEAProvider) GetFix() (Fix, error) {
	c := &serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: 2 * time.Second}
	s, err := serial.OpenPort(c)
	if err != nil {
		return Fix{}, ErrNoDevice
	}
	defer s.Close()

	fix := Fix{}
	gotRMC := false
	gotGGA := false

	scanner := bufio.NewScanner(s)
	for scanner.Scan() && !(gotRMC && gotGGA) {
		line := strings.TrimSpace(scanner.Text())
		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch sent := sentence.(type) {
		case nmea.RMC:
			if sent.Validity != nmea.ValidRMC {
				continue
			}
			fix.Latitude = sent.Latitude
			fix.Longitude = sent.Longitude
			fix.SpeedMPS = sent.Speed * knotsInMetersPerSecond
			fix.SpeedValid = true
			gotRMC = true
		case nmea.GGA:
			fix.Accuracy = float64(sent.HDOP) // Use HDOP as a proxy for accuracy
			gotGGA = true
		}
	}

	if err := scanner.Err(); err != nil {
		return Fix{}, err
	}

	if !gotRMC {
		return Fix{}, errors.New("no valid GPS data found")
	}

	fix.CapturedAt = time.Now()
	return fix, nil
}

// Close is a no-op; the serial port is opened and released per read.
func (d *NMEAProvider) Close() error {
	return nil
}

package gps

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

const earthRadiusMeters = 6371000.0

// getWiFiAccessPoints retrieves nearby WiFi access points using nmcli.
func getWiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	// Verify nmcli is available
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run nmcli: %w", err)
	}

	var wifiAPs []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) != 2 {
			continue
		}
		macAddress := strings.TrimSpace(parts[0])
		if !isValidMAC(macAddress) {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		wifiAPs = append(wifiAPs, maps.WiFiAccessPoint{
			MACAddress:     macAddress,
			SignalStrength: float64(signal),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan nmcli output: %w", err)
	}

	return wifiAPs, nil
}

// isValidMAC checks if the MAC address is in a valid format (e.g., "00:14:22:01:23:45").
func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
		// Octets are unsigned; a signed 8-bit parse would reject 80-FF.
		if _, err := strconv.ParseUint(part, 16, 8); err != nil {
			return false
		}
	}
	return true
}

// DistanceMeters returns the great-circle distance between two fixes.
func DistanceMeters(a, b Fix) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DeriveSpeedMPS computes speed over ground from two consecutive fixes. It
// returns 0 when the fixes are not ordered in time.
func DeriveSpeedMPS(prev, cur Fix) float64 {
	elapsed := cur.CapturedAt.Sub(prev.CapturedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return DistanceMeters(prev, cur) / elapsed
}

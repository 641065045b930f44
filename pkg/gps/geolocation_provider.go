package gps

import (
	"context"
	"time"

	"googlemaps.github.io/maps"
)

// GeolocationProvider resolves the device position through the Google Maps
// Geolocation API from nearby WiFi access points. It is the fallback for
// hardware without a GPS receiver; it cannot report speed over ground, so
// fixes carry SpeedValid=false and the caller derives speed from consecutive
// positions.
type GeolocationProvider struct {
	client *maps.Client // Maps API client for making geolocation requests
}

// NewGeolocationProvider creates a new GeolocationProvider instance.
func NewGeolocationProvider(apiKey string) (*GeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GeolocationProvider{
		client: c,
	}, nil
}

// GetFix retrieves the device's position using the Geolocation API.
func (g *GeolocationProvider) GetFix() (Fix, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		return Fix{}, err
	}

	// Prepare the geolocation request with available data
	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Latitude:   resp.Location.Lat,
		Longitude:  resp.Location.Lng,
		Accuracy:   resp.Accuracy,
		SpeedValid: false,
		CapturedAt: time.Now(),
	}, nil
}

// Close is a no-op; the maps client holds no persistent connection.
func (g *GeolocationProvider) Close() error {
	return nil
}

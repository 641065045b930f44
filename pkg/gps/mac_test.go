package gps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMAC(t *testing.T) {
	tests := []struct {
		name  string
		mac   string
		valid bool
	}{
		{"lowercase", "00:14:22:01:23:45", true},
		{"uppercase", "AA:BB:CC:DD:EE:FF", true},
		{"high octets", "a4:5e:60:c2:f0:8b", true},
		{"too few parts", "00:14:22:01:23", false},
		{"too many parts", "00:14:22:01:23:45:67", false},
		{"short octet", "0:14:22:01:23:45", false},
		{"non-hex octet", "00:14:22:01:23:GZ", false},
		{"wrong separator", "00-14-22-01-23-45", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidMAC(tt.mac))
		})
	}
}

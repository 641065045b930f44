package constants

// Keys and paths for records handed to the cross-device sync transport. The
// companion app reads the same keys; do not rename without a paired release.
const (
	LocationPath = "location"
	KeyLatitude  = "latitude"
	KeyLongitude = "longitude"
	KeyTime      = "time"

	StatusPath  = "status"
	StatusAlive = "Alive"
)

// PrefsSpeedLimitKey stores the user-selected speed limit between launches.
const PrefsSpeedLimitKey = "SpeedLimit"

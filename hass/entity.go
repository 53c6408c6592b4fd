package hass

const (
	BooleanOnValue  = "on"
	BooleanOffValue = "off"

	UnknownValue     = "unknown"
	UnavailableValue = "unavailable"
	OfflineValue     = "offline"
)

// IsOfflineState reports whether a raw entity state belongs to the set of
// lifecycle states Home Assistant (or the device firmware) uses to signal the
// entity itself is gone, as opposed to carrying a real reading.
func IsOfflineState(state string) bool {
	switch state {
	case UnavailableValue, UnknownValue, OfflineValue:
		return true
	}
	return false
}

package watchdog

import (
	"strconv"
	"strings"
	"time"

	"github.com/alexprokopov1992/svitlobot-HA/hass"
)

// Observation is a single raw reading of the watched entity.
type Observation struct {
	// State is the raw state string as reported by the entity.
	State string
	// Available is false when the entity is missing from the state registry.
	Available bool
	// LastUpdated is when the entity value last changed, per Home Assistant.
	LastUpdated time.Time
}

// Unavailable is the observation used when the entity cannot be read at all.
func Unavailable() Observation {
	return Observation{State: hass.UnavailableValue}
}

// Offline reports whether the observation carries no usable reading: the
// entity is missing, or its own lifecycle state marks it gone.
func (o Observation) Offline() bool {
	return !o.Available || hass.IsOfflineState(o.State)
}

// ParseVoltage parses a sensor state as a voltage reading. Comma decimal
// separators are tolerated. Returns nil for non-numeric states.
func ParseVoltage(state string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(state), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

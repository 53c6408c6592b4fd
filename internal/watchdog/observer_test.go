package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"github.com/alexprokopov1992/svitlobot-HA/hass"
)

func parseEvent(t *testing.T, raw string) *fastjson.Value {
	t.Helper()
	v, err := fastjson.Parse(raw)
	require.NoError(t, err)
	return v
}

func TestDecodeStateChange(t *testing.T) {
	v := parseEvent(t, `{
		"id": 1,
		"type": "event",
		"event": {
			"event_type": "state_changed",
			"data": {
				"entity_id": "sensor.voltage",
				"old_state": {"state": "229.9"},
				"new_state": {
					"entity_id": "sensor.voltage",
					"state": "231.2",
					"last_changed": "2025-11-03T12:00:00+00:00"
				}
			}
		}
	}`)

	obs, ok := decodeStateChange(v)
	require.True(t, ok)
	assert.Equal(t, "231.2", obs.State)
	assert.True(t, obs.Available)
	assert.Equal(t, time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC), obs.LastUpdated.UTC())
	assert.False(t, obs.Offline())
}

func TestDecodeStateChangeRemovedEntity(t *testing.T) {
	v := parseEvent(t, `{
		"id": 1,
		"type": "event",
		"event": {
			"event_type": "state_changed",
			"data": {
				"entity_id": "sensor.voltage",
				"old_state": {"state": "229.9"},
				"new_state": null
			}
		}
	}`)

	obs, ok := decodeStateChange(v)
	require.True(t, ok)
	assert.False(t, obs.Available)
	assert.True(t, obs.Offline())
}

func TestDecodeStateChangeBadTimestampFallsBackToLocalTime(t *testing.T) {
	v := parseEvent(t, `{
		"event": {
			"data": {
				"entity_id": "sensor.voltage",
				"new_state": {"state": "231.2", "last_changed": "not-a-time"}
			}
		}
	}`)

	before := time.Now()
	obs, ok := decodeStateChange(v)
	require.True(t, ok)
	assert.False(t, obs.LastUpdated.Before(before))
}

func TestObservationFromState(t *testing.T) {
	changed := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	obs := observationFromState(&hass.State{
		EntityID:    "sensor.voltage",
		State:       "230.0",
		LastChanged: changed,
	})

	assert.Equal(t, "230.0", obs.State)
	assert.True(t, obs.Available)
	assert.Equal(t, changed, obs.LastUpdated)
}

package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		EntityID:     "sensor.voltage",
		Debounce:     DefaultDebounce,
		StaleTimeout: DefaultStaleTimeout,
		Refresh:      DefaultRefresh,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing entity", func(c *Config) { c.EntityID = "  " }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }},
		{"negative stale timeout", func(c *Config) { c.StaleTimeout = -time.Second }},
		{"negative refresh", func(c *Config) { c.Refresh = -time.Second }},
		{"negative threshold", func(c *Config) { c.PowerOnThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigZeroIntervalsAreValid(t *testing.T) {
	cfg := Config{EntityID: "sensor.voltage"}
	assert.NoError(t, cfg.Validate())
}

func TestParseVoltage(t *testing.T) {
	tests := []struct {
		in       string
		expected *float64
	}{
		{"231.5", ptr(231.5)},
		{"231,5", ptr(231.5)},
		{" 230 ", ptr(230.0)},
		{"unavailable", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseVoltage(tt.in)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestObservationOffline(t *testing.T) {
	assert.True(t, Unavailable().Offline())
	assert.True(t, Observation{State: "unknown", Available: true}.Offline())
	assert.False(t, Observation{State: "230", Available: true}.Offline())
}

package watchdog

import (
	"fmt"
	"strings"
	"time"
)

// Defaults match the options the integration has always shipped with.
const (
	DefaultDebounce     = 10 * time.Second
	DefaultStaleTimeout = 90 * time.Second
	DefaultRefresh      = 30 * time.Second
)

// Config is the immutable per-watcher configuration. A reconfiguration is a
// full teardown and recreate of the watcher.
type Config struct {
	// EntityID is the Home Assistant entity to observe (required).
	EntityID string
	// ChannelKey is the SvitloBot channel key. Empty disables pinging.
	ChannelKey string
	// Debounce is the minimum time a candidate state must persist before a
	// transition commits. Zero commits immediately.
	Debounce time.Duration
	// StaleTimeout treats an observation older than this as no data. Zero
	// disables the staleness check.
	StaleTimeout time.Duration
	// Refresh is the forced entity re-poll period. Zero disables it.
	Refresh time.Duration
	// PowerOnThreshold treats numeric readings below this value (volts) as
	// power absent. Zero disables the threshold and any non-offline reading
	// counts as power present.
	PowerOnThreshold float64
}

// Validate rejects configurations the watcher must not start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.EntityID) == "" {
		return fmt.Errorf("voltage entity id is required")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.StaleTimeout < 0 {
		return fmt.Errorf("stale timeout must not be negative, got %s", c.StaleTimeout)
	}
	if c.Refresh < 0 {
		return fmt.Errorf("refresh interval must not be negative, got %s", c.Refresh)
	}
	if c.PowerOnThreshold < 0 {
		return fmt.Errorf("power-on threshold must not be negative, got %g", c.PowerOnThreshold)
	}
	return nil
}

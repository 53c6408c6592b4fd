package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func online(at time.Time) Observation {
	return Observation{State: "230.1", Available: true, LastUpdated: at}
}

func offline(at time.Time) Observation {
	return Observation{State: "unavailable", Available: true, LastUpdated: at}
}

func TestEngineStartsOffline(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage"})
	assert.False(t, e.State().Online)
	assert.Nil(t, e.State().Pending)
}

func TestEngineImmediateCommitWithoutDebounce(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage"})

	tr, arm := e.Evaluate(online(base), base)
	require.NotNil(t, tr)
	assert.True(t, tr.Online)
	assert.False(t, arm)
	assert.True(t, e.State().Online)
	assert.Nil(t, e.State().Pending)

	tr, arm = e.Evaluate(offline(base), base.Add(time.Second))
	require.NotNil(t, tr)
	assert.False(t, tr.Online)
	assert.False(t, arm)
	assert.False(t, e.State().Online)
}

func TestEngineDebounceArmsInsteadOfCommitting(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage", Debounce: 10 * time.Second})

	// Bring the engine online first.
	_, arm := e.Evaluate(online(base), base)
	assert.True(t, arm)
	tr, _ := e.Evaluate(online(base), base.Add(10*time.Second))
	require.NotNil(t, tr)
	require.True(t, e.State().Online)

	// An opposing observation arms a pending record, no transition yet.
	tr, arm = e.Evaluate(offline(base), base.Add(11*time.Second))
	assert.Nil(t, tr)
	assert.True(t, arm)
	require.NotNil(t, e.State().Pending)
	assert.False(t, *e.State().Pending)
	assert.NotEqual(t, e.State().Online, *e.State().Pending)
}

func TestEngineFlapAbsorbed(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage", Debounce: 10 * time.Second})
	_, _ = e.Evaluate(online(base), base)
	_, _ = e.Evaluate(online(base), base.Add(10*time.Second))
	require.True(t, e.State().Online)

	// online -> offline -> online within the debounce window: the offline
	// transition must never commit.
	tr, arm := e.Evaluate(offline(base), base.Add(12*time.Second))
	assert.Nil(t, tr)
	assert.True(t, arm)

	tr, arm = e.Evaluate(online(base.Add(15*time.Second)), base.Add(15*time.Second))
	assert.Nil(t, tr)
	assert.False(t, arm)
	assert.Nil(t, e.State().Pending, "reconfirmation must cancel the pending debounce")
	assert.True(t, e.State().Online)

	// A late debounce firing re-evaluates the latest observation and is a
	// no-op.
	tr, _ = e.Evaluate(online(base.Add(15*time.Second)), base.Add(22*time.Second))
	assert.Nil(t, tr)
	assert.True(t, e.State().Online)
}

func TestEngineDebounceCommitAfterWindow(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage", Debounce: 10 * time.Second})
	_, _ = e.Evaluate(online(base), base)
	_, _ = e.Evaluate(online(base), base.Add(10*time.Second))
	require.True(t, e.State().Online)

	_, arm := e.Evaluate(offline(base), base.Add(20*time.Second))
	require.True(t, arm)

	// Debounce timer fires: same observation, window elapsed.
	tr, arm := e.Evaluate(offline(base), base.Add(30*time.Second))
	require.NotNil(t, tr)
	assert.False(t, tr.Online)
	assert.False(t, arm)
	assert.False(t, e.State().Online)
	assert.Nil(t, e.State().Pending, "a confirmed pending value collapses into the verdict")
}

func TestEngineStaleObservationGoesOffline(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage", StaleTimeout: 60 * time.Second})

	tr, _ := e.Evaluate(online(base), base)
	require.NotNil(t, tr)
	require.True(t, tr.Online)

	// Same observation re-evaluated past the stale timeout: offline, with no
	// new observation having arrived.
	tr, _ = e.Evaluate(online(base), base.Add(61*time.Second))
	require.NotNil(t, tr)
	assert.False(t, tr.Online)
}

func TestEngineNeverStaleWhenDisabled(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage"})

	_, _ = e.Evaluate(online(base), base)
	require.True(t, e.State().Online)

	tr, _ := e.Evaluate(online(base), base.Add(365*24*time.Hour))
	assert.Nil(t, tr)
	assert.True(t, e.State().Online, "a sensor that stops updating must stay online forever")
}

func TestEngineOfflineStatesRegardlessOfFreshness(t *testing.T) {
	for _, state := range []string{"unavailable", "unknown", "offline"} {
		t.Run(state, func(t *testing.T) {
			e := NewEngine(Config{EntityID: "sensor.voltage", StaleTimeout: 60 * time.Second})
			_, _ = e.Evaluate(online(base), base)
			require.True(t, e.State().Online)

			obs := Observation{State: state, Available: true, LastUpdated: base}
			tr, _ := e.Evaluate(obs, base.Add(time.Second))
			require.NotNil(t, tr)
			assert.False(t, tr.Online)
		})
	}
}

func TestEngineUnavailableEntity(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage"})
	_, _ = e.Evaluate(online(base), base)
	require.True(t, e.State().Online)

	tr, _ := e.Evaluate(Unavailable(), base.Add(time.Second))
	require.NotNil(t, tr)
	assert.False(t, tr.Online)
	assert.Equal(t, "unavailable", e.State().WatchedState)
}

func TestEnginePowerOnThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		state     string
		online    bool
	}{
		{"below threshold", 100, "95.5", false},
		{"above threshold", 100, "231.5", true},
		{"comma decimal", 100, "231,5", true},
		{"non-numeric passes", 100, "ok", true},
		{"disabled threshold", 0, "0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Config{EntityID: "sensor.voltage", PowerOnThreshold: tt.threshold})
			obs := Observation{State: tt.state, Available: true, LastUpdated: base}
			e.Evaluate(obs, base)
			assert.Equal(t, tt.online, e.State().Online)
		})
	}
}

func TestEngineTracksAttributesWithoutTransition(t *testing.T) {
	e := NewEngine(Config{EntityID: "sensor.voltage"})
	_, _ = e.Evaluate(online(base), base)

	obs := Observation{State: "229.8", Available: true, LastUpdated: base.Add(time.Second)}
	tr, _ := e.Evaluate(obs, base.Add(time.Second))
	assert.Nil(t, tr)
	assert.Equal(t, "229.8", e.State().WatchedState)
	require.NotNil(t, e.State().Voltage)
	assert.Equal(t, 229.8, *e.State().Voltage)
	assert.Equal(t, base.Add(time.Second), e.State().LastEvaluated)
}

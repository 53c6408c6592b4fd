package watchdog

import "time"

// StableState is the durable record owned by the engine.
type StableState struct {
	// Online is the confirmed, debounced verdict.
	Online bool
	// Pending is a candidate verdict awaiting debounce confirmation, nil when
	// no debounce is in flight. When set it always differs from Online.
	Pending *bool
	// PendingSince is when the pending candidate was first observed.
	PendingSince time.Time
	// WatchedState is the last raw state observed, exposed as an attribute.
	WatchedState string
	// Voltage is the last parsed numeric reading, nil when non-numeric.
	Voltage *float64
	// LastEvaluated is when the engine last folded an observation.
	LastEvaluated time.Time
}

// Transition is a committed change of the stable verdict.
type Transition struct {
	Online bool
	At     time.Time
}

// Engine turns noisy, irregularly-timed observations into a stable
// online/offline verdict. It is pure: time is always injected and the caller
// serializes access, so there is no locking here.
type Engine struct {
	cfg Config
	st  StableState
}

// NewEngine creates an engine that starts offline until the first
// observation says otherwise.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// State returns a copy of the current stable state.
func (e *Engine) State() StableState {
	return e.st
}

// Evaluate folds one observation into the state machine. It returns the
// committed transition, if any, and whether the caller should (re)arm the
// debounce confirmation timer.
//
// The same call path serves change events, stale-check ticks and debounce
// timer firings: a pending candidate that has aged past the debounce window
// commits here, and a debounce firing after the flap already resolved is a
// no-op because the candidate matches the stable verdict again.
func (e *Engine) Evaluate(obs Observation, now time.Time) (*Transition, bool) {
	candidate, voltage := e.candidate(obs, now)

	e.st.WatchedState = obs.State
	e.st.Voltage = voltage
	e.st.LastEvaluated = now

	if candidate == e.st.Online {
		// Reconfirmation of the stable verdict cancels any in-flight
		// opposite-direction debounce.
		e.st.Pending = nil
		return nil, false
	}

	if e.cfg.Debounce <= 0 {
		return e.commit(candidate, now), false
	}

	if e.st.Pending == nil || *e.st.Pending != candidate {
		pending := candidate
		e.st.Pending = &pending
		e.st.PendingSince = now
		return nil, true
	}

	if now.Sub(e.st.PendingSince) >= e.cfg.Debounce {
		return e.commit(candidate, now), false
	}

	return nil, false
}

func (e *Engine) commit(online bool, now time.Time) *Transition {
	e.st.Online = online
	e.st.Pending = nil
	return &Transition{Online: online, At: now}
}

// candidate computes the instantaneous verdict for one observation:
// offline-state or unavailable readings never count as power present, a
// numeric reading below the configured threshold counts as power absent, and
// an otherwise-online reading older than the stale timeout counts as no data.
func (e *Engine) candidate(obs Observation, now time.Time) (bool, *float64) {
	if obs.Offline() {
		return false, nil
	}

	voltage := ParseVoltage(obs.State)

	if e.cfg.PowerOnThreshold > 0 && voltage != nil && *voltage < e.cfg.PowerOnThreshold {
		return false, voltage
	}

	if e.cfg.StaleTimeout > 0 && now.Sub(obs.LastUpdated) > e.cfg.StaleTimeout {
		return false, voltage
	}

	return true, voltage
}

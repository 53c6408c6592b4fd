package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alexprokopov1992/svitlobot-HA/hass"
	"github.com/alexprokopov1992/svitlobot-HA/internal/metrics"
)

// EntitySource supplies raw observations of the watched entity.
type EntitySource interface {
	// Read returns the entity's current observation. A missing entity is an
	// unavailable observation, not an error.
	Read(ctx context.Context) (Observation, error)
	// RequestRefresh asks the platform to re-poll the entity. Any resulting
	// change flows back through Changes.
	RequestRefresh(ctx context.Context) error
	// Changes streams observations pushed by the platform.
	Changes() <-chan Observation
}

// Pinger sends the outbound liveness signal.
type Pinger interface {
	ChannelPing(ctx context.Context, channelKey string) error
}

// StatePublisher consumes updates of the exposed binary sensor.
type StatePublisher interface {
	PublishState(s Snapshot) error
}

// Snapshot is the exposed binary sensor value plus attributes.
type Snapshot struct {
	Online   bool
	EntityID string
	State    string
	Voltage  *float64
}

// BinaryState renders the verdict in Home Assistant's on/off vocabulary.
func (s Snapshot) BinaryState() string {
	if s.Online {
		return hass.BooleanOnValue
	}
	return hass.BooleanOffValue
}

// Attributes are exposed alongside the binary state.
type Attributes struct {
	WatchedEntityID string   `json:"watched_entity_id"`
	WatchedState    string   `json:"watched_state"`
	Voltage         *float64 `json:"voltage"`
}

func (s Snapshot) Attributes() Attributes {
	return Attributes{
		WatchedEntityID: s.EntityID,
		WatchedState:    s.State,
		Voltage:         s.Voltage,
	}
}

// SensorDocument is the JSON representation served over HTTP.
type SensorDocument struct {
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
}

func (s Snapshot) Document() SensorDocument {
	return SensorDocument{State: s.BinaryState(), Attributes: s.Attributes()}
}

const (
	defaultPingInterval = 30 * time.Second
	defaultStalePoll    = 5 * time.Second
	requestTimeout      = 5 * time.Second
)

// Watcher is the per-instance context object: it owns the stable state, the
// debounce/stale/refresh timers and the ping gate. All evaluation runs on the
// single Run goroutine; nothing else mutates the engine.
type Watcher struct {
	cfg    Config
	source EntitySource
	pinger Pinger
	sinks  []StatePublisher

	engine   *Engine
	lastObs  Observation
	debounce *time.Timer

	mtx        sync.RWMutex
	channelKey string
	snapshot   Snapshot

	// Overridable for tests; defaults applied in NewWatcher.
	pingInterval time.Duration
	stalePoll    time.Duration
	now          func() time.Time

	quit     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(cfg Config, source EntitySource, pinger Pinger, sinks ...StatePublisher) *Watcher {
	return &Watcher{
		cfg:          cfg,
		source:       source,
		pinger:       pinger,
		sinks:        sinks,
		engine:       NewEngine(cfg),
		channelKey:   cfg.ChannelKey,
		snapshot:     Snapshot{EntityID: cfg.EntityID},
		pingInterval: defaultPingInterval,
		stalePoll:    defaultStalePoll,
		now:          time.Now,
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Run executes the evaluation loop until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.stopped)
	defer w.wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("entity_id", w.cfg.EntityID).
		Msg("Watcher starting offline; state is provisional until the first observation")

	obs, err := w.source.Read(ctx)
	if err != nil {
		log.Warn().Err(err).Str("entity_id", w.cfg.EntityID).Msg("Initial read failed, treating entity as unavailable")
		obs = Unavailable()
	}
	w.handle(obs)

	pingTicker := time.NewTicker(w.pingInterval)
	defer pingTicker.Stop()

	var staleTick <-chan time.Time
	if w.cfg.StaleTimeout > 0 {
		t := time.NewTicker(w.stalePoll)
		defer t.Stop()
		staleTick = t.C
	}

	var refreshTick <-chan time.Time
	if w.cfg.Refresh > 0 {
		t := time.NewTicker(w.cfg.Refresh)
		defer t.Stop()
		refreshTick = t.C
	}

	defer w.stopDebounce()

	changes := w.source.Changes()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.quit:
			return nil
		case obs, ok := <-changes:
			if !ok {
				// Stream ended; the stale and refresh timers keep the
				// engine fed until teardown.
				changes = nil
				continue
			}
			w.handle(obs)
		case <-w.debounceFired():
			// Re-evaluate the most recent observation at the current time.
			// Commits the pending transition if it is still valid.
			w.evaluate(w.lastObs)
		case <-staleTick:
			// Re-evaluate the last known observation against current time.
			// Never a network read: a slow platform must not delay timer
			// servicing. New data arrives through the change stream.
			w.evaluate(w.lastObs)
		case <-refreshTick:
			w.fireRefresh(ctx)
		case <-pingTicker.C:
			w.firePing(ctx)
		}
	}
}

// Close stops the loop and all timers, then waits for the loop and any
// in-flight background request to finish. Must not be called before Run.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}

// Snapshot returns the current exposed sensor state.
func (w *Watcher) Snapshot() Snapshot {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.snapshot
}

// SetChannelKey replaces the ping channel key. The ping gate reads the key
// freshly on every tick, so an empty key silences pings without a restart.
func (w *Watcher) SetChannelKey(key string) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.channelKey = key
}

// ChannelKey returns the currently configured ping channel key.
func (w *Watcher) ChannelKey() string {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.channelKey
}

func (w *Watcher) handle(obs Observation) {
	metrics.ObservationsTotal.Inc()
	w.lastObs = obs
	w.evaluate(obs)
}

func (w *Watcher) evaluate(obs Observation) {
	now := w.now()
	transition, armDebounce := w.engine.Evaluate(obs, now)

	if armDebounce {
		w.armDebounce()
	}

	if !obs.LastUpdated.IsZero() {
		metrics.ObservationAgeSeconds.Set(now.Sub(obs.LastUpdated).Seconds())
	}

	if transition != nil {
		direction := "offline"
		online := float64(0)
		if transition.Online {
			direction = "online"
			online = 1
		}

		log.Info().
			Str("entity_id", w.cfg.EntityID).
			Bool("online", transition.Online).
			Str("watched_state", obs.State).
			Msg("Power state transition")

		metrics.TransitionsTotal.WithLabelValues(direction).Inc()
		metrics.PowerOnline.Set(online)
	}

	w.publish(transition != nil)
}

// publish refreshes the exposed snapshot and notifies sinks when either the
// verdict or the attributes changed.
func (w *Watcher) publish(transitioned bool) {
	st := w.engine.State()
	snap := Snapshot{
		Online:   st.Online,
		EntityID: w.cfg.EntityID,
		State:    st.WatchedState,
		Voltage:  st.Voltage,
	}

	w.mtx.Lock()
	changed := transitioned ||
		snap.State != w.snapshot.State ||
		!voltageEqual(snap.Voltage, w.snapshot.Voltage)
	w.snapshot = snap
	w.mtx.Unlock()

	if !changed {
		return
	}

	for _, sink := range w.sinks {
		if err := sink.PublishState(snap); err != nil {
			log.Warn().Err(err).Msg("Failed to publish sensor state")
		}
	}
}

func voltageEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (w *Watcher) armDebounce() {
	if w.debounce == nil {
		w.debounce = time.NewTimer(w.cfg.Debounce)
		return
	}
	w.stopDebounce()
	w.debounce.Reset(w.cfg.Debounce)
}

// debounceFired returns the debounce timer channel, or a nil channel that
// never fires when no timer was armed yet.
func (w *Watcher) debounceFired() <-chan time.Time {
	if w.debounce == nil {
		return nil
	}
	return w.debounce.C
}

func (w *Watcher) stopDebounce() {
	if w.debounce == nil {
		return
	}
	if !w.debounce.Stop() {
		select {
		case <-w.debounce.C:
		default:
		}
	}
}

// fireRefresh dispatches a fire-and-forget entity re-poll. The result, if
// any, arrives through the normal observation path.
func (w *Watcher) fireRefresh(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		rctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		if err := w.source.RequestRefresh(rctx); err != nil {
			log.Warn().Err(err).Str("entity_id", w.cfg.EntityID).Msg("Entity refresh request failed")
			return
		}
		metrics.RefreshesTotal.Inc()
	}()
}

// firePing dispatches the liveness ping when a channel key is configured and
// the stable verdict is online. The request runs in the background so it can
// never delay a timer firing.
func (w *Watcher) firePing(ctx context.Context) {
	key := w.ChannelKey()
	if key == "" {
		return
	}
	if !w.engine.State().Online {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		pctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		if err := w.pinger.ChannelPing(pctx, key); err != nil {
			log.Warn().Err(err).Msg("SvitloBot channel ping failed")
			metrics.PingsTotal.WithLabelValues("error").Inc()
			return
		}
		metrics.PingsTotal.WithLabelValues("ok").Inc()
	}()
}

package watchdog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"

	"github.com/alexprokopov1992/svitlobot-HA/hass"
	"github.com/alexprokopov1992/svitlobot-HA/pkg/channel"
)

// Observer adapts the Home Assistant client into the watcher's EntitySource.
// It filters the state_changed stream down to the watched entity and decodes
// the frames into observations.
type Observer struct {
	client   *hass.Client
	entityID string
	changes  chan Observation
}

func NewObserver(ctx context.Context, client *hass.Client, entityID string) (*Observer, error) {
	events, err := client.SubscribeStateChanges(ctx)
	if err != nil {
		return nil, err
	}

	watched := channel.Filter(events, func(v *fastjson.Value) bool {
		return string(v.GetStringBytes("event", "data", "entity_id")) == entityID
	})

	observations := channel.Map(watched, decodeStateChange)

	return &Observer{
		client:   client,
		entityID: entityID,
		changes:  channel.Buffered(observations, 16),
	}, nil
}

func (o *Observer) Read(ctx context.Context) (Observation, error) {
	state, err := o.client.GetState(ctx, o.entityID)
	if errors.Is(err, hass.ErrEntityNotFound) {
		return Unavailable(), nil
	}
	if err != nil {
		return Unavailable(), err
	}
	return observationFromState(state), nil
}

func (o *Observer) RequestRefresh(ctx context.Context) error {
	return o.client.UpdateEntity(ctx, o.entityID)
}

func (o *Observer) Changes() <-chan Observation {
	return o.changes
}

func observationFromState(state *hass.State) Observation {
	return Observation{
		State:       state.State,
		Available:   true,
		LastUpdated: state.LastChanged,
	}
}

func decodeStateChange(v *fastjson.Value) (Observation, bool) {
	newState := v.Get("event", "data", "new_state")
	if newState == nil || newState.Type() == fastjson.TypeNull {
		// Entity removed from the registry.
		return Unavailable(), true
	}

	obs := Observation{
		State:     string(newState.GetStringBytes("state")),
		Available: true,
	}

	raw := string(newState.GetStringBytes("last_changed"))
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Warn().Str("last_changed", raw).Msg("Unparseable last_changed on state_changed event, using local time")
		ts = time.Now()
	}
	obs.LastUpdated = ts

	return obs, true
}

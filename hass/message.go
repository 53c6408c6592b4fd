package hass

import (
	"time"

	"github.com/goccy/go-json"
)

const (
	MessageTypeResult       = "result"
	MessageTypeAuthRequired = "auth_required"
	MessageTypeAuthOK       = "auth_ok"
	MessageTypeAuthInvalid  = "auth_invalid"
	MessageTypeEvent        = "event"

	MessageTypeAuth            = "auth"
	MessageTypeSubscribeEvents = "subscribe_events"
	MessageTypeGetStates       = "get_states"
	MessageTypeCallService     = "call_service"
)

type BaseMessage struct {
	ID   int    `json:"id,omitempty"`
	Type string `json:"type"`
}

// AuthMessage is sent to Home Assistant to authenticate.
// Type is "auth".
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type SubscribeEventsMessage struct {
	BaseMessage
	EventType EventType `json:"event_type,omitempty"`
}

type GetStatesMessage struct {
	BaseMessage
}

// CallServiceMessage invokes a Home Assistant service, e.g.
// homeassistant.update_entity to force a sensor re-poll.
type CallServiceMessage struct {
	BaseMessage
	Domain  string        `json:"domain"`
	Service string        `json:"service"`
	Target  ServiceTarget `json:"target,omitempty"`
}

type ServiceTarget struct {
	EntityID string `json:"entity_id,omitempty"`
}

type EventType string

const (
	EventTypeStateChanged EventType = "state_changed"
)

// State is a single entity state as returned by get_states or carried inside
// a state_changed event.
type State struct {
	EntityID     string          `json:"entity_id"`
	State        string          `json:"state"`
	Attributes   json.RawMessage `json:"attributes"`
	LastChanged  time.Time       `json:"last_changed"`
	LastUpdated  time.Time       `json:"last_updated"`
	LastReported *time.Time      `json:"last_reported,omitempty"`
}

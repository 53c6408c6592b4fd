package hass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"
)

// ErrEntityNotFound is returned by GetState when the watched entity does not
// exist in the Home Assistant state registry.
var ErrEntityNotFound = errors.New("entity not found")

const resultDefaultTimeout = time.Second * 5

// Client is a websocket API client for Home Assistant.
type Client struct {
	Host  string
	Token string

	conn     *websocket.Conn
	writeMtx sync.Mutex

	commandID    int
	results      map[int]chan *fastjson.Value
	subscribers  map[int]chan *fastjson.Value
	receiversMtx sync.Mutex

	authenticated chan struct{}
	authFailed    chan struct{}

	receiveCancel context.CancelFunc

	subscriberBufferSize int
	resultTimeout        time.Duration
}

func NewClient(host, token string) *Client {
	return &Client{
		Host:  host,
		Token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/websocket", c.Host)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{
		"User-Agent": []string{"svitlobot-watchdog"},
	})
	if err != nil {
		return fmt.Errorf("failed to dial Home Assistant websocket: %w", err)
	}

	c.conn = conn
	c.results = make(map[int]chan *fastjson.Value)
	c.subscribers = make(map[int]chan *fastjson.Value)
	c.authenticated = make(chan struct{})
	c.authFailed = make(chan struct{})

	receiveCtx, cancel := context.WithCancel(context.Background())
	c.receiveCancel = cancel

	go c.receive(receiveCtx)

	return nil
}

// WaitAuthenticated blocks until the auth handshake completes.
func (c *Client) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.authFailed:
		return errors.New("home assistant rejected the access token")
	case <-c.authenticated:
		return nil
	}
}

// SubscribeStateChanges subscribes to state_changed events. The returned
// channel carries raw event frames; it stays open for the lifetime of the
// connection.
func (c *Client) SubscribeStateChanges(ctx context.Context) (chan *fastjson.Value, error) {
	events := make(chan *fastjson.Value, c.subscriberBuffer())

	// The subscriber is registered before the command round trip so an event
	// arriving right behind the result frame is never dropped.
	id := c.nextID()
	c.receiversMtx.Lock()
	c.subscribers[id] = events
	c.receiversMtx.Unlock()

	_, err := c.command(ctx, id, SubscribeEventsMessage{
		BaseMessage: BaseMessage{ID: id, Type: MessageTypeSubscribeEvents},
		EventType:   EventTypeStateChanged,
	})
	if err != nil {
		c.receiversMtx.Lock()
		delete(c.subscribers, id)
		c.receiversMtx.Unlock()
		return nil, fmt.Errorf("failed to subscribe to state_changed events: %w", err)
	}

	log.Info().Int("id", id).Msg("Subscribed to state_changed events")

	return events, nil
}

// GetState reads the current state of a single entity via get_states.
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	id := c.nextID()
	result, err := c.command(ctx, id, GetStatesMessage{BaseMessage{ID: id, Type: MessageTypeGetStates}})
	if err != nil {
		return nil, fmt.Errorf("failed to get states: %w", err)
	}

	for _, v := range result.GetArray("result") {
		if string(v.GetStringBytes("entity_id")) != entityID {
			continue
		}

		var state State
		if err := json.Unmarshal(v.MarshalTo(nil), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state of %s: %w", entityID, err)
		}
		return &state, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
}

// UpdateEntity asks Home Assistant to re-poll an entity out of its normal
// update cadence (homeassistant.update_entity).
func (c *Client) UpdateEntity(ctx context.Context, entityID string) error {
	id := c.nextID()
	_, err := c.command(ctx, id, CallServiceMessage{
		BaseMessage: BaseMessage{ID: id, Type: MessageTypeCallService},
		Domain:      "homeassistant",
		Service:     "update_entity",
		Target:      ServiceTarget{EntityID: entityID},
	})
	if err != nil {
		return fmt.Errorf("failed to call homeassistant.update_entity: %w", err)
	}

	return nil
}

func (c *Client) nextID() int {
	c.receiversMtx.Lock()
	defer c.receiversMtx.Unlock()
	c.commandID++
	return c.commandID
}

// command sends a single request frame and waits for its result frame.
func (c *Client) command(ctx context.Context, id int, msg any) (*fastjson.Value, error) {
	c.receiversMtx.Lock()
	resultChan := make(chan *fastjson.Value, 1)
	c.results[id] = resultChan
	c.receiversMtx.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.write(payload); err != nil {
		c.closeResult(id)
		return nil, fmt.Errorf("failed to send message to Home Assistant: %w", err)
	}

	resultTimeout := resultDefaultTimeout
	if c.resultTimeout > 0 {
		resultTimeout = c.resultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, resultTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		c.closeResult(id)
		return nil, fmt.Errorf("timeout waiting for Home Assistant result: %w", ctx.Err())
	case v := <-resultChan:
		if typ := string(v.GetStringBytes("type")); typ != MessageTypeResult {
			return nil, fmt.Errorf("unexpected message type received waiting for a result: %s", typ)
		}

		if !v.GetBool("success") {
			code := string(v.GetStringBytes("error", "code"))
			message := string(v.GetStringBytes("error", "message"))

			log.Error().
				Int("id", id).
				Str("code", code).
				Str("message", message).
				Msg("Home Assistant command failed")

			return nil, fmt.Errorf("command %d failed: %s: %s", id, code, message)
		}

		return v, nil
	}
}

func (c *Client) write(payload []byte) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) closeResult(id int) {
	c.receiversMtx.Lock()
	defer c.receiversMtx.Unlock()
	delete(c.results, id)
}

func (c *Client) subscriberBuffer() int {
	if c.subscriberBufferSize > 0 {
		return c.subscriberBufferSize
	}
	return 16
}

func (c *Client) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Closing Home Assistant websocket receive message loop")
			return
		default:
			_, payload, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Msg("Home Assistant websocket connection closed")
					return
				}

				select {
				case <-ctx.Done():
					return
				default:
				}

				log.Err(err).Msg("Failed to read message from Home Assistant websocket")
				return
			}

			v, err := fastjson.ParseBytes(payload)
			if err != nil {
				log.Err(err).Msg("Failed to parse message from Home Assistant")
				continue
			}

			typ := string(v.GetStringBytes("type"))

			switch typ {
			case "":
				log.Error().Msg("Received message from Home Assistant without a type")
			case MessageTypeAuthRequired:
				c.authenticate()
			case MessageTypeAuthOK:
				version := string(v.GetStringBytes("ha_version"))
				log.Info().Str("version", version).Msg("Authenticated with Home Assistant")
				close(c.authenticated)
			case MessageTypeAuthInvalid:
				log.Error().Bytes(
					"message",
					v.GetStringBytes("message"),
				).Msg("Failed to authenticate with Home Assistant")
				close(c.authFailed)
			default:
				c.dispatch(v)
			}
		}
	}
}

func (c *Client) dispatch(v *fastjson.Value) {
	id := v.GetInt("id")

	if id == 0 {
		log.Warn().Msg("Received message from Home Assistant without an ID")
		return
	}

	c.receiversMtx.Lock()

	if resultChan, ok := c.results[id]; ok {
		delete(c.results, id)
		c.receiversMtx.Unlock()
		resultChan <- v
		return
	}

	events, ok := c.subscribers[id]
	c.receiversMtx.Unlock()

	if !ok {
		log.Warn().Int("id", id).Msg("Received message from Home Assistant with an unknown ID")
		return
	}

	select {
	case events <- v:
	default:
		log.Warn().Int("id", id).Msg("Dropping event, subscriber is not keeping up")
	}
}

func (c *Client) authenticate() {
	log.Info().Msg("Authenticating with Home Assistant")

	payload, err := json.Marshal(AuthMessage{Type: MessageTypeAuth, AccessToken: c.Token})
	if err != nil {
		log.Err(err).Msg("Failed to marshal auth message")
		return
	}

	if err := c.write(payload); err != nil {
		log.Err(err).Msg("Failed to send auth message to Home Assistant")
	}
}

func (c *Client) Close() error {
	log.Info().Msg("Closing Home Assistant websocket connection")

	if c.receiveCancel != nil {
		c.receiveCancel()
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

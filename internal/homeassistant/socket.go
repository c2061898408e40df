package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/automolid/automolid/pkg/pubsub"
	"github.com/gorilla/websocket"
)

// Socket listens on the Home Assistant websocket API and publishes every
// state_changed event. It also keeps the Store current so rooms can read
// sensor values without a round trip.
type Socket struct {
	URL       string
	Token     string
	Publisher *pubsub.Publisher[Event]
	Store     *Store
	Logger    *slog.Logger
}

const reconnectMaxBackoff = 30 * time.Second

// WebsocketURL converts a Home Assistant base URL into its websocket API endpoint.
func WebsocketURL(baseURL string) string {
	url := strings.TrimSuffix(baseURL, "/")
	if after, found := strings.CutPrefix(url, "http"); found {
		url = "ws" + after
	}
	return url + "/api/websocket"
}

// Run connects to Home Assistant and streams events until ctx is done. Lost
// connections are retried with exponential backoff.
func (s *Socket) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.listen(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		s.Logger.Warn("connection lost", "err", err, "retry", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}

func (s *Socket) listen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err = s.authenticate(conn); err != nil {
		return err
	}
	if err = conn.WriteJSON(subscribeRequest{ID: 1, Type: "subscribe_events", EventType: "state_changed"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.Logger.Info("connected", "url", s.URL)

	// unblock ReadJSON when ctx is canceled
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg message
		if err = conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		switch msg.Type {
		case "event":
			s.handleEvent(msg)
		case "result":
			if msg.Success != nil && !*msg.Success {
				return fmt.Errorf("subscription refused (id %d)", msg.ID)
			}
		}
	}
}

func (s *Socket) authenticate(conn *websocket.Conn) error {
	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got %q", msg.Type)
	}
	if err := conn.WriteJSON(authRequest{Type: "auth", AccessToken: s.Token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if msg.Type != "auth_ok" {
		return fmt.Errorf("authentication failed: %q", msg.Type)
	}
	return nil
}

func (s *Socket) handleEvent(msg message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}
	var change stateChange
	if err := json.Unmarshal(msg.Event.Data, &change); err != nil {
		s.Logger.Error("invalid state_changed event", "err", err)
		return
	}
	changedAt := msg.Event.TimeFired
	if changedAt.IsZero() {
		changedAt = time.Now()
	}
	if change.NewState != nil {
		s.Store.Set(*change.NewState)
	}
	s.Publisher.Publish(Event{
		EntityID:  change.EntityID,
		OldState:  change.OldState,
		NewState:  change.NewState,
		ChangedAt: changedAt,
	})
}

type message struct {
	ID      int           `json:"id,omitempty"`
	Type    string        `json:"type"`
	Success *bool         `json:"success,omitempty"`
	Event   *eventMessage `json:"event,omitempty"`
}

type eventMessage struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired time.Time       `json:"time_fired"`
}

type stateChange struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

type authRequest struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

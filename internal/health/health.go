// Package health serves the latest state of every room as a JSON health
// endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/automolid/automolid/internal/room"
	"github.com/automolid/automolid/pkg/pubsub"
)

type Health struct {
	updates *pubsub.Publisher[room.Update]
	logger  *slog.Logger
	rooms   map[string]room.Update
	lock    sync.RWMutex
}

func New(updates *pubsub.Publisher[room.Update], logger *slog.Logger) *Health {
	return &Health{
		updates: updates,
		logger:  logger,
		rooms:   make(map[string]room.Update),
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.updates.Subscribe()
	defer h.updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.rooms[update.Room] = update
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if len(h.rooms) == 0 {
		http.Error(w, "no room updates yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.rooms); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

package room

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Manager runs all configured rooms. Rooms are independent and run in
// parallel, each with its own serialized event loop.
type Manager struct {
	rooms []*Room
}

func NewManager(rooms ...*Room) *Manager {
	return &Manager{rooms: rooms}
}

// Run runs all rooms until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, r := range m.rooms {
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}

// Reports returns the latest state of each room, sorted by room name.
func (m *Manager) Reports() []Update {
	updates := make([]Update, 0, len(m.rooms))
	for _, r := range m.rooms {
		updates = append(updates, r.Report())
	}
	slices.SortFunc(updates, func(a, b Update) int { return strings.Compare(a.Room, b.Room) })
	return updates
}

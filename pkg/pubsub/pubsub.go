// Package pubsub implements a basic publish/subscribe mechanism used to fan
// out events to any number of interested components.
package pubsub

import (
	"log/slog"
	"sync"
)

// channelSize is the buffer size of a subscriber's channel. A small buffer
// keeps a slow subscriber from stalling delivery to the others.
const channelSize = 16

// Publisher sends each published item to all subscribed clients.
type Publisher[T any] struct {
	subscribers map[chan T]struct{}
	logger      *slog.Logger
	lock        sync.RWMutex
}

// New returns a new Publisher.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		subscribers: make(map[chan T]struct{}),
		logger:      logger,
	}
}

// Subscribe registers the caller and returns the channel on which it will receive published items.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, channelSize)
	p.subscribers[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.subscribers)))
	return ch
}

// Unsubscribe removes a subscriber. Items already buffered on the channel remain readable.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.subscribers, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.subscribers)))
}

// Publish sends item to all subscribers.
func (p *Publisher[T]) Publish(item T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.subscribers {
		ch <- item
	}
}

// Subscribers returns the current number of subscribers.
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.subscribers)
}

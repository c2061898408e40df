package pubsub_test

import (
	"github.com/automolid/automolid/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"log/slog"
	"sync"
	"testing"
)

func TestPublisher(t *testing.T) {
	p := pubsub.New[int](slog.Default())

	const clients = 5
	var ready, done sync.WaitGroup
	ready.Add(clients)
	done.Add(clients)

	for range clients {
		go func() {
			ch := p.Subscribe()
			defer p.Unsubscribe(ch)
			ready.Done()
			assert.Equal(t, 42, <-ch)
			done.Done()
		}()
	}

	ready.Wait()
	assert.Equal(t, clients, p.Subscribers())
	p.Publish(42)
	done.Wait()
}

func TestPublisher_Unsubscribe(t *testing.T) {
	p := pubsub.New[string](slog.Default())
	ch := p.Subscribe()
	assert.Equal(t, 1, p.Subscribers())
	p.Unsubscribe(ch)
	assert.Zero(t, p.Subscribers())
}

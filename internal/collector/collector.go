// Package collector exposes room state and daily statistics as prometheus
// metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/automolid/automolid/internal/room"
	"github.com/automolid/automolid/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	roomStatus = prometheus.NewDesc(
		prometheus.BuildFQName("automolid", "room", "status"),
		"Room automation status. Always 1. See label 'status'",
		[]string{"room", "status"},
		nil,
	)

	roomLightsOn = prometheus.NewDesc(
		prometheus.BuildFQName("automolid", "room", "lights_on"),
		"1 if the room's lights are on",
		[]string{"room"},
		nil,
	)

	roomTimeOnSeconds = prometheus.NewDesc(
		prometheus.BuildFQName("automolid", "room", "time_on_seconds"),
		"Seconds the room's lights have been on today",
		[]string{"room"},
		nil,
	)

	roomSwitches = prometheus.NewDesc(
		prometheus.BuildFQName("automolid", "room", "switches"),
		"Number of light switches today, by action and trigger",
		[]string{"room", "action", "trigger"},
		nil,
	)
)

// Collector subscribes to room updates and serves the latest state of each
// room on scrape.
type Collector struct {
	Updates *pubsub.Publisher[room.Update]
	Logger  *slog.Logger
	lock    sync.RWMutex
	rooms   map[string]room.Update
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Updates.Subscribe()
	defer c.Updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.lock.Lock()
			if c.rooms == nil {
				c.rooms = make(map[string]room.Update)
			}
			c.rooms[update.Room] = update
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- roomStatus
	ch <- roomLightsOn
	ch <- roomTimeOnSeconds
	ch <- roomSwitches
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for name, update := range c.rooms {
		ch <- prometheus.MustNewConstMetric(roomStatus, prometheus.GaugeValue, 1, name, update.Status.String())

		var lightsOn float64
		if update.Status == room.StatusOnCounting || update.Status == room.StatusOnBlockedOff {
			lightsOn = 1
		}
		ch <- prometheus.MustNewConstMetric(roomLightsOn, prometheus.GaugeValue, lightsOn, name)
		ch <- prometheus.MustNewConstMetric(roomTimeOnSeconds, prometheus.GaugeValue, update.Stats.TimeOn.Seconds(), name)
		ch <- prometheus.MustNewConstMetric(roomSwitches, prometheus.GaugeValue, float64(update.Stats.OnByAutomoli), name, "on", "automoli")
		ch <- prometheus.MustNewConstMetric(roomSwitches, prometheus.GaugeValue, float64(update.Stats.OnManual), name, "on", "manual")
		ch <- prometheus.MustNewConstMetric(roomSwitches, prometheus.GaugeValue, float64(update.Stats.OffByAutomoli), name, "off", "automoli")
		ch <- prometheus.MustNewConstMetric(roomSwitches, prometheus.GaugeValue, float64(update.Stats.OffManual), name, "off", "manual")
	}
}

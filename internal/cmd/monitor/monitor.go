package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/automolid/automolid/internal/bot"
	"github.com/automolid/automolid/internal/collector"
	"github.com/automolid/automolid/internal/configuration"
	"github.com/automolid/automolid/internal/health"
	"github.com/automolid/automolid/internal/homeassistant"
	"github.com/automolid/automolid/internal/notifier"
	"github.com/automolid/automolid/internal/room"
	"github.com/automolid/automolid/pkg/pubsub"
	"github.com/clambin/go-common/slackbot"
	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = cobra.Command{
	Use:   "monitor",
	Short: "Run the motion light daemon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, store, client, err := New(viper.GetViper(), cmd.Root().Version, slog.Default())
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		primeStore(ctx, client, store, slog.Default())
		return m.Run(ctx)
	},
}

// New assembles the daemon's tasks.
func New(cfg *viper.Viper, version string, logger *slog.Logger) (*taskmanager.Manager, *homeassistant.Store, *homeassistant.Client, error) {
	roomsPath := filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "rooms.yaml")
	configs, err := configuration.LoadFile(roomsPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rooms: %w", err)
	}

	haMetrics := homeassistant.NewCallMetrics("automolid", "", nil)
	prometheus.MustRegister(haMetrics)
	client := homeassistant.NewClient(cfg.GetString("homeassistant.url"), cfg.GetString("homeassistant.token"), haMetrics)
	store := homeassistant.NewStore()

	tasks, err := makeTasks(cfg, configs, client, store, version, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return taskmanager.New(tasks...), store, client, nil
}

func makeTasks(cfg *viper.Viper, configs []room.Config, client *homeassistant.Client, store *homeassistant.Store, version string, l *slog.Logger) ([]taskmanager.Task, error) {
	var tasks []taskmanager.Task

	events := pubsub.New[homeassistant.Event](l.With("component", "events"))
	updates := pubsub.New[room.Update](l.With("component", "updates"))

	// Home Assistant event stream
	tasks = append(tasks, &homeassistant.Socket{
		URL:       homeassistant.WebsocketURL(cfg.GetString("homeassistant.url")),
		Token:     cfg.GetString("homeassistant.token"),
		Publisher: events,
		Store:     store,
		Logger:    l.With("component", "socket"),
	})

	// Notifiers
	notifiers := notifier.Notifiers{&notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		notifiers = append(notifiers, &notifier.SlackNotifier{
			SlackSender: slack.New(token),
			Logger:      l.With("component", "notifier"),
		})
	}

	// Rooms
	sun := room.Sun{Latitude: cfg.GetFloat64("location.latitude"), Longitude: cfg.GetFloat64("location.longitude")}
	rooms := make([]*room.Room, 0, len(configs))
	for _, roomCfg := range configs {
		r, err := room.New(roomCfg, client, store, events, updates, notifiers, sun, l)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	manager := room.NewManager(rooms...)
	tasks = append(tasks, manager)

	// Collector & Prometheus server
	coll := &collector.Collector{Updates: updates, Logger: l.With("component", "collector")}
	prometheus.MustRegister(coll)
	tasks = append(tasks, coll)
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health endpoint
	h := health.New(updates, l.With("component", "health"))
	tasks = append(tasks, h)
	r := http.NewServeMux()
	r.Handle("/health", h)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), r))

	// Slackbot
	if token := cfg.GetString("slack.token"); token != "" {
		app := slackbot.New(
			token,
			slackbot.WithName("automolid "+version),
			slackbot.WithLogger(l.With(slog.String("component", "slackbot"))),
		)
		tasks = append(tasks, bot.New(app, manager, l.With(slog.String("component", "bot"))))
	}

	return tasks, nil
}

// primeStore seeds the state store with a full snapshot so blocking policy
// and light state are known before the first event arrives. On failure the
// store fills up from the event stream instead.
func primeStore(ctx context.Context, client *homeassistant.Client, store *homeassistant.Store, logger *slog.Logger) {
	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	states, err := client.GetStates(subCtx)
	if err != nil {
		logger.Warn("failed to get initial states", "err", err)
		return
	}
	store.Load(states)
	logger.Info("state store primed", "entities", len(states))
}

// Package bot implements the Slack slash commands: /rooms shows each room's
// automation state, /stats reports today's statistics on demand.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/automolid/automolid/internal/room"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

type Bot struct {
	SlackApp
	reporter Reporter
	logger   *slog.Logger
}

// Reporter returns the latest state of all rooms.
type Reporter interface {
	Reports() []room.Update
}

type SlackApp interface {
	AddSlashCommand(string, func(slack.SlashCommand, *socketmode.Client))
	Run(ctx context.Context) error
}

func New(app SlackApp, reporter Reporter, logger *slog.Logger) *Bot {
	b := Bot{
		SlackApp: app,
		reporter: reporter,
		logger:   logger,
	}

	b.SlackApp.AddSlashCommand("/rooms", b.post(b.onRooms))
	b.SlackApp.AddSlashCommand("/stats", b.post(b.onStats))

	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("bot started")
	defer b.logger.Debug("bot stopped")
	return b.SlackApp.Run(ctx)
}

func (b *Bot) onRooms(_ ...string) slack.Attachment {
	reports := b.reporter.Reports()
	if len(reports) == 0 {
		return slack.Attachment{Color: "bad", Text: "no rooms configured"}
	}

	text := make([]string, 0, len(reports))
	for _, report := range reports {
		line := fmt.Sprintf("%s: %s (%s)", report.Room, report.Status, report.Daytime)
		if !report.TimerDue.IsZero() {
			line += ", off at " + report.TimerDue.Format(time.TimeOnly)
		}
		text = append(text, line)
	}

	return slack.Attachment{
		Color: "good",
		Title: "rooms:",
		Text:  strings.Join(text, "\n"),
	}
}

func (b *Bot) onStats(args ...string) slack.Attachment {
	reports := b.reporter.Reports()

	text := make([]string, 0, len(reports))
	for _, report := range reports {
		if len(args) > 0 && !strings.EqualFold(args[0], report.Room) {
			continue
		}
		text = append(text, fmt.Sprintf("%s: %s", report.Room, report.Stats))
	}

	if len(text) == 0 {
		return slack.Attachment{Color: "bad", Text: "no matching rooms"}
	}
	return slack.Attachment{
		Color: "good",
		Title: "today:",
		Text:  strings.Join(text, "\n"),
	}
}

func (b *Bot) post(f func(...string) slack.Attachment) func(cmd slack.SlashCommand, c *socketmode.Client) {
	return func(cmd slack.SlashCommand, c *socketmode.Client) {
		a := f(tokenizeText(cmd.Text)...)
		if _, _, err := c.PostMessage(cmd.ChannelID, slack.MsgOptionAttachments(a)); err != nil {
			b.logger.Error("failed to post response", "err", err)
		}
	}
}

func tokenizeText(input string) []string {
	fields := strings.Fields(input)
	for i, field := range fields {
		fields[i] = strings.Trim(field, `"`)
	}
	return fields
}

package notifier

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
)

func TestNotifiers(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{ReplaceAttr: removeTime}))
	sender := fakeSender{}

	n := Notifiers{
		&SLogNotifier{Logger: logger},
		&SlackNotifier{SlackSender: &sender, Logger: logger},
	}
	n.Notify("kitchen: turning lights off")

	assert.Equal(t, "level=INFO msg=\"kitchen: turning lights off\"\n", out.String())
	assert.Equal(t, 1, sender.posted)
}

func TestSlackNotifier_Error(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{ReplaceAttr: removeTime}))
	n := SlackNotifier{SlackSender: &fakeSender{err: errors.New("auth failed")}, Logger: logger}
	n.Notify("hello")
	assert.Contains(t, out.String(), "notifier failed to retrieve channels")
}

type fakeSender struct {
	posted int
	err    error
}

func (f *fakeSender) PostMessage(_ string, _ ...slack.MsgOption) (string, string, error) {
	f.posted++
	return "", "", nil
}

func (f *fakeSender) GetConversations(_ *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	channel := slack.Channel{}
	channel.ID = "C123456"
	channel.Name = "automolid"
	channel.IsMember = true
	return []slack.Channel{channel}, "", nil
}

func (f *fakeSender) AuthTest() (*slack.AuthTestResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &slack.AuthTestResponse{UserID: "U123456"}, nil
}

func removeTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.Attr{}
	}
	return a
}

package notifier

import "log/slog"

var _ Notifier = &SLogNotifier{}

// SLogNotifier writes notifications to a slog Logger.
type SLogNotifier struct {
	Logger *slog.Logger
}

func (s *SLogNotifier) Notify(msg string) {
	s.Logger.Info(msg)
}

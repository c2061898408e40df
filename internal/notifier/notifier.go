// Package notifier reports noteworthy room actions (scheduled turn-offs,
// lights switched off, daily summaries) to one or more destinations.
package notifier

type Notifier interface {
	Notify(msg string)
}

var _ Notifier = Notifiers{}

// Notifiers sends a notification to multiple notifiers.
type Notifiers []Notifier

func (n Notifiers) Notify(msg string) {
	for _, l := range n {
		l.Notify(msg)
	}
}

package relay

import (
	"context"
	"log/slog"
)

// Notifier surfaces a failure to the agent. The toast subsystem itself is an
// external collaborator; only the accept path raises notifications.
type Notifier interface {
	Error(ctx context.Context, msg string)
}

// LogNotifier writes notifications to the log. Used when no host notification
// surface is wired.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Error(_ context.Context, msg string) {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.Error("agent notification", "message", msg)
}

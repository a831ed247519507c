package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/pitools/updaterd/internal/logging"
	"github.com/pitools/updaterd/internal/state"
)

var log = logging.L("notify")

const sendTimeout = 5 * time.Second

// Notifier delivers a user-facing notification.
type Notifier interface {
	Notify(title, body string) error
}

// DesktopNotifier uses notify-send. A production implementation would
// talk to org.freedesktop.Notifications over D-Bus directly.
type DesktopNotifier struct {
	Icon string
}

func (n *DesktopNotifier) Notify(title, body string) error {
	args := []string{}
	if n.Icon != "" {
		args = append(args, "-i", n.Icon)
	}
	args = append(args, title, body)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := exec.CommandContext(ctx, "notify-send", args...).Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

// Observer returns a state observer that raises one desktop notification
// each time the system transitions from up to date to having updates.
func Observer(n Notifier) state.Observer {
	return func(set state.UpdateSet, tr state.Transition) {
		if tr != state.TransitionUpdatesAvailable {
			return
		}

		body := fmt.Sprintf("%d updates are ready to install", set.Count())
		if err := n.Notify("Updates are available", body); err != nil {
			log.Warn("notification failed", "error", err)
			return
		}
		log.Debug("notification sent", "updates", set.Count())
	}
}

// Package notifier raises desktop notifications for script problems
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/types"
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// ScriptNotifier handles loader notifications
type ScriptNotifier struct {
	enabled bool
	sound   bool
	send    SendFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	Sound   bool
}

// New creates a notifier that sends through beeep
func New(config Config, log logger.Logger) *ScriptNotifier {
	return NewWithSender(config, log, func(title, message string) error {
		return beeep.Notify(title, message, "")
	})
}

// NewWithSender creates a notifier with a custom delivery function
func NewWithSender(config Config, log logger.Logger, send SendFunc) *ScriptNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ScriptNotifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		send:    send,
		logger:  log.WithComponent("notifier"),
	}
}

// Enabled reports whether notifications are sent
func (n *ScriptNotifier) Enabled() bool {
	return n.enabled
}

// NotifyScriptFailure notifies that a script failed to evaluate
func (n *ScriptNotifier) NotifyScriptFailure(failure types.Failure) {
	if !n.enabled {
		return
	}

	title := "ChatTriggers: script failed"
	message := fmt.Sprintf("%s: %s", failure.Subject, failure.Message)

	n.sendNotification(title, message, true)
}

// NotifyEntryPointDisabled notifies that a lifecycle function stopped being called
func (n *ScriptNotifier) NotifyEntryPointDisabled(ep types.EntryPoint, err error) {
	if !n.enabled {
		return
	}

	title := "ChatTriggers: " + ep.String() + " disabled"
	message := fmt.Sprintf("%s will not be called again until reload: %v", ep.FunctionName(), err)

	n.sendNotification(title, message, true)
}

// NotifyLoadComplete notifies that a load finished. Clean loads stay silent.
func (n *ScriptNotifier) NotifyLoadComplete(imports, failures int, duration time.Duration) {
	if !n.enabled || failures == 0 {
		return
	}

	title := "ChatTriggers: loaded with errors"
	message := fmt.Sprintf("%d imports, %d failures in %s", imports, failures, formatDuration(duration))

	n.sendNotification(title, message, false)
}

func (n *ScriptNotifier) sendNotification(title, message string, alert bool) {
	if n.send == nil {
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
		return
	}

	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
	}

	if alert && n.sound {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// Package notify delivers the notification intents produced by the lifecycle
// machine. Delivery is best effort: failures are logged and never reach the
// caller of a lifecycle action.
package notify

import (
	"context"
	"errors"
	"time"

	"medcourier/pkg/logger"
	"medcourier/pkg/models"
)

// Address is where a notification goes. Contact is nil when the party has no
// contact details on file; channels that need one skip the notification.
type Address struct {
	Party   models.Party
	Contact *models.Contact
}

type Payload struct {
	LoadID  string            `json:"load_id"`
	Subject string            `json:"subject"`
	Data    map[string]string `json:"data,omitempty"`
	At      time.Time         `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error
}

type NotifierFunc func(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error

func (f NotifierFunc) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	return f(ctx, kind, address, payload)
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	var errList []error
	for _, n := range m {
		if err := n.Notify(ctx, kind, address, payload); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

type logNotifier struct {
	log logger.ILogger
}

// NewLog returns a notifier that only writes the notification to log.
func NewLog(log logger.ILogger) Notifier {
	return &logNotifier{log: log}
}

func (l *logNotifier) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	l.log.Info("notification",
		logger.String("kind", string(kind)),
		logger.String("recipient_type", string(address.Party.Type)),
		logger.String("recipient_id", address.Party.ID),
		logger.String("load_id", payload.LoadID),
		logger.String("subject", payload.Subject),
	)
	return nil
}

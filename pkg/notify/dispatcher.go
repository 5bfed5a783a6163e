package notify

import (
	"context"
	"sync"
	"time"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/metrics"
	"medcourier/pkg/models"
	"medcourier/storage"
)

const DefaultTimeout = 5 * time.Second

// Dispatcher delivers notification intents in the background. Each delivery
// runs under its own timeout, detached from the caller's cancellation.
type Dispatcher struct {
	notifier Notifier
	contacts storage.IContactStorage
	log      logger.ILogger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, contacts storage.IContactStorage, log logger.ILogger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{notifier: n, contacts: contacts, log: log, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, notes []models.Notification) {
	for _, n := range notes {
		d.wg.Add(1)
		go func(n models.Notification) {
			defer d.wg.Done()
			d.deliver(context.WithoutCancel(ctx), n)
		}(n)
	}
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	addr := Address{Party: n.Recipient}
	if d.contacts != nil {
		c, err := d.contacts.Get(ctx, n.Recipient.Type, n.Recipient.ID)
		switch {
		case err == nil:
			addr.Contact = c
		case errs.IsNotFound(err):
		default:
			d.log.Warning("failed to resolve contact",
				logger.String("recipient_id", n.Recipient.ID),
				logger.Error(err),
			)
		}
	}

	payload := Payload{LoadID: n.LoadID, Subject: n.Subject, Data: n.Data, At: n.CreatedAt}
	err := d.notifier.Notify(ctx, n.Kind, addr, payload)
	metrics.NotificationLatency.WithLabelValues(string(n.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		d.log.Warning("notification failed",
			logger.String("kind", string(n.Kind)),
			logger.String("load_id", n.LoadID),
			logger.String("recipient_id", n.Recipient.ID),
			logger.Error(err),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
}

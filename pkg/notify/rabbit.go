package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"medcourier/pkg/models"
)

// publisher is the part of *amqp.Channel the notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Rabbit publishes every notification as a JSON event on a topic exchange
// with routing key "load.<kind>".
type Rabbit struct {
	ch       publisher
	exchange string
}

type loadEvent struct {
	Kind          models.NotificationKind `json:"kind"`
	LoadID        string                  `json:"load_id"`
	RecipientType models.UserType         `json:"recipient_type"`
	RecipientID   string                  `json:"recipient_id"`
	Subject       string                  `json:"subject"`
	Data          map[string]string       `json:"data,omitempty"`
	At            string                  `json:"at"`
}

func NewRabbit(ch publisher, exchange string) *Rabbit {
	return &Rabbit{ch: ch, exchange: exchange}
}

// DialRabbit connects, opens a channel and declares a durable topic exchange.
// The returned func closes the channel and the connection.
func DialRabbit(url, exchange string) (*Rabbit, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	closer := func() error {
		ch.Close()
		return conn.Close()
	}
	return NewRabbit(ch, exchange), closer, nil
}

func RoutingKey(kind models.NotificationKind) string {
	return "load." + string(kind)
}

func (r *Rabbit) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	body, err := json.Marshal(loadEvent{
		Kind:          kind,
		LoadID:        payload.LoadID,
		RecipientType: address.Party.Type,
		RecipientID:   address.Party.ID,
		Subject:       payload.Subject,
		Data:          payload.Data,
		At:            payload.At.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal load event: %w", err)
	}

	err = r.ch.PublishWithContext(ctx,
		r.exchange,
		RoutingKey(kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    payload.At,
			MessageId:    payload.LoadID + ":" + string(kind) + ":" + string(address.Party.Type) + ":" + address.Party.ID,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

package queue

import (
	"context"
	"log"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends activity events to RabbitMQ. Each Publish dials, declares
// the durable queue and sends one persistent message; the event rate is low
// enough that a pooled connection is not worth the reconnect handling.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{URL: url, Queue: ActivityQueueName}
}

// Publish never panics; errors are logged and returned so the caller can
// ignore them.
func (p *Publisher) Publish(ctx context.Context, ev ActivityEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := sonic.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", ev.Type, err)
		return err
	}
	return nil
}

// AsyncPublisher hands events to a background goroutine so request handlers
// never wait on the broker. Events are dropped when the buffer is full.
type AsyncPublisher struct {
	next   *Publisher
	events chan ActivityEvent
	done   chan struct{}
}

func NewAsyncPublisher(next *Publisher, buffer int) *AsyncPublisher {
	a := &AsyncPublisher{next: next, events: make(chan ActivityEvent, buffer), done: make(chan struct{})}
	go a.run()
	return a
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for ev := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.next.Publish(ctx, ev)
		cancel()
	}
}

func (a *AsyncPublisher) Publish(_ context.Context, ev ActivityEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case a.events <- ev:
	default:
		log.Printf("rabbitmq: buffer full, dropping %s event", ev.Type)
	}
	return nil
}

// Close drains pending events and stops the worker.
func (a *AsyncPublisher) Close() {
	close(a.events)
	<-a.done
}

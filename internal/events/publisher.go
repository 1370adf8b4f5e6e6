// Package events publishes order lifecycle changes to Kafka so other systems
// can follow the queue without subscribing to the store.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"brewpulse/config"
	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
	"brewpulse/internal/store"
)

// Message is the value written for every change.
type Message struct {
	Kind     snapshot.EventKind `json:"kind"`
	Order    order.Order        `json:"order"`
	Previous *order.Order       `json:"previous,omitempty"`
	At       int64              `json:"at"`
}

// Publisher diffs consecutive snapshots and writes one message per change,
// keyed by order id so changes to one order stay in one partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time

	mu     sync.Mutex
	prev   []order.Order
	primed bool
}

// NewPublisher connects a synchronous producer to the configured brokers.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	log.Printf("events: publishing to %s on %v", cfg.Topic, cfg.Brokers)
	return NewPublisherWithProducer(producer, cfg.Topic), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(p sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic, now: time.Now}
}

// Observe publishes the changes between the previous snapshot and orders.
// The first snapshot is the baseline and publishes nothing.
func (p *Publisher) Observe(orders []order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		p.prev = orders
		p.primed = true
		return nil
	}
	changes := snapshot.Diff(p.prev, orders)
	p.prev = orders
	if len(changes) == 0 {
		return nil
	}

	at := p.now().UnixMilli()
	msgs := make([]*sarama.ProducerMessage, 0, len(changes))
	for _, e := range changes {
		value, err := json.Marshal(Message{Kind: e.Kind, Order: e.Order, Previous: e.Previous, At: at})
		if err != nil {
			return fmt.Errorf("encode %s event for %s: %w", e.Kind, e.Order.ID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(e.Order.ID),
			Value: sarama.ByteEncoder(value),
		})
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("publish %d order events: %w", len(msgs), err)
	}
	return nil
}

// Reset makes the next snapshot a new baseline.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.primed = false
	p.prev = nil
	p.mu.Unlock()
}

// Start subscribes the publisher to s. The returned function stops it.
func (p *Publisher) Start(s store.OrderStore) func() {
	return s.Subscribe(
		func(orders []order.Order) {
			if err := p.Observe(orders); err != nil {
				log.Printf("events: %v", err)
			}
		},
		func(err error) {
			log.Printf("events: subscription error: %v", err)
			p.Reset()
		},
	)
}

// Close closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// Package pubsub is a small in-process topic broker feeding the SSE stream.
// New subscribers replay the last event on their topic so a client that
// connects between refreshes still gets the current scene version.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Event is one published notification.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

var ErrClosed = errors.New("pubsub: broker closed")

type Broker struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscriber]struct{}
	last    map[string]Event
	version map[string]int
	closed  bool
}

func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[string]map[*Subscriber]struct{}),
		last:    make(map[string]Event),
		version: make(map[string]int),
	}
}

type Subscriber struct {
	topic  string
	events chan Event
	broker *Broker
	once   sync.Once
}

func (s *Subscriber) Topic() string        { return s.topic }
func (s *Subscriber) Events() <-chan Event { return s.events }

func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.events)
	})
}

// Subscribe registers a subscriber on a topic. The subscription closes when
// ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topic string) (*Subscriber, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &Subscriber{
		topic: topic,
		// Buffered so a slow SSE client cannot block a publish.
		events: make(chan Event, 64),
		broker: b,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscriber]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	replay, hasReplay := b.last[topic]
	b.mu.Unlock()

	if hasReplay {
		sub.events <- replay
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish fans an event out to all subscribers of the topic. Subscribers
// with full buffers miss the event; they catch up on the next one.
func (b *Broker) Publish(topic, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	b.version[topic]++
	ev := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: b.version[topic],
	}
	b.last[topic] = ev

	for sub := range b.subs[topic] {
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

func (b *Broker) remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

// Close shuts the broker down and closes all subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscriber
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.subs = make(map[string]map[*Subscriber]struct{})
	b.mu.Unlock()

	for _, sub := range all {
		sub.once.Do(func() { close(sub.events) })
	}
}

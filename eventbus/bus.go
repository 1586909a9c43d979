// Package eventbus is the daemon's in-process publish/subscribe
// system, grounded on original_source/core/channels.py's ChannelManager:
// same-thread, synchronous delivery, a bounded per-channel history ring,
// and per-subscriber panic isolation so one broken plugin handler cannot
// take down a publisher.
package eventbus

import (
	"sync"
	"time"

	"holocene.dev/holod/common"
)

// Message is one event delivered on a channel.
type Message struct {
	Channel   string
	Data      any
	Timestamp time.Time
	Sender    string
}

// Handler receives messages published on a channel it subscribed to.
type Handler func(Message)

// Subscription is an opaque handle returned by Subscribe, passed back to
// Unsubscribe.
type Subscription struct {
	channel string
	id      uint64
}

// subscriber pairs a Subscribe-order-preserving id with its handler.
type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages channels, subscribers, and bounded history. Subscribers
// are kept in an ordered slice per channel, not a map, so Publish
// delivers in subscription order as spec'd, not map-iteration order.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]subscriber
	history     map[string][]Message
	historySize int
	nextID      uint64
}

// New builds a Bus keeping up to historySize messages per channel.
func New(historySize int) *Bus {
	if historySize <= 0 {
		historySize = 100
	}
	return &Bus{
		subscribers: make(map[string][]subscriber),
		history:     make(map[string][]Message),
		historySize: historySize,
	}
}

// Subscribe registers handler to be called for every future Publish on
// channel, after every handler already subscribed to it.
func (b *Bus) Subscribe(channel string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[channel] = append(b.subscribers[channel], subscriber{id: id, handler: handler})
	return Subscription{channel: channel, id: id}
}

// Unsubscribe removes a previously registered handler. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.channel]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.channel] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends data to every current subscriber of channel, in
// registration order, synchronously on the calling goroutine. A handler
// that panics is recovered and logged; it does not stop delivery to
// remaining subscribers.
func (b *Bus) Publish(channel string, data any, sender string) {
	msg := Message{Channel: channel, Data: data, Timestamp: time.Now().UTC(), Sender: sender}

	b.mu.Lock()
	if b.history[channel] == nil {
		b.history[channel] = make([]Message, 0, b.historySize)
	}
	b.history[channel] = append(b.history[channel], msg)
	if len(b.history[channel]) > b.historySize {
		b.history[channel] = b.history[channel][len(b.history[channel])-b.historySize:]
	}
	subs := b.subscribers[channel]
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		deliver(channel, handler, msg)
	}
}

func deliver(channel string, handler Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger.WithField("channel", channel).Errorf("subscriber callback panicked: %v", r)
		}
	}()
	handler(msg)
}

// History returns up to limit of the most recent messages on channel,
// oldest first. limit <= 0 means no limit.
func (b *Bus) History(channel string, limit int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	hist := b.history[channel]
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]Message, len(hist))
	copy(out, hist)
	return out
}

// ClearHistory drops history for channel, or every channel when channel
// is empty.
func (b *Bus) ClearHistory(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if channel == "" {
		b.history = make(map[string][]Message)
		return
	}
	delete(b.history, channel)
}

// ListChannels returns every channel with at least one subscriber.
func (b *Bus) ListChannels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subscribers))
	for name, subs := range b.subscribers {
		if len(subs) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// SubscriberCount reports how many handlers are registered on channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[channel])
}

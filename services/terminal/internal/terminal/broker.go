package terminal

import (
	"encoding/json"
	"sync"

	"github.com/aquamarinepk/aqm"
)

const brokerBuffer = 16

// Event is a UI side effect pushed to SSE subscribers.
type Event struct {
	Kind string
	Data []byte
}

// Broker fans sink emissions out to every connected UI shell. A subscriber
// that falls behind loses events instead of stalling the emitter.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	logger aqm.Logger
}

func NewBroker(logger aqm.Logger) *Broker {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Broker{
		subs:   make(map[string]chan Event),
		logger: logger.With("component", "broker"),
	}
}

func (b *Broker) Emit(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("cannot marshal ui event", "kind", kind, "error", err)
		return
	}
	evt := Event{Kind: kind, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.logger.Debug("ui subscriber lagging, event dropped", "subscriber_id", id, "kind", kind)
		}
	}
}

func (b *Broker) Subscribe(id string) <-chan Event {
	ch := make(chan Event, brokerBuffer)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

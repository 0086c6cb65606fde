package terminal

import (
	"sync"
	"time"
)

// Store owns the terminal state. Update serializes every change so two quick
// edits compose instead of overwriting each other.
type Store struct {
	mu    sync.Mutex
	state State
	msgID uint64
	now   func() time.Time

	subMu sync.RWMutex
	subs  map[string]chan State
}

func NewStore(initial State) *Store {
	if initial.Orders == nil {
		initial = initial.withOrders(nil)
	}
	return &Store{
		state: initial,
		now:   time.Now,
		subs:  make(map[string]chan State),
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(s.state)
}

// Update applies fn to the current state and publishes the result. fn runs
// under the store lock and must not call back into the Store.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.prune(fn(s.state))
	next.UpdatedAt = s.now()
	s.state = next
	s.broadcast(next)
	return next
}

// Toast queues a transient message. It satisfies notify.Toaster.
func (s *Store) Toast(level, text string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = MessageTTL
	}
	s.Update(func(st State) State {
		s.msgID++
		msgs := make([]Message, 0, len(st.Messages)+1)
		msgs = append(msgs, st.Messages...)
		st.Messages = append(msgs, Message{
			ID:        s.msgID,
			Level:     level,
			Text:      text,
			ExpiresAt: s.now().Add(ttl),
		})
		return st
	})
}

func (s *Store) Error(text string) {
	s.Toast(LevelError, text, MessageTTL)
}

func (s *Store) Info(text string) {
	s.Toast(LevelInfo, text, MessageTTL)
}

// Subscribe returns a channel that receives every new state. Slow
// subscribers miss intermediate states, never the latest one.
func (s *Store) Subscribe(id string) <-chan State {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan State, 1)
	s.subs[id] = ch
	return ch
}

func (s *Store) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Store) broadcast(st State) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

func (s *Store) prune(st State) State {
	if len(st.Messages) == 0 {
		return st
	}
	now := s.now()
	kept := make([]Message, 0, len(st.Messages))
	for _, m := range st.Messages {
		if m.ExpiresAt.After(now) {
			kept = append(kept, m)
		}
	}
	st.Messages = kept
	return st
}

package mission

import "sync"

type handlerEntry struct {
	id       uint64
	handlers Handlers
}

// handlerSet is an ordered set of handlers keyed by subscription id.
type handlerSet struct {
	mu      sync.Mutex
	nextID  uint64
	entries []handlerEntry
}

func (s *handlerSet) add(h Handlers) *subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.entries = append(s.entries, handlerEntry{id: s.nextID, handlers: h})
	return &subscription{set: s, id: s.nextID}
}

func (s *handlerSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *handlerSet) snapshot() []Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Handlers, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.handlers)
	}
	return out
}

func (s *handlerSet) clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

func (s *handlerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type subscription struct {
	set  *handlerSet
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.set.remove(s.id)
	})
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (fn SubscriptionFunc) Unsubscribe() {
	if fn != nil {
		fn()
	}
}

package engine

import (
	"sync"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
)

// Observer receives a snapshot of the mission whose state just changed.
type Observer func(models.MissionSnapshot)

type observerEntry struct {
	id uint64
	fn Observer
}

type observerSet struct {
	mu      sync.Mutex
	nextID  uint64
	entries []observerEntry
}

func (s *observerSet) add(fn Observer) mission.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, observerEntry{id: id, fn: fn})

	var once sync.Once
	return mission.SubscriptionFunc(func() {
		once.Do(func() { s.remove(id) })
	})
}

func (s *observerSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *observerSet) notify(snapshot models.MissionSnapshot) {
	s.mu.Lock()
	fns := make([]Observer, 0, len(s.entries))
	for _, entry := range s.entries {
		fns = append(fns, entry.fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (s *observerSet) clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// subscriptionGroup unsubscribes several subscriptions at once.
type subscriptionGroup []mission.Subscription

func (g subscriptionGroup) Unsubscribe() {
	for _, sub := range g {
		sub.Unsubscribe()
	}
}

package notify_test

import (
	"sync"

	"nagarpalika/backend/internal/models"
)

type published struct {
	Group string
	Event models.Event
}

// FakeRegistry records every publish and pretends each group has Members[group] subscribers.
type FakeRegistry struct {
	mu        sync.Mutex
	Members   map[string]int
	Published []published
}

func newFakeRegistry() *FakeRegistry {
	return &FakeRegistry{Members: map[string]int{}}
}

func (f *FakeRegistry) Publish(group string, evt models.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, published{Group: group, Event: evt})
	return f.Members[group]
}

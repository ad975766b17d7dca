package hub_test

import (
	"sync"

	"nagarpalika/backend/internal/models"
)

type MockClient struct {
	id          string
	RecvChannel chan models.Event

	mu     sync.Mutex
	closed int
}

func newMockClient(id string, buffer int) *MockClient {
	return &MockClient{
		id:          id,
		RecvChannel: make(chan models.Event, buffer),
	}
}

func (c *MockClient) ID() string                { return c.id }
func (c *MockClient) Send() chan<- models.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *MockClient) ClosedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Drain returns everything queued for the client without blocking.
func (c *MockClient) Drain() []models.Event {
	var events []models.Event
	for {
		select {
		case evt := <-c.RecvChannel:
			events = append(events, evt)
		default:
			return events
		}
	}
}

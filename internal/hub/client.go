package hub

import "nagarpalika/backend/internal/models"

// Client is one live subscriber connection. The hub only ever talks to a client
// through its send channel, from inside the Run loop.
type Client interface {
	// ID returns the connection id, unique per connection (not per user).
	ID() string
	// Send returns the buffered channel the hub pushes events into.
	Send() chan<- models.Event
	// Run starts the client's pumps.
	Run()
	// Close releases the connection. The hub calls it exactly once, after the
	// client has been removed from every group.
	Close()
}

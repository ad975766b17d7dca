package hub

import (
	"context"
	"errors"
	"fmt"
	"log"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/models"
)

// GlobalGroup holds every connected client. Membership is automatic.
const GlobalGroup = "global"

var (
	ErrUnknownClient = errors.New("unknown connection")
	ErrUnknownGroup  = errors.New("unknown department")
	ErrHubStopped    = errors.New("hub is not running")
)

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	Clients int            `json:"clients"`
	Groups  map[string]int `json:"groups"`
}

type membershipRequest struct {
	connID string
	group  string
	join   bool
	reply  chan error
}

type publishRequest struct {
	group string
	event models.Event
	reply chan int
}

// ManagerService is the subscriber registry. A single goroutine (Run) owns the
// clients and group maps; everything else talks to it over channels.
type ManagerService struct {
	Clients map[string]Client
	groups  map[string]map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client

	membershipCh chan membershipRequest
	publishCh    chan publishRequest
	statsCh      chan chan Stats

	Directory *config.Directory

	done chan struct{}
}

// NewManagerService Constructor
func NewManagerService(dir *config.Directory) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		groups:       map[string]map[string]Client{GlobalGroup: {}},
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		membershipCh: make(chan membershipRequest),
		publishCh:    make(chan publishRequest),
		statsCh:      make(chan chan Stats),
		Directory:    dir,
		done:         make(chan struct{}),
	}
}

// Run processes registry commands until ctx is cancelled. All clients are
// closed on exit.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			for id, client := range m.Clients {
				m.remove(id, client)
			}
			log.Println("INFO: Hub stopped")
			return

		case client := <-m.RegisterCh:
			m.Clients[client.ID()] = client
			m.groups[GlobalGroup][client.ID()] = client
			log.Printf("INFO: Client %s connected (%d online)", client.ID(), len(m.Clients))

		case client := <-m.UnregisterCh:
			if current, ok := m.Clients[client.ID()]; ok && current == client {
				m.remove(client.ID(), client)
				log.Printf("INFO: Client %s disconnected (%d online)", client.ID(), len(m.Clients))
			}

		case req := <-m.membershipCh:
			req.reply <- m.handleMembership(req)

		case req := <-m.publishCh:
			req.reply <- m.broadcast(req.group, req.event)

		case reply := <-m.statsCh:
			reply <- m.snapshot()
		}
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Register adds client to the registry and the global group.
func (m *ManagerService) Register(client Client) error {
	select {
	case m.RegisterCh <- client:
		return nil
	case <-m.done:
		return ErrHubStopped
	}
}

// Unregister removes client from every group. Unknown clients are ignored.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
	}
}

// Join adds the connection to a department group. The client is told the
// outcome with a joined or error event.
func (m *ManagerService) Join(connID, group string) error {
	return m.membership(connID, group, true)
}

// Leave removes the connection from a department group.
func (m *ManagerService) Leave(connID, group string) error {
	return m.membership(connID, group, false)
}

func (m *ManagerService) membership(connID, group string, join bool) error {
	req := membershipRequest{connID: connID, group: group, join: join, reply: make(chan error, 1)}
	select {
	case m.membershipCh <- req:
		return <-req.reply
	case <-m.done:
		return ErrHubStopped
	}
}

// Publish delivers evt to every current member of group and returns how many
// clients it was handed to. Delivery is at-most-once: an empty group drops the
// event, and a member whose buffer is full is disconnected.
func (m *ManagerService) Publish(group string, evt models.Event) int {
	req := publishRequest{group: group, event: evt, reply: make(chan int, 1)}
	select {
	case m.publishCh <- req:
		return <-req.reply
	case <-m.done:
		return 0
	}
}

// Stats returns the current connection and group sizes.
func (m *ManagerService) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case m.statsCh <- reply:
		return <-reply
	case <-m.done:
		return Stats{Groups: map[string]int{}}
	}
}

func (m *ManagerService) handleMembership(req membershipRequest) error {
	client, ok := m.Clients[req.connID]
	if !ok {
		return ErrUnknownClient
	}

	if req.group == GlobalGroup || !m.Directory.Known(req.group) {
		err := fmt.Errorf("%w: %q", ErrUnknownGroup, req.group)
		m.deliver(req.connID, client, models.Event{
			Name: models.EventError,
			Data: models.ErrorPayload{Message: err.Error()},
		})
		return err
	}

	if !req.join {
		if members, ok := m.groups[req.group]; ok {
			delete(members, req.connID)
			if len(members) == 0 {
				delete(m.groups, req.group)
			}
		}
		return nil
	}

	members, ok := m.groups[req.group]
	if !ok {
		members = make(map[string]Client)
		m.groups[req.group] = members
	}
	members[req.connID] = client
	log.Printf("INFO: Client %s joined department %s", req.connID, req.group)
	m.deliver(req.connID, client, models.Event{
		Name: models.EventJoined,
		Data: map[string]string{"department": req.group},
	})
	return nil
}

func (m *ManagerService) broadcast(group string, evt models.Event) int {
	members := m.groups[group]
	if len(members) == 0 {
		return 0
	}

	delivered := 0
	for id, client := range members {
		if m.deliver(id, client, evt) {
			delivered++
		}
	}
	return delivered
}

// deliver never blocks the loop: a client that cannot keep up is dropped.
func (m *ManagerService) deliver(id string, client Client, evt models.Event) bool {
	select {
	case client.Send() <- evt:
		return true
	default:
		log.Printf("WARN: Send buffer full for client %s, dropping connection", id)
		m.remove(id, client)
		return false
	}
}

func (m *ManagerService) remove(id string, client Client) {
	for name, members := range m.groups {
		delete(members, id)
		if len(members) == 0 && name != GlobalGroup {
			delete(m.groups, name)
		}
	}
	delete(m.Clients, id)
	client.Close()
}

func (m *ManagerService) snapshot() Stats {
	s := Stats{Clients: len(m.Clients), Groups: make(map[string]int, len(m.groups))}
	for name, members := range m.groups {
		s.Groups[name] = len(members)
	}
	return s
}

package notify

import (
	"sync"

	"github.com/frontdesk/frontdesk/internal/store"
)

// Event types mirrored to the supervisor dashboard.
const (
	EventNewRequest    = "new_request"
	EventUpdateRequest = "update_request"
	EventRefresh       = "refresh"
)

// Event is pushed to every connected observer. Request is nil for refresh.
type Event struct {
	Type    string             `json:"type"`
	Request *store.HelpRequest `json:"request,omitempty"`
}

// Broker fans store mutations out to connected observers. Delivery is
// best-effort: slow observers drop events, late subscribers never see
// earlier ones.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan Event]struct{})}
}

func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broker) NewRequest(req *store.HelpRequest) {
	b.publish(Event{Type: EventNewRequest, Request: req})
}

func (b *Broker) UpdateRequest(req *store.HelpRequest) {
	b.publish(Event{Type: EventUpdateRequest, Request: req})
}

func (b *Broker) Refresh() {
	b.publish(Event{Type: EventRefresh})
}

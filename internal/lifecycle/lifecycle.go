// Package lifecycle owns the terminal transitions of help requests: lazy
// expiry when the pending list is read, and supervisor-initiated resolution.
package lifecycle

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/frontdesk/frontdesk/internal/escalate"
	"github.com/frontdesk/frontdesk/internal/notify"
	"github.com/frontdesk/frontdesk/internal/store"
)

// ErrEmptyAnswer rejects blank answer submissions before any state changes.
var ErrEmptyAnswer = errors.New("answer cannot be empty")

type Manager struct {
	store      *store.Store
	broker     *notify.Broker
	escalation *escalate.Service
}

func NewManager(st *store.Store, broker *notify.Broker, escalation *escalate.Service) *Manager {
	return &Manager{store: st, broker: broker, escalation: escalation}
}

// ListActionable returns pending requests whose expiry is still ahead of
// now, newest first. Pending requests whose expiry has passed are persisted
// as expired before the list is returned; no background timer exists, this
// read is the only place expiry is enforced. Read failures degrade to an
// empty list so the supervisor view recovers on the next poll.
func (m *Manager) ListActionable(now time.Time) []store.HelpRequest {
	pending, err := m.store.ListPending()
	if err != nil {
		log.Printf("warning: failed to list pending requests: %v", err)
		return nil
	}

	actionable := make([]store.HelpRequest, 0, len(pending))
	for _, req := range pending {
		if req.ExpiresAt.After(now) {
			actionable = append(actionable, req)
			continue
		}
		if err := m.store.MarkExpired(req.ID); err != nil {
			// A concurrent resolve can win the race; either way the
			// request is terminal and stays off the actionable list.
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("warning: failed to expire request %d: %v", req.ID, err)
			}
			continue
		}
		// Release any caller still parked on the ticket; no answer is coming.
		m.escalation.Forget(req.ID)
		expired := req
		expired.Status = store.StatusExpired
		expired.LastUpdated = now
		m.broker.UpdateRequest(&expired)
	}
	return actionable
}

// Resolve applies the supervisor's answer to a pending request: the request
// becomes resolved, a learned answer is appended, any caller still waiting
// on the original ticket receives the answer, and observers are refreshed.
// Terminal requests are rejected with store.ErrNotFound; they are never
// re-resolved.
func (m *Manager) Resolve(id uint, answer string) (*store.HelpRequest, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}

	req, err := m.store.MarkResolved(id, answer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve request %d: %w", id, err)
	}

	m.escalation.Deliver(id, answer)
	m.broker.UpdateRequest(req)
	m.broker.Refresh()
	return req, nil
}

// Package escalate turns an unanswered caller question into a pending help
// request plus a best-effort supervisor notification.
package escalate

import (
	"fmt"
	"log"
	"sync"

	"github.com/frontdesk/frontdesk/internal/notify"
	"github.com/frontdesk/frontdesk/internal/store"
)

type Service struct {
	store  *store.Store
	broker *notify.Broker

	mu      sync.Mutex
	waiters map[uint]chan string
}

func NewService(s *store.Store, b *notify.Broker) *Service {
	return &Service{
		store:   s,
		broker:  b,
		waiters: make(map[uint]chan string),
	}
}

// Escalate creates a pending help request for the question and returns its
// id together with the waiter channel for the supervisor's eventual answer.
// The waiter is registered before the id becomes visible to anyone else, so
// a resolve racing the escalation cannot slip past it. The channel receives
// at most one value and is closed afterwards; callers that stop waiting
// must call Forget.
//
// The request write must succeed; the notification row and the dashboard
// push are best-effort and only logged on failure, since the pending list
// remains a correct discovery path for the supervisor.
func (s *Service) Escalate(question, callerID string) (uint, <-chan string, error) {
	req, err := s.store.CreateRequest(question, callerID)
	if err != nil {
		return 0, nil, fmt.Errorf("escalate question: %w", err)
	}

	ch := make(chan string, 1)
	s.mu.Lock()
	s.waiters[req.ID] = ch
	s.mu.Unlock()

	n := &store.Notification{
		Type:      "help_request",
		RequestID: req.ID,
		CallerID:  callerID,
		Question:  question,
	}
	if err := s.store.AppendNotification(n); err != nil {
		log.Printf("warning: notification write failed for request %d: %v", req.ID, err)
	}
	s.broker.NewRequest(req)

	log.Printf("escalated request %d from %s: %s", req.ID, callerID, question)
	return req.ID, ch, nil
}

// Forget drops the waiter for id without delivering anything.
func (s *Service) Forget(id uint) {
	s.mu.Lock()
	ch, ok := s.waiters[id]
	if ok {
		delete(s.waiters, id)
	}
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Deliver hands the supervisor's answer to the waiter for id, if one is
// still registered. Safe to call when nobody is waiting.
func (s *Service) Deliver(id uint, answer string) {
	s.mu.Lock()
	ch, ok := s.waiters[id]
	if ok {
		delete(s.waiters, id)
	}
	s.mu.Unlock()
	if ok {
		ch <- answer
		close(ch)
	}
}

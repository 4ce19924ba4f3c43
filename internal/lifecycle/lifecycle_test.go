package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/frontdesk/frontdesk/internal/escalate"
	"github.com/frontdesk/frontdesk/internal/notify"
	"github.com/frontdesk/frontdesk/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	manager    *Manager
	store      *store.Store
	broker     *notify.Broker
	escalation *escalate.Service
	clock      *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st.SetClock(clock.Now)
	broker := notify.NewBroker()
	escalation := escalate.NewService(st, broker)
	return &fixture{
		manager:    NewManager(st, broker, escalation),
		store:      st,
		broker:     broker,
		escalation: escalation,
		clock:      clock,
	}
}

func TestListActionableIncludesFreshPending(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("Do you have parking?", "room-1")

	actionable := f.manager.ListActionable(f.clock.Now())
	if len(actionable) != 1 {
		t.Fatalf("expected 1 actionable request, got %d", len(actionable))
	}
	if actionable[0].ID != id || actionable[0].Status != store.StatusPending {
		t.Errorf("unexpected request: %+v", actionable[0])
	}
}

func TestListActionableExpiresStaleRequests(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("q", "room-1")
	f.clock.Advance(31 * time.Minute)

	actionable := f.manager.ListActionable(f.clock.Now())
	if len(actionable) != 0 {
		t.Fatalf("expected no actionable requests, got %d", len(actionable))
	}

	// The stale request must be persisted as expired, not just filtered.
	req, err := f.store.Get(id)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if req.Status != store.StatusExpired {
		t.Errorf("expected status expired, got %q", req.Status)
	}

	// And it can never be resolved afterwards.
	if _, err := f.manager.Resolve(id, "too late"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound resolving an expired request, got %v", err)
	}
}

func TestListActionableBoundary(t *testing.T) {
	f := newFixture(t)

	f.escalation.Escalate("q", "room-1")

	// Exactly at the expiry instant a request is no longer actionable.
	f.clock.Advance(store.RequestTimeout)
	actionable := f.manager.ListActionable(f.clock.Now())
	if len(actionable) != 0 {
		t.Errorf("expected request expired exactly at expires_at, got %d actionable", len(actionable))
	}
}

func TestListActionableEmitsUpdateEvents(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("q", "room-1")
	f.clock.Advance(31 * time.Minute)

	ch := f.broker.Subscribe()
	defer f.broker.Unsubscribe(ch)

	f.manager.ListActionable(f.clock.Now())

	select {
	case ev := <-ch:
		if ev.Type != notify.EventUpdateRequest {
			t.Errorf("expected %q, got %q", notify.EventUpdateRequest, ev.Type)
		}
		if ev.Request == nil || ev.Request.ID != id || ev.Request.Status != store.StatusExpired {
			t.Errorf("unexpected event payload: %+v", ev.Request)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiry event")
	}
}

func TestListActionableReleasesExpiredWaiters(t *testing.T) {
	f := newFixture(t)

	_, waiter, _ := f.escalation.Escalate("q", "room-1")
	f.clock.Advance(31 * time.Minute)

	f.manager.ListActionable(f.clock.Now())

	// Nobody will answer an expired request; the waiter is released
	// instead of being parked forever.
	select {
	case _, ok := <-waiter:
		if ok {
			t.Error("expected closed channel, got a delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter still parked after expiry")
	}
}

func TestResolveHappyPath(t *testing.T) {
	f := newFixture(t)

	id, waiter, _ := f.escalation.Escalate("Do you have parking?", "room-1")

	req, err := f.manager.Resolve(id, "Yes, free lot behind building")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if req.Status != store.StatusResolved || req.Answer != "Yes, free lot behind building" {
		t.Errorf("unexpected resolved request: %+v", req)
	}

	// The waiting caller receives the answer.
	select {
	case answer := <-waiter:
		if answer != "Yes, free lot behind building" {
			t.Errorf("waiter got %q", answer)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	// Exactly one learned answer, mirroring the request.
	learned, _ := f.store.ListLearned(10)
	if len(learned) != 1 {
		t.Fatalf("expected 1 learned answer, got %d", len(learned))
	}
	if learned[0].SourceRequest != id || learned[0].Question != "Do you have parking?" {
		t.Errorf("unexpected learned answer: %+v", learned[0])
	}
}

func TestResolveEmptyAnswerRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("q", "room-1")

	if _, err := f.manager.Resolve(id, "   "); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}

	req, _ := f.store.Get(id)
	if req.Status != store.StatusPending {
		t.Errorf("expected request untouched, got status %q", req.Status)
	}
	learned, _ := f.store.ListLearned(10)
	if len(learned) != 0 {
		t.Errorf("expected no learned answers, got %d", len(learned))
	}
}

func TestResolveUnknownID(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.Resolve(999, "answer"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveEmitsUpdateAndRefresh(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("q", "room-1")

	ch := f.broker.Subscribe()
	defer f.broker.Unsubscribe(ch)

	if _, err := f.manager.Resolve(id, "answer"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d events", i)
		}
	}
	if types[0] != notify.EventUpdateRequest || types[1] != notify.EventRefresh {
		t.Errorf("expected update_request then refresh, got %v", types)
	}
}

func TestResolveRacesExpiry(t *testing.T) {
	f := newFixture(t)

	id, _, _ := f.escalation.Escalate("q", "room-1")
	f.clock.Advance(31 * time.Minute)

	// Expiry-on-read wins; the late resolve must observe terminal state.
	f.manager.ListActionable(f.clock.Now())
	if _, err := f.manager.Resolve(id, "answer"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry won the race, got %v", err)
	}
}

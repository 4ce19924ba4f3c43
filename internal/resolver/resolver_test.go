package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frontdesk/frontdesk/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) Answer(ctx context.Context, question string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestStore(t *testing.T) *store.Store {
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
	return st
}

func learn(t *testing.T, st *store.Store, question, answer string) {
	t.Helper()
	req, err := st.CreateRequest(question, "room-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := st.MarkResolved(req.ID, answer); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
}

func TestResolveUsesLearnedAnswerWithoutModelCall(t *testing.T) {
	st := newTestStore(t)
	learn(t, st, "Do you have parking?", "Yes, free lot behind building")

	model := &fakeModel{reply: "should not be used"}
	r := New(st, model)

	answer := r.Resolve(context.Background(), "Hi, do you have parking?")
	if answer != "Yes, free lot behind building" {
		t.Errorf("expected learned answer, got %q", answer)
	}
	if model.calls != 0 {
		t.Errorf("expected no model calls, got %d", model.calls)
	}
}

func TestResolveMatchIsCaseInsensitive(t *testing.T) {
	st := newTestStore(t)
	learn(t, st, "WHAT ARE YOUR HOURS", "Mon-Fri 9AM-6PM")

	r := New(st, &fakeModel{})
	answer := r.Resolve(context.Background(), "hello, what are your hours today?")
	if answer != "Mon-Fri 9AM-6PM" {
		t.Errorf("expected case-insensitive match, got %q", answer)
	}
}

func TestResolveMostRecentMatchWins(t *testing.T) {
	st := newTestStore(t)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st.SetClock(clock.Now)

	learn(t, st, "parking", "old answer")
	clock.Advance(time.Minute)
	learn(t, st, "parking", "new answer")

	r := New(st, &fakeModel{})
	answer := r.Resolve(context.Background(), "is parking available?")
	if answer != "new answer" {
		t.Errorf("expected most recently learned answer, got %q", answer)
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestResolveFallsBackToModel(t *testing.T) {
	st := newTestStore(t)
	learn(t, st, "parking", "lot answer")

	model := &fakeModel{reply: "We close at 6PM."}
	r := New(st, model)

	answer := r.Resolve(context.Background(), "when do you close?")
	if answer != "We close at 6PM." {
		t.Errorf("expected model answer, got %q", answer)
	}
	if model.calls != 1 {
		t.Errorf("expected 1 model call, got %d", model.calls)
	}
}

func TestResolveModelFailureReturnsTroublePhrase(t *testing.T) {
	st := newTestStore(t)

	r := New(st, &fakeModel{err: errors.New("connection refused")})
	answer := r.Resolve(context.Background(), "anything")
	if answer != TroublePhrase {
		t.Errorf("expected trouble phrase, got %q", answer)
	}
}

func TestResolveHonorsLearnedLimit(t *testing.T) {
	st := newTestStore(t)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st.SetClock(clock.Now)

	learn(t, st, "oldest question", "oldest answer")
	clock.Advance(time.Minute)
	learn(t, st, "newer question", "newer answer")

	model := &fakeModel{reply: "model answer"}
	r := New(st, model)
	r.limit = 1

	// Only the newest learned answer is fetched, so the older one no
	// longer matches.
	answer := r.Resolve(context.Background(), "tell me the oldest question please")
	if answer != "model answer" {
		t.Errorf("expected model fallback beyond the limit, got %q", answer)
	}
}

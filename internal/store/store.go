package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when an operation references an id that does not
// exist or that has already reached a terminal status.
var ErrNotFound = errors.New("help request not found or already terminal")

// Store is the source of truth for help requests, learned answers and
// notifications. Every write is committed before the call returns.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open creates (if needed) the database file at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps a pre-configured *gorm.DB (useful for testing with ":memory:").
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&HelpRequest{}, &LearnedAnswer{}, &Notification{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock overrides the time source (useful for testing expiry).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) CreateRequest(question, callerID string) (*HelpRequest, error) {
	now := s.now().UTC()
	req := &HelpRequest{
		Question:    question,
		CallerID:    callerID,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(RequestTimeout),
		LastUpdated: now,
	}
	if err := s.db.Create(req).Error; err != nil {
		return nil, fmt.Errorf("create help request: %w", err)
	}
	return req, nil
}

func (s *Store) Get(id uint) (*HelpRequest, error) {
	var req HelpRequest
	if err := s.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch help request %d: %w", id, err)
	}
	return &req, nil
}

// ListPending returns every request still marked pending, newest first,
// including ones whose expiry has already passed. Callers that care about
// actionability partition on ExpiresAt themselves (see lifecycle.Manager).
func (s *Store) ListPending() ([]HelpRequest, error) {
	var requests []HelpRequest
	err := s.db.Where("status = ?", StatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// MarkExpired transitions a pending request to expired. Returns ErrNotFound
// if the request does not exist or is already terminal.
func (s *Store) MarkExpired(id uint) error {
	result := s.db.Model(&HelpRequest{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"status":       StatusExpired,
			"last_updated": s.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("expire help request %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkResolved transitions a pending request to resolved and appends the
// matching learned answer. The two writes are sequential: if the learned
// append fails after the transition committed, the error is returned and the
// request is left resolved without a learned answer, for the caller to retry
// via AppendLearned.
func (s *Store) MarkResolved(id uint, answer string) (*HelpRequest, error) {
	now := s.now().UTC()
	result := s.db.Model(&HelpRequest{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"answer":       answer,
			"status":       StatusResolved,
			"resolved_at":  &now,
			"last_updated": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("resolve help request %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	req, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.AppendLearned(req.Question, answer, id); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) AppendLearned(question, answer string, sourceID uint) (*LearnedAnswer, error) {
	learned := &LearnedAnswer{
		Question:      question,
		Answer:        answer,
		LearnedAt:     s.now().UTC(),
		SourceRequest: sourceID,
	}
	if err := s.db.Create(learned).Error; err != nil {
		return nil, fmt.Errorf("append learned answer for request %d: %w", sourceID, err)
	}
	return learned, nil
}

// ListLearned returns up to limit learned answers, most recently learned
// first. A non-positive limit falls back to 50.
func (s *Store) ListLearned(limit int) ([]LearnedAnswer, error) {
	if limit <= 0 {
		limit = 50
	}
	var answers []LearnedAnswer
	err := s.db.Order("learned_at DESC, id DESC").
		Limit(limit).
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("list learned answers: %w", err)
	}
	return answers, nil
}

// ListHistory returns every help request regardless of status, newest first.
func (s *Store) ListHistory() ([]HelpRequest, error) {
	var requests []HelpRequest
	err := s.db.Order("created_at DESC").Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("list request history: %w", err)
	}
	return requests, nil
}

// ListNotifications returns up to limit notifications, newest first.
func (s *Store) ListNotifications(limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []Notification
	err := s.db.Order("timestamp DESC, id DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *Store) AppendNotification(n *Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	if n.Status == "" {
		n.Status = "unread"
	}
	if err := s.db.Create(n).Error; err != nil {
		return fmt.Errorf("append notification for request %d: %w", n.RequestID, err)
	}
	return nil
}

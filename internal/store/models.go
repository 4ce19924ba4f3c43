package store

import (
	"time"
)

// HelpRequest statuses. A request is pending until exactly one terminal
// transition happens: a supervisor resolves it or its expiry passes.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusExpired  = "expired"
)

// RequestTimeout is how long a help request stays actionable after creation.
const RequestTimeout = 30 * time.Minute

type HelpRequest struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	Question    string     `json:"question" gorm:"type:text;not null"`
	CallerID    string     `json:"caller_id" gorm:"column:caller_id;index;not null"`
	Status      string     `json:"status" gorm:"default:pending;not null;index"`
	Answer      string     `json:"answer,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUpdated time.Time  `json:"last_updated"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func (HelpRequest) TableName() string { return "help_requests" }

// LearnedAnswer is a supervisor-provided answer kept for automated reuse.
// Rows are append-only; SourceRequest points back at the resolved request
// that produced this answer.
type LearnedAnswer struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	Question      string    `json:"question" gorm:"type:text;not null"`
	Answer        string    `json:"answer" gorm:"type:text;not null"`
	LearnedAt     time.Time `json:"learned_at" gorm:"index"`
	SourceRequest uint      `json:"source_request" gorm:"index"`
}

func (LearnedAnswer) TableName() string { return "learned_answers" }

// Notification is the durable trail of supervisor nudges. The core only
// appends; read/unread bookkeeping belongs to the dashboard.
type Notification struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Type      string    `json:"type" gorm:"not null"`
	RequestID uint      `json:"request_id" gorm:"index"`
	CallerID  string    `json:"caller_id" gorm:"column:caller_id"`
	Question  string    `json:"question" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status" gorm:"default:unread"`
}

func (Notification) TableName() string { return "notifications" }

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidAction    = errors.New("audit action is required")
	ErrInvalidTenant    = errors.New("audit tenant is required")
	ErrInvalidTimeRange = errors.New("start must be before end")
	ErrInvalidPageToken = errors.New("invalid page token")
)

// Result classifies the outcome recorded by an audit entry.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultWarning Result = "warning"
	ResultError   Result = "error"
	ResultPending Result = "pending"
)

// AuditLog is one append-only trail entry. SessionRef is a weak reference to
// an IVR session by correlation id; entries are write-once and ordered by
// timestamp only, since provider events carry no sequence numbers.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	SessionRef string            `gorm:"index" json:"session_ref,omitempty"`
	Action     string            `gorm:"not null;index" json:"action"`
	Channel    string            `gorm:"not null;default:'voice'" json:"channel"`
	Result     Result            `gorm:"not null" json:"result"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	IPAddress  *string           `json:"ip_address,omitempty"`
	UserAgent  *string           `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

// Entry is the caller-facing shape for writing one audit record.
type Entry struct {
	TenantID   snowflake.ID
	SessionRef string
	Action     string
	Channel    string
	Result     Result
	Metadata   map[string]any
}

type ListFilter struct {
	TenantID   snowflake.ID
	SessionRef string
	Action     string
	Result     string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *Cursor
	Limit      int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListRequest struct {
	TenantID   snowflake.ID
	SessionRef string
	Action     string
	Result     string
	StartAt    *time.Time
	EndAt      *time.Time
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	Entries       []*AuditLog
	NextPageToken string
	HasMore       bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	// Log appends one entry. Write failures are logged and returned but
	// must never abort the caller's primary action.
	Log(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

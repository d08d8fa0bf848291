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
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("invalid conversation role")
)

// Status is the IVR session lifecycle state.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CanTransition enforces the monotonic lifecycle: initiated → active →
// completed, with failed reachable from initiated or active only. Events may
// arrive out of order or twice, so a disallowed transition is not an error at
// this layer; callers skip it and keep the merged metadata.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusActive:
		return from == StatusInitiated
	case StatusCompleted:
		return from == StatusInitiated || from == StatusActive
	case StatusFailed:
		return from == StatusInitiated || from == StatusActive
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IvrSession is one outbound IVR call. CorrelationID is minted at initiation
// and is the key every later provider event references; rows are never
// deleted (retained for audit/compliance).
type IvrSession struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	CorrelationID     string            `gorm:"uniqueIndex;not null" json:"correlation_id"`
	TenantID          snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	OriginatingNumber string            `gorm:"not null" json:"originating_number"`
	MemberID          *snowflake.ID     `json:"member_id,omitempty"`
	Status            Status            `gorm:"not null;default:'initiated'" json:"status"`
	ProviderCallID    string            `json:"provider_call_id,omitempty"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	StartedAt         time.Time         `gorm:"not null" json:"started_at"`
	EndedAt           *time.Time        `json:"ended_at,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Message roles, mirroring the provider transcript stream.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one transcript line, owned by the session.
type ConversationMessage struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	CorrelationID string            `gorm:"not null;index" json:"correlation_id"`
	TenantID      snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	Role          string            `gorm:"not null" json:"role"`
	Content       string            `gorm:"not null" json:"content"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// EmotionSample is one per-utterance emotion classification result.
type EmotionSample struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	CorrelationID   string            `gorm:"not null;index" json:"correlation_id"`
	TenantID        snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	DominantEmotion string            `gorm:"not null" json:"dominant_emotion"`
	Confidence      float64           `gorm:"not null" json:"confidence"`
	AllEmotions     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"all_emotions,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *IvrSession) error
	FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*IvrSession, error)
	Update(ctx context.Context, db *gorm.DB, correlationID string, updates map[string]any) error
	InsertMessage(ctx context.Context, db *gorm.DB, message *ConversationMessage) error
	InsertEmotion(ctx context.Context, db *gorm.DB, sample *EmotionSample) error
}

type Service interface {
	Create(ctx context.Context, session *IvrSession) error
	GetByCorrelationID(ctx context.Context, correlationID string) (*IvrSession, error)

	// MergeMetadata additively merges patch into the session metadata.
	// Existing keys are overwritten per field, never wholesale replaced.
	MergeMetadata(ctx context.Context, correlationID string, patch map[string]any) error

	// AssignProviderCall records the carrier call id after a successful
	// dispatch. The typed column is written once; patch merges into
	// metadata like any other update.
	AssignProviderCall(ctx context.Context, correlationID, providerCallID string, patch map[string]any) error

	// Transition merges patch and moves the session to the target status
	// when the monotonic lifecycle allows it; endedAt is written exactly
	// once, on the first move into a terminal state. Returns the session
	// as observed, or ErrSessionNotFound.
	Transition(ctx context.Context, correlationID string, to Status, patch map[string]any, endedAt *time.Time) (*IvrSession, error)

	AppendMessage(ctx context.Context, message *ConversationMessage) error
	AppendEmotion(ctx context.Context, sample *EmotionSample) error
}

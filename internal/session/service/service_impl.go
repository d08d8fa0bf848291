package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/session/domain"
	"github.com/cubridge/voiceline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("session.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, session *domain.IvrSession) error {
	if session.ID == 0 {
		session.ID = s.genID.Generate()
	}
	if session.Status == "" {
		session.Status = domain.StatusInitiated
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = s.clock.Now()
	}
	if session.Metadata == nil {
		session.Metadata = datatypes.JSONMap{}
	}
	err := s.repo.Insert(ctx, s.db, session)
	if err != nil && db.IsDuplicateKeyErr(err) {
		// Correlation ids are minted once; a duplicate insert is a
		// replayed initiation and the existing row wins.
		s.log.Warn("session already exists", zap.String("correlation_id", session.CorrelationID))
		return nil
	}
	return err
}

func (s *Service) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.IvrSession, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, nil
	}
	return s.repo.FindByCorrelationID(ctx, s.db, correlationID)
}

func (s *Service) MergeMetadata(ctx context.Context, correlationID string, patch map[string]any) error {
	_, err := s.Transition(ctx, correlationID, "", patch, nil)
	return err
}

// AssignProviderCall sets the provider_call_id column on the first successful
// dispatch and merges the patch into metadata. A replayed assignment keeps the
// original id; the metadata merge is safe to repeat.
func (s *Service) AssignProviderCall(ctx context.Context, correlationID, providerCallID string, patch map[string]any) error {
	session, err := s.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return err
	}
	if session == nil {
		return domain.ErrSessionNotFound
	}

	merged := datatypes.JSONMap{}
	for k, v := range session.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		if k == "" {
			continue
		}
		merged[k] = v
	}

	updates := map[string]any{
		"metadata":   merged,
		"updated_at": s.clock.Now(),
	}
	if providerCallID != "" && session.ProviderCallID == "" {
		updates["provider_call_id"] = providerCallID
	}
	return s.repo.Update(ctx, s.db, correlationID, updates)
}

// Transition is a per-row read-modify-write. Metadata merges are additive and
// last-write-wins per field; the status only moves forward, so replaying an
// already-applied event leaves the row unchanged apart from the re-merged
// (identical) metadata.
func (s *Service) Transition(ctx context.Context, correlationID string, to domain.Status, patch map[string]any, endedAt *time.Time) (*domain.IvrSession, error) {
	session, err := s.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	updates := map[string]any{}

	if len(patch) > 0 {
		merged := datatypes.JSONMap{}
		for k, v := range session.Metadata {
			merged[k] = v
		}
		for k, v := range patch {
			if k == "" {
				continue
			}
			merged[k] = v
		}
		session.Metadata = merged
		updates["metadata"] = merged
	}

	if to != "" && domain.CanTransition(session.Status, to) {
		session.Status = to
		updates["status"] = to

		if to.IsTerminal() && session.EndedAt == nil {
			end := s.clock.Now()
			if endedAt != nil {
				end = endedAt.UTC()
			}
			session.EndedAt = &end
			updates["ended_at"] = end
		}
	}

	if len(updates) == 0 {
		return session, nil
	}
	updates["updated_at"] = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, correlationID, updates); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	if message.Role != domain.RoleUser && message.Role != domain.RoleAssistant {
		return domain.ErrInvalidRole
	}
	if message.ID == 0 {
		message.ID = s.genID.Generate()
	}
	if message.Metadata == nil {
		message.Metadata = datatypes.JSONMap{}
	}
	return s.repo.InsertMessage(ctx, s.db, message)
}

func (s *Service) AppendEmotion(ctx context.Context, sample *domain.EmotionSample) error {
	if sample.ID == 0 {
		sample.ID = s.genID.Generate()
	}
	if sample.AllEmotions == nil {
		sample.AllEmotions = datatypes.JSONMap{}
	}
	return s.repo.InsertEmotion(ctx, s.db, sample)
}

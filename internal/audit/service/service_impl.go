package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/reqctx"
	"github.com/cubridge/voiceline/pkg/db/pagination"
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
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Log(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if entry.TenantID == 0 {
		return auditdomain.ErrInvalidTenant
	}

	channel := strings.TrimSpace(entry.Channel)
	if channel == "" {
		channel = "voice"
	}
	result := entry.Result
	if result == "" {
		result = auditdomain.ResultPending
	}

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := reqctx.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if reqctx.StrippedModeFromContext(ctx) {
		payload["stripped_mode"] = true
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   entry.TenantID,
		SessionRef: strings.TrimSpace(entry.SessionRef),
		Action:     action,
		Channel:    channel,
		Result:     result,
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  s.clock.Now(),
	}
	if ipAddress := reqctx.IPAddressFromContext(ctx); ipAddress != "" {
		row.IPAddress = &ipAddress
	}
	if userAgent := reqctx.UserAgentFromContext(ctx); userAgent != "" {
		row.UserAgent = &userAgent
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.TenantID == 0 {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTenant
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := strconv.ParseInt(decoded.ID, 10, 64)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: snowflake.ID(id), CreatedAt: createdAt}
	}

	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 25
	}

	logs, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TenantID:   req.TenantID,
		SessionRef: req.SessionRef,
		Action:     req.Action,
		Result:     req.Result,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	logs, pageInfo := pagination.BuildCursorPageInfo(logs, limit, func(entry *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := auditdomain.ListResponse{Entries: logs, HasMore: pageInfo.HasMore}
	if pageInfo.HasMore {
		resp.NextPageToken = pageInfo.NextPageToken
	}
	return resp, nil
}

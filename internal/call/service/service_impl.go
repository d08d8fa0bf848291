package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/call/domain"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/config"
	memberdomain "github.com/cubridge/voiceline/internal/member/domain"
	"github.com/cubridge/voiceline/internal/observability/metrics"
	"github.com/cubridge/voiceline/internal/providers/telephony"
	"github.com/cubridge/voiceline/internal/providers/voiceai"
	sessiondomain "github.com/cubridge/voiceline/internal/session/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Policy  *config.IvrPolicyHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`

	Tenants  tenantdomain.Service
	Members  memberdomain.Service
	Sessions sessiondomain.Service
	Audit    auditdomain.Service

	Dialer  telephony.Dialer
	VoiceAI *voiceai.Provider
}

type Service struct {
	log     *zap.Logger
	cfg     config.Config
	policy  *config.IvrPolicyHolder
	clock   clock.Clock
	metrics *metrics.Metrics

	tenants  tenantdomain.Service
	members  memberdomain.Service
	sessions sessiondomain.Service
	audit    auditdomain.Service

	dialer  telephony.Dialer
	voiceAI *voiceai.Provider
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("call.service"),
		cfg:      p.Cfg,
		policy:   p.Policy,
		clock:    p.Clock,
		metrics:  p.Metrics,
		tenants:  p.Tenants,
		members:  p.Members,
		sessions: p.Sessions,
		audit:    p.Audit,
		dialer:   p.Dialer,
		voiceAI:  p.VoiceAI,
	}
}

// Initiate places one outbound IVR call. Order matters: configuration
// failures surface before any session row exists, and a dispatch failure
// leaves the session in initiated so the caller can retry initiation.
func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.InitiateResult, error) {
	policy := s.policy.Get()

	legacy := req.LegacyTenantID
	if legacy == "" {
		legacy = req.TenantID
	}
	ivrCfg, err := s.tenants.ResolveIvrConfig(ctx, tenantdomain.Ref{TenantID: req.TenantID, LegacySlug: legacy})
	if err != nil {
		s.recordOutcome(ctx, "tenant_not_found")
		return nil, err
	}

	target := strings.TrimSpace(req.PhoneNumber)
	if target == "" {
		target = policy.DefaultTestNumber
	}
	if target == "" {
		s.recordOutcome(ctx, "missing_target")
		return nil, domain.ErrMissingTargetNumber
	}

	if !s.dialer.Configured() || !s.voiceAI.Configured() {
		s.recordOutcome(ctx, "missing_credentials")
		return nil, domain.ErrMissingProviderCredentials
	}

	normalizedTarget := memberdomain.NormalizePhone(target)

	// Member recognition is best effort; an unrecognized caller still gets
	// a call, the assistant just skips the personalized greeting.
	var member *memberdomain.Member
	if m, err := s.members.FindByPhone(ctx, ivrCfg.TenantID, normalizedTarget); err != nil {
		s.log.Warn("member lookup failed, continuing unrecognized",
			zap.String("tenant_id", ivrCfg.TenantID.String()),
			zap.Error(err))
	} else {
		member = m
	}

	correlationID := ulid.MustNew(ulid.Timestamp(s.clock.Now()), rand.Reader).String()

	session := &sessiondomain.IvrSession{
		CorrelationID:     correlationID,
		TenantID:          ivrCfg.TenantID,
		OriginatingNumber: normalizedTarget,
		Status:            sessiondomain.StatusInitiated,
		Metadata:          s.initialMetadata(req, ivrCfg, member, target),
		StartedAt:         s.clock.Now(),
	}
	if member != nil {
		session.MemberID = &member.ID
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		// The call is still worth placing; events for an unknown
		// correlation id are acknowledged and dropped downstream.
		s.log.Error("session create failed, dispatching anyway",
			zap.String("correlation_id", correlationID),
			zap.Error(err))
	}

	s.auditCall(ctx, ivrCfg, correlationID, auditdomain.ResultPending, map[string]any{
		"phoneNumber":      target,
		"memberRecognized": member != nil,
	})

	result, err := s.dispatch(ctx, policy, ivrCfg, correlationID, target)
	if err != nil {
		// The session stays in initiated with no provider call id; a
		// retried initiation mints a fresh correlation id.
		s.auditCall(ctx, ivrCfg, correlationID, auditdomain.ResultFailure, map[string]any{
			"phoneNumber": target,
			"error":       err.Error(),
		})
		s.recordOutcome(ctx, "dispatch_failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	if err := s.sessions.AssignProviderCall(ctx, correlationID, result.CallID, map[string]any{
		"providerCallId": result.CallID,
		"carrierStatus":  result.Status,
	}); err != nil {
		s.log.Warn("provider call id not recorded", zap.String("correlation_id", correlationID), zap.Error(err))
	}
	s.auditCall(ctx, ivrCfg, correlationID, auditdomain.ResultSuccess, map[string]any{
		"phoneNumber":      target,
		"providerCallId":   result.CallID,
		"memberRecognized": member != nil,
	})
	s.recordOutcome(ctx, "success")

	return &domain.InitiateResult{
		CorrelationID:     correlationID,
		ProviderCallID:    result.CallID,
		ProviderStatus:    result.Status,
		DestinationNumber: target,
		OriginNumber:      ivrCfg.OutboundNumber,
		TenantID:          ivrCfg.TenantID.String(),
		TenantDisplayName: ivrCfg.DisplayName,
		AIConfigID:        s.aiConfigID(ivrCfg),
		MemberRecognized:  member != nil,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, policy config.IvrPolicy, ivrCfg tenantdomain.IvrConfig, correlationID, target string) (telephony.PlaceCallResult, error) {
	timeout := time.Duration(policy.DispatchTimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.dialer.PlaceCall(dispatchCtx, telephony.PlaceCallRequest{
		To:                   target,
		From:                 ivrCfg.OutboundNumber,
		VoiceURL:             s.voiceAI.VoiceWebhookURL(ivrCfg.AIConfigID),
		StatusCallbackURL:    s.statusCallbackURL(ivrCfg, correlationID),
		StatusCallbackEvents: []string{"initiated", "ringing", "answered", "completed"},
	})
}

func (s *Service) aiConfigID(ivrCfg tenantdomain.IvrConfig) string {
	if ivrCfg.AIConfigID != "" {
		return ivrCfg.AIConfigID
	}
	return s.voiceAI.DefaultConfigID()
}

func (s *Service) statusCallbackURL(ivrCfg tenantdomain.IvrConfig, correlationID string) string {
	q := url.Values{}
	q.Set("correlation_id", correlationID)
	q.Set("tenant_id", ivrCfg.TenantID.String())
	return fmt.Sprintf("%s/webhooks/voice/status?%s", s.cfg.PublicBaseURL, q.Encode())
}

func (s *Service) initialMetadata(req domain.InitiateRequest, ivrCfg tenantdomain.IvrConfig, member *memberdomain.Member, target string) map[string]any {
	md := map[string]any{
		"tenantName":       ivrCfg.DisplayName,
		"phoneNumber":      target,
		"direction":        "outbound",
		"aiConfigId":       s.aiConfigID(ivrCfg),
		"memberRecognized": member != nil,
	}
	if member != nil {
		md["memberName"] = member.Name
	}
	for k, v := range req.Metadata {
		md[k] = v
	}
	return md
}

func (s *Service) auditCall(ctx context.Context, ivrCfg tenantdomain.IvrConfig, correlationID string, result auditdomain.Result, md map[string]any) {
	_ = s.audit.Log(ctx, auditdomain.Entry{
		TenantID:   ivrCfg.TenantID,
		SessionRef: correlationID,
		Action:     "ivr.call_initiated",
		Result:     result,
		Metadata:   md,
	})
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCallInitiated(ctx, outcome)
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/escalation"
	"github.com/cubridge/voiceline/internal/event/domain"
	"github.com/cubridge/voiceline/internal/observability/metrics"
	sessiondomain "github.com/cubridge/voiceline/internal/session/domain"
)

// Metadata keys stamped by the router. The conversation start marker, not
// the dispatch time, anchors duration computation: the carrier can take
// many seconds between dispatch and the assistant picking up.
const (
	metaConversationStartedAt = "conversationStartedAt"
	metaConversationEndedAt   = "conversationEndedAt"
	metaDurationSeconds       = "durationSeconds"
	metaEndReason             = "endReason"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`

	Sessions   sessiondomain.Service
	Audit      auditdomain.Service
	Escalation *escalation.Policy
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics

	sessions   sessiondomain.Service
	audit      auditdomain.Service
	escalation *escalation.Policy
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("event.service"),
		clock:      p.Clock,
		metrics:    p.Metrics,
		sessions:   p.Sessions,
		audit:      p.Audit,
		escalation: p.Escalation,
	}
}

// Route dispatches one provider event. Handlers tolerate redelivery and
// arbitrary ordering: every mutation is a metadata merge plus a monotonic
// status transition, so replaying an event is harmless.
func (s *Service) Route(ctx context.Context, event domain.Event) domain.Ack {
	log := s.log.With(
		zap.String("event_type", string(event.Type)),
		zap.String("correlation_id", event.CorrelationID))

	var outcome string
	switch event.Type {
	case domain.TypeConversationStarted:
		outcome = s.handleConversationStarted(ctx, log, event)
	case domain.TypeConversationEnded:
		outcome = s.handleConversationEnded(ctx, log, event)
	case domain.TypeToolCall:
		outcome = s.handleToolCall(ctx, log, event)
	case domain.TypeMessageUser:
		outcome = s.handleMessage(ctx, log, event, sessiondomain.RoleUser)
	case domain.TypeMessageAssistant:
		outcome = s.handleMessage(ctx, log, event, sessiondomain.RoleAssistant)
	case domain.TypeEmotionDetected:
		outcome = s.handleEmotionDetected(ctx, log, event)
	case domain.TypeError:
		outcome = s.handleProviderError(ctx, log, event)
	default:
		log.Debug("unhandled event type acknowledged")
		outcome = "unhandled"
	}

	if s.metrics != nil {
		s.metrics.RecordIvrEvent(ctx, string(event.Type), outcome)
	}
	return domain.Ack{Acknowledged: true, Outcome: outcome}
}

func (s *Service) handleConversationStarted(ctx context.Context, log *zap.Logger, event domain.Event) string {
	session, ok := s.lookupSession(ctx, log, event.CorrelationID)
	if !ok {
		return "session_missing"
	}

	patch := mergeablePayload(event.Data)
	patch[metaConversationStartedAt] = s.eventTime(event).Format(time.RFC3339Nano)

	if _, err := s.sessions.Transition(ctx, event.CorrelationID, sessiondomain.StatusActive, patch, nil); err != nil {
		log.Error("conversation start not applied", zap.Error(err))
		return "persistence_failure"
	}
	s.auditEvent(ctx, session, event, "hume.conversation.started", auditdomain.ResultSuccess)
	return "applied"
}

func (s *Service) handleConversationEnded(ctx context.Context, log *zap.Logger, event domain.Event) string {
	session, ok := s.lookupSession(ctx, log, event.CorrelationID)
	if !ok {
		return "session_missing"
	}

	endedAt := s.eventTime(event)
	patch := mergeablePayload(event.Data)
	patch[metaConversationEndedAt] = endedAt.Format(time.RFC3339Nano)
	if reason := stringField(event.Data, "reason", "endReason"); reason != "" {
		patch[metaEndReason] = reason
	}
	if startedAt, ok := conversationStart(session.Metadata); ok {
		if secs := int64(endedAt.Sub(startedAt).Seconds()); secs >= 0 {
			patch[metaDurationSeconds] = secs
		}
	} else {
		// Late or lost conversation.started: no start marker to measure
		// from, so the duration is omitted rather than guessed.
		log.Warn("conversation start marker missing, omitting duration")
	}

	if _, err := s.sessions.Transition(ctx, event.CorrelationID, sessiondomain.StatusCompleted, patch, &endedAt); err != nil {
		log.Error("conversation end not applied", zap.Error(err))
		return "persistence_failure"
	}
	s.auditEvent(ctx, session, event, "hume.conversation.ended", auditdomain.ResultSuccess)
	return "applied"
}

func (s *Service) handleToolCall(ctx context.Context, log *zap.Logger, event domain.Event) string {
	name := stringField(event.Data, "name", "tool", "toolName")
	if name == "" {
		name = "unknown"
	}
	result := auditdomain.ResultSuccess
	if !toolSucceeded(event.Data) {
		result = auditdomain.ResultFailure
	}

	session, _ := s.lookupSession(ctx, log, event.CorrelationID)
	s.auditEvent(ctx, session, event, "tool."+name, result)
	return "applied"
}

func (s *Service) handleMessage(ctx context.Context, log *zap.Logger, event domain.Event, role string) string {
	content := stringField(event.Data, "content", "transcript", "text")
	if content == "" {
		log.Debug("message event without content, skipping append")
		return "empty_content"
	}

	session, ok := s.lookupSession(ctx, log, event.CorrelationID)
	if !ok {
		return "session_missing"
	}

	msg := &sessiondomain.ConversationMessage{
		CorrelationID: event.CorrelationID,
		TenantID:      session.TenantID,
		Role:          role,
		Content:       content,
		Metadata:      datatypes.JSONMap(mergeablePayload(event.Data)),
	}
	if err := s.sessions.AppendMessage(ctx, msg); err != nil {
		log.Error("transcript append failed", zap.Error(err))
		return "persistence_failure"
	}
	s.auditEvent(ctx, session, event, "hume."+string(event.Type), auditdomain.ResultSuccess)
	return "applied"
}

func (s *Service) handleEmotionDetected(ctx context.Context, log *zap.Logger, event domain.Event) string {
	dominant := strings.TrimSpace(stringField(event.Data, "dominantEmotion", "emotion"))
	confidence := floatField(event.Data, "confidence")

	session, ok := s.lookupSession(ctx, log, event.CorrelationID)
	if !ok {
		return "session_missing"
	}

	sample := &sessiondomain.EmotionSample{
		CorrelationID:   event.CorrelationID,
		TenantID:        session.TenantID,
		DominantEmotion: dominant,
		Confidence:      confidence,
		AllEmotions:     datatypes.JSONMap(mapField(event.Data, "emotions", "allEmotions")),
	}
	if err := s.sessions.AppendEmotion(ctx, sample); err != nil {
		log.Error("emotion append failed", zap.Error(err))
	}
	s.auditEvent(ctx, session, event, "hume.emotion.detected", auditdomain.ResultSuccess)

	if s.escalation.ShouldEscalate(dominant, confidence) {
		s.auditEvent(ctx, session, event, "emotion.high_frustration", auditdomain.ResultWarning)
		if s.metrics != nil {
			s.metrics.RecordEscalation(ctx, strings.ToLower(dominant))
		}
		log.Warn("escalation threshold crossed",
			zap.String("emotion", dominant),
			zap.Float64("confidence", confidence))
		return "escalated"
	}
	return "applied"
}

func (s *Service) handleProviderError(ctx context.Context, log *zap.Logger, event domain.Event) string {
	session, _ := s.lookupSession(ctx, log, event.CorrelationID)
	s.auditEvent(ctx, session, event, "hume.error", auditdomain.ResultError)
	return "applied"
}

// HandleStatusCallback records carrier lifecycle notifications. Completion
// ownership stays with conversation.ended; only a hard carrier failure
// moves the session, and only if it never reached a terminal state.
func (s *Service) HandleStatusCallback(ctx context.Context, cb domain.StatusCallback) domain.Ack {
	log := s.log.With(
		zap.String("correlation_id", cb.CorrelationID),
		zap.String("call_status", cb.CallStatus))

	session, ok := s.lookupSession(ctx, log, cb.CorrelationID)
	if !ok {
		return domain.Ack{Acknowledged: true, Outcome: "session_missing"}
	}

	status := strings.ToLower(strings.TrimSpace(cb.CallStatus))
	action := "twilio.status_" + strings.ReplaceAll(status, "-", "_")
	s.auditStatus(ctx, session, cb, action)

	switch status {
	case "failed", "busy", "no-answer", "canceled":
		now := s.clock.Now()
		patch := map[string]any{"carrierStatus": status}
		if _, err := s.sessions.Transition(ctx, cb.CorrelationID, sessiondomain.StatusFailed, patch, &now); err != nil {
			log.Error("carrier failure not applied", zap.Error(err))
			return domain.Ack{Acknowledged: true, Outcome: "persistence_failure"}
		}
		return domain.Ack{Acknowledged: true, Outcome: "failed"}
	default:
		if err := s.sessions.MergeMetadata(ctx, cb.CorrelationID, map[string]any{"carrierStatus": status}); err != nil {
			log.Warn("carrier status not recorded", zap.Error(err))
		}
		return domain.Ack{Acknowledged: true, Outcome: "recorded"}
	}
}

// lookupSession resolves the session an event references. Absence is a
// normal outcome under at-least-once delivery (the call may have been
// dispatched before its session row landed) and never creates a session.
func (s *Service) lookupSession(ctx context.Context, log *zap.Logger, correlationID string) (*sessiondomain.IvrSession, bool) {
	if correlationID == "" {
		return nil, false
	}
	session, err := s.sessions.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		log.Error("session lookup failed", zap.Error(err))
		return nil, false
	}
	if session == nil {
		log.Info("event references unknown session")
		return nil, false
	}
	return session, true
}

func (s *Service) eventTime(event domain.Event) time.Time {
	if !event.Timestamp.IsZero() {
		return event.Timestamp
	}
	return s.clock.Now()
}

func (s *Service) auditEvent(ctx context.Context, session *sessiondomain.IvrSession, event domain.Event, action string, result auditdomain.Result) {
	entry := auditdomain.Entry{
		Action:   action,
		Result:   result,
		Metadata: map[string]any{"eventType": string(event.Type), "payload": event.Data},
	}
	if session != nil {
		entry.TenantID = session.TenantID
		entry.SessionRef = session.CorrelationID
	} else {
		entry.SessionRef = event.CorrelationID
		if id, err := snowflake.ParseString(event.TenantID); err == nil {
			entry.TenantID = id
		}
	}
	if entry.TenantID == 0 {
		s.log.Debug("audit entry skipped, no tenant attribution", zap.String("action", action))
		return
	}
	_ = s.audit.Log(ctx, entry)
}

func (s *Service) auditStatus(ctx context.Context, session *sessiondomain.IvrSession, cb domain.StatusCallback, action string) {
	_ = s.audit.Log(ctx, auditdomain.Entry{
		TenantID:   session.TenantID,
		SessionRef: session.CorrelationID,
		Action:     action,
		Result:     auditdomain.ResultSuccess,
		Metadata: map[string]any{
			"callSid":      cb.CallSID,
			"callStatus":   cb.CallStatus,
			"callDuration": cb.CallDuration,
		},
	})
}

// mergeablePayload copies the event payload so handlers can stamp markers
// without mutating the decoded event.
func mergeablePayload(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}

func conversationStart(md datatypes.JSONMap) (time.Time, bool) {
	raw, ok := md[metaConversationStartedAt]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return 0
}

func mapField(data map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := data[k].(map[string]any); ok {
			return v
		}
	}
	return map[string]any{}
}

func toolSucceeded(data map[string]any) bool {
	if v, ok := data["success"].(bool); ok {
		return v
	}
	if v, ok := data["error"]; ok && v != nil {
		if s, isStr := v.(string); !isStr || s != "" {
			return false
		}
	}
	return true
}

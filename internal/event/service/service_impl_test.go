package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/config"
	"github.com/cubridge/voiceline/internal/escalation"
	"github.com/cubridge/voiceline/internal/event/domain"
	sessiondomain "github.com/cubridge/voiceline/internal/session/domain"
	sessionrepository "github.com/cubridge/voiceline/internal/session/repository"
	sessionservice "github.com/cubridge/voiceline/internal/session/service"
)

type mockAuditService struct{ mock.Mock }

func (m *mockAuditService) Log(ctx context.Context, entry auditdomain.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditService) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListResponse), args.Error(1)
}

type routerFixture struct {
	svc      domain.Service
	sessions sessiondomain.Service
	audit    *mockAuditService
	clock    *clock.FakeClock
	db       *gorm.DB
}

func newRouterFixture(t *testing.T) *routerFixture {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&sessiondomain.IvrSession{},
		&sessiondomain.ConversationMessage{},
		&sessiondomain.EmotionSample{},
	))

	node, _ := snowflake.NewNode(1)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	sessions := sessionservice.NewService(sessionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  sessionrepository.Provide(),
	})

	audit := &mockAuditService{}
	audit.On("Log", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(Params{
		Log:        zap.NewNop(),
		Clock:      fakeClock,
		Sessions:   sessions,
		Audit:      audit,
		Escalation: escalation.NewPolicy(config.StaticIvrPolicyHolder(config.DefaultIvrPolicy())),
	})

	return &routerFixture{svc: svc, sessions: sessions, audit: audit, clock: fakeClock, db: db}
}

func (f *routerFixture) seedSession(t *testing.T, correlationID string) *sessiondomain.IvrSession {
	session := &sessiondomain.IvrSession{
		CorrelationID:     correlationID,
		TenantID:          snowflake.ID(42),
		OriginatingNumber: "+15550001111",
		Status:            sessiondomain.StatusInitiated,
		Metadata:          map[string]any{"phoneNumber": "+15550001111"},
		StartedAt:         f.clock.Now(),
	}
	assert.NoError(t, f.sessions.Create(context.Background(), session))
	return session
}

func (f *routerFixture) session(t *testing.T, correlationID string) *sessiondomain.IvrSession {
	s, err := f.sessions.GetByCorrelationID(context.Background(), correlationID)
	assert.NoError(t, err)
	assert.NotNil(t, s)
	return s
}

func startedEvent(correlationID string, at time.Time) domain.Event {
	return domain.Event{
		Type:          domain.TypeConversationStarted,
		Timestamp:     at,
		CorrelationID: correlationID,
		Data:          map[string]any{"chatId": "chat-9"},
	}
}

func endedEvent(correlationID string, at time.Time) domain.Event {
	return domain.Event{
		Type:          domain.TypeConversationEnded,
		Timestamp:     at,
		CorrelationID: correlationID,
		Data:          map[string]any{"reason": "user_hangup"},
	}
}

func TestConversationStartedActivatesSession(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	startAt := f.clock.Now().Add(8 * time.Second)
	ack := f.svc.Route(context.Background(), startedEvent("cid-1", startAt))
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, "applied", ack.Outcome)

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusActive, s.Status)
	assert.Equal(t, "chat-9", s.Metadata["chatId"])
	assert.Equal(t, "+15550001111", s.Metadata["phoneNumber"])
	assert.Equal(t, startAt.Format(time.RFC3339Nano), s.Metadata["conversationStartedAt"])
	assert.Nil(t, s.EndedAt)
}

func TestConversationStartedRedeliveryIsIdempotent(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")
	ev := startedEvent("cid-1", f.clock.Now().Add(8*time.Second))

	f.svc.Route(context.Background(), ev)
	once := f.session(t, "cid-1")

	f.svc.Route(context.Background(), ev)
	twice := f.session(t, "cid-1")

	assert.Equal(t, once.Status, twice.Status)
	assert.Equal(t, once.Metadata, twice.Metadata)
	assert.Equal(t, once.EndedAt, twice.EndedAt)
}

func TestConversationEndedComputesFlooredDuration(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	startAt := f.clock.Now().Add(5 * time.Second)
	endAt := startAt.Add(65*time.Second + 700*time.Millisecond)
	f.svc.Route(context.Background(), startedEvent("cid-1", startAt))
	ack := f.svc.Route(context.Background(), endedEvent("cid-1", endAt))
	assert.Equal(t, "applied", ack.Outcome)

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusCompleted, s.Status)
	assert.NotNil(t, s.EndedAt)
	assert.Equal(t, "user_hangup", s.Metadata["endReason"])
	// JSON round-trip through the metadata column yields float64.
	assert.EqualValues(t, 65, s.Metadata["durationSeconds"])
}

func TestConversationEndedWithoutStartMarkerOmitsDuration(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	f.svc.Route(context.Background(), endedEvent("cid-1", f.clock.Now().Add(time.Minute)))

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusCompleted, s.Status)
	assert.NotNil(t, s.EndedAt)
	_, present := s.Metadata["durationSeconds"]
	assert.False(t, present)
}

func TestEndedThenStartedDoesNotRevertCompletion(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	endAt := f.clock.Now().Add(90 * time.Second)
	f.svc.Route(context.Background(), endedEvent("cid-1", endAt))
	completed := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusCompleted, completed.Status)

	// The late start still lands its metadata, but status and endedAt
	// must not move.
	f.svc.Route(context.Background(), startedEvent("cid-1", f.clock.Now().Add(5*time.Second)))
	after := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusCompleted, after.Status)
	assert.Equal(t, completed.EndedAt.Unix(), after.EndedAt.Unix())
	assert.Equal(t, "chat-9", after.Metadata["chatId"])
}

func TestEventForUnknownSessionIsAcknowledged(t *testing.T) {
	f := newRouterFixture(t)

	ack := f.svc.Route(context.Background(), startedEvent("ghost", f.clock.Now()))
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, "session_missing", ack.Outcome)

	var count int64
	assert.NoError(t, f.db.Model(&sessiondomain.IvrSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUnknownEventTypeIsAcknowledgedWithoutEffect(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	ack := f.svc.Route(context.Background(), domain.Event{
		Type:          "assistant.prosody_updated",
		CorrelationID: "cid-1",
		Data:          map[string]any{},
	})
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, "unhandled", ack.Outcome)

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusInitiated, s.Status)
	f.audit.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)
}

func TestMessageEventsAppendTranscript(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeMessageUser,
		CorrelationID: "cid-1",
		Data:          map[string]any{"content": "what is my balance"},
	})
	f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeMessageAssistant,
		CorrelationID: "cid-1",
		Data:          map[string]any{"content": "your balance is $12.03"},
	})

	var messages []sessiondomain.ConversationMessage
	assert.NoError(t, f.db.Order("id").Find(&messages).Error)
	assert.Len(t, messages, 2)
	assert.Equal(t, sessiondomain.RoleUser, messages[0].Role)
	assert.Equal(t, "what is my balance", messages[0].Content)
	assert.Equal(t, sessiondomain.RoleAssistant, messages[1].Role)
}

func TestMessageEventWithoutContentIsSkipped(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	ack := f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeMessageUser,
		CorrelationID: "cid-1",
		Data:          map[string]any{},
	})
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, "empty_content", ack.Outcome)

	var count int64
	assert.NoError(t, f.db.Model(&sessiondomain.ConversationMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmotionAboveThresholdEscalates(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	ack := f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeEmotionDetected,
		CorrelationID: "cid-1",
		Data: map[string]any{
			"dominantEmotion": "Frustration",
			"confidence":      0.85,
			"emotions":        map[string]any{"frustration": 0.85, "calm": 0.05},
		},
	})
	assert.Equal(t, "escalated", ack.Outcome)

	var samples []sessiondomain.EmotionSample
	assert.NoError(t, f.db.Find(&samples).Error)
	assert.Len(t, samples, 1)
	assert.Equal(t, "Frustration", samples[0].DominantEmotion)
	assert.InDelta(t, 0.85, samples[0].Confidence, 1e-9)

	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "emotion.high_frustration" && e.Result == auditdomain.ResultWarning
	}))
}

func TestEmotionAtThresholdDoesNotEscalate(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	ack := f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeEmotionDetected,
		CorrelationID: "cid-1",
		Data:          map[string]any{"dominantEmotion": "anger", "confidence": 0.7},
	})
	assert.Equal(t, "applied", ack.Outcome)

	f.audit.AssertNotCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "emotion.high_frustration"
	}))
}

func TestToolCallAuditsNamespacedAction(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeToolCall,
		CorrelationID: "cid-1",
		Data:          map[string]any{"name": "account_balance", "success": true},
	})
	f.svc.Route(context.Background(), domain.Event{
		Type:          domain.TypeToolCall,
		CorrelationID: "cid-1",
		Data:          map[string]any{"name": "card_freeze", "error": "member not verified"},
	})

	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "tool.account_balance" && e.Result == auditdomain.ResultSuccess
	}))
	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "tool.card_freeze" && e.Result == auditdomain.ResultFailure
	}))
}

func TestStatusCallbackFailureMarksSessionFailed(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")

	ack := f.svc.HandleStatusCallback(context.Background(), domain.StatusCallback{
		CorrelationID: "cid-1",
		CallSID:       "CA1",
		CallStatus:    "no-answer",
	})
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, "failed", ack.Outcome)

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusFailed, s.Status)
	assert.NotNil(t, s.EndedAt)

	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "twilio.status_no_answer"
	}))
}

func TestStatusCallbackCompletedLeavesStatusToConversationEnded(t *testing.T) {
	f := newRouterFixture(t)
	f.seedSession(t, "cid-1")
	f.svc.Route(context.Background(), startedEvent("cid-1", f.clock.Now()))

	ack := f.svc.HandleStatusCallback(context.Background(), domain.StatusCallback{
		CorrelationID: "cid-1",
		CallSID:       "CA1",
		CallStatus:    "completed",
		CallDuration:  "72",
	})
	assert.Equal(t, "recorded", ack.Outcome)

	s := f.session(t, "cid-1")
	assert.Equal(t, sessiondomain.StatusActive, s.Status)
	assert.Equal(t, "completed", s.Metadata["carrierStatus"])
	assert.Nil(t, s.EndedAt)
}

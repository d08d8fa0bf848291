package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/call/domain"
	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/config"
	memberdomain "github.com/cubridge/voiceline/internal/member/domain"
	"github.com/cubridge/voiceline/internal/providers/telephony"
	"github.com/cubridge/voiceline/internal/providers/voiceai"
	sessiondomain "github.com/cubridge/voiceline/internal/session/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

type mockTenantService struct{ mock.Mock }

func (m *mockTenantService) Resolve(ctx context.Context, ref tenantdomain.Ref) (*tenantdomain.Tenant, error) {
	args := m.Called(ctx, ref)
	if t, ok := args.Get(0).(*tenantdomain.Tenant); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTenantService) ResolveIvrConfig(ctx context.Context, ref tenantdomain.Ref) (tenantdomain.IvrConfig, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(tenantdomain.IvrConfig), args.Error(1)
}

type mockMemberService struct{ mock.Mock }

func (m *mockMemberService) FindByPhone(ctx context.Context, tenantID snowflake.ID, phone string) (*memberdomain.Member, error) {
	args := m.Called(ctx, tenantID, phone)
	if mm, ok := args.Get(0).(*memberdomain.Member); ok {
		return mm, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionService struct{ mock.Mock }

func (m *mockSessionService) Create(ctx context.Context, session *sessiondomain.IvrSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockSessionService) GetByCorrelationID(ctx context.Context, correlationID string) (*sessiondomain.IvrSession, error) {
	args := m.Called(ctx, correlationID)
	if s, ok := args.Get(0).(*sessiondomain.IvrSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionService) MergeMetadata(ctx context.Context, correlationID string, patch map[string]any) error {
	return m.Called(ctx, correlationID, patch).Error(0)
}

func (m *mockSessionService) AssignProviderCall(ctx context.Context, correlationID, providerCallID string, patch map[string]any) error {
	return m.Called(ctx, correlationID, providerCallID, patch).Error(0)
}

func (m *mockSessionService) Transition(ctx context.Context, correlationID string, to sessiondomain.Status, patch map[string]any, endedAt *time.Time) (*sessiondomain.IvrSession, error) {
	args := m.Called(ctx, correlationID, to, patch, endedAt)
	if s, ok := args.Get(0).(*sessiondomain.IvrSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionService) AppendMessage(ctx context.Context, msg *sessiondomain.ConversationMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockSessionService) AppendEmotion(ctx context.Context, sample *sessiondomain.EmotionSample) error {
	return m.Called(ctx, sample).Error(0)
}

type mockAuditService struct{ mock.Mock }

func (m *mockAuditService) Log(ctx context.Context, entry auditdomain.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditService) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListResponse), args.Error(1)
}

type mockDialer struct{ mock.Mock }

func (m *mockDialer) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(telephony.PlaceCallResult), args.Error(1)
}

func (m *mockDialer) Configured() bool {
	return m.Called().Bool(0)
}

type fixture struct {
	svc      domain.Service
	tenants  *mockTenantService
	members  *mockMemberService
	sessions *mockSessionService
	audit    *mockAuditService
	dialer   *mockDialer
}

func newFixture(voiceCfg config.VoiceAIConfig, policy config.IvrPolicy) *fixture {
	f := &fixture{
		tenants:  &mockTenantService{},
		members:  &mockMemberService{},
		sessions: &mockSessionService{},
		audit:    &mockAuditService{},
		dialer:   &mockDialer{},
	}
	cfg := config.Config{PublicBaseURL: "https://api.example.com", VoiceAI: voiceCfg}
	f.svc = NewService(Params{
		Log:      zap.NewNop(),
		Cfg:      cfg,
		Policy:   config.StaticIvrPolicyHolder(policy),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Tenants:  f.tenants,
		Members:  f.members,
		Sessions: f.sessions,
		Audit:    f.audit,
		Dialer:   f.dialer,
		VoiceAI:  voiceai.NewFromConfig(cfg),
	})
	return f
}

func configuredVoiceAI() config.VoiceAIConfig {
	return config.VoiceAIConfig{
		APIKey:          "hk_test",
		DefaultConfigID: "cfg-default",
		WebhookBaseURL:  "https://voice.example.com",
	}
}

func demoIvrConfig() tenantdomain.IvrConfig {
	return tenantdomain.IvrConfig{
		TenantID:       snowflake.ID(42),
		DisplayName:    "Harborview Credit Union",
		OutboundNumber: "+15559990000",
		AIConfigID:     "cfg-harborview",
	}
}

func TestInitiateSuccessWithRecognizedMember(t *testing.T) {
	f := newFixture(configuredVoiceAI(), config.DefaultIvrPolicy())

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).Return(demoIvrConfig(), nil)
	f.dialer.On("Configured").Return(true)
	f.members.On("FindByPhone", mock.Anything, snowflake.ID(42), "15550001111").
		Return(&memberdomain.Member{ID: snowflake.ID(7), Name: "Dana"}, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.dialer.On("PlaceCall", mock.Anything, mock.MatchedBy(func(req telephony.PlaceCallRequest) bool {
		return req.To == "+15550001111" && req.From == "+15559990000"
	})).Return(telephony.PlaceCallResult{CallID: "CA1", Status: "queued"}, nil)
	f.sessions.On("AssignProviderCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audit.On("Log", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		TenantID:    "42",
		PhoneNumber: "+15550001111",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, "CA1", res.ProviderCallID)
	assert.Equal(t, "queued", res.ProviderStatus)
	assert.Equal(t, "+15550001111", res.DestinationNumber)
	assert.Equal(t, "+15559990000", res.OriginNumber)
	assert.Equal(t, "Harborview Credit Union", res.TenantDisplayName)
	assert.Equal(t, "cfg-harborview", res.AIConfigID)
	assert.True(t, res.MemberRecognized)

	created := f.sessions.Calls[0].Arguments.Get(1).(*sessiondomain.IvrSession)
	assert.Equal(t, res.CorrelationID, created.CorrelationID)
	assert.Equal(t, sessiondomain.StatusInitiated, created.Status)
	assert.Equal(t, "15550001111", created.OriginatingNumber)
	if assert.NotNil(t, created.MemberID) {
		assert.Equal(t, snowflake.ID(7), *created.MemberID)
	}
	assert.Equal(t, true, created.Metadata["memberRecognized"])
	assert.Equal(t, "Dana", created.Metadata["memberName"])
	assert.Equal(t, "outbound", created.Metadata["direction"])
	assert.Equal(t, "cfg-harborview", created.Metadata["aiConfigId"])

	f.sessions.AssertCalled(t, "AssignProviderCall", mock.Anything, res.CorrelationID, "CA1", mock.Anything)
	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "ivr.call_initiated" && e.Result == auditdomain.ResultPending
	}))

	placed := f.dialer.Calls[1].Arguments.Get(1).(telephony.PlaceCallRequest)
	assert.Contains(t, placed.VoiceURL, "config_id=cfg-harborview")
	assert.Contains(t, placed.StatusCallbackURL, "correlation_id="+res.CorrelationID)
	assert.Equal(t, []string{"initiated", "ringing", "answered", "completed"}, placed.StatusCallbackEvents)
}

func TestInitiateMissingCredentialsWritesNoSession(t *testing.T) {
	f := newFixture(config.VoiceAIConfig{}, config.DefaultIvrPolicy())

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).Return(demoIvrConfig(), nil)
	f.dialer.On("Configured").Return(false)

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		TenantID:    "42",
		PhoneNumber: "+15550001111",
	})
	assert.ErrorIs(t, err, domain.ErrMissingProviderCredentials)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.dialer.AssertNotCalled(t, "PlaceCall", mock.Anything, mock.Anything)
}

func TestInitiateDispatchFailureLeavesSessionInitiated(t *testing.T) {
	f := newFixture(configuredVoiceAI(), config.DefaultIvrPolicy())

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).Return(demoIvrConfig(), nil)
	f.dialer.On("Configured").Return(true)
	f.members.On("FindByPhone", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.dialer.On("PlaceCall", mock.Anything, mock.Anything).
		Return(telephony.PlaceCallResult{}, errors.New("carrier rejected call"))
	f.audit.On("Log", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		TenantID:    "42",
		PhoneNumber: "+15550001111",
	})
	assert.ErrorIs(t, err, domain.ErrDispatchFailed)
	assert.ErrorContains(t, err, "carrier rejected call")

	// The session keeps its initiated row; the caller may retry.
	f.sessions.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "AssignProviderCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.audit.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == "ivr.call_initiated" && e.Result == auditdomain.ResultFailure
	}))
}

func TestInitiateTenantNotFound(t *testing.T) {
	f := newFixture(configuredVoiceAI(), config.DefaultIvrPolicy())

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).
		Return(tenantdomain.IvrConfig{}, tenantdomain.ErrTenantNotFound)

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{TenantID: "nope", PhoneNumber: "+1555"})
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}

func TestInitiateRejectsMissingTargetNumber(t *testing.T) {
	f := newFixture(configuredVoiceAI(), config.DefaultIvrPolicy())

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).Return(demoIvrConfig(), nil)

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{TenantID: "42"})
	assert.ErrorIs(t, err, domain.ErrMissingTargetNumber)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiateFallsBackToDefaultTestNumber(t *testing.T) {
	policy := config.DefaultIvrPolicy()
	policy.DefaultTestNumber = "+15558675309"
	f := newFixture(configuredVoiceAI(), policy)

	f.tenants.On("ResolveIvrConfig", mock.Anything, mock.Anything).Return(demoIvrConfig(), nil)
	f.dialer.On("Configured").Return(true)
	f.members.On("FindByPhone", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.dialer.On("PlaceCall", mock.Anything, mock.Anything).
		Return(telephony.PlaceCallResult{CallID: "CA2", Status: "queued"}, nil)
	f.sessions.On("AssignProviderCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audit.On("Log", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{TenantID: "42"})
	assert.NoError(t, err)
	assert.False(t, res.MemberRecognized)

	placed := f.dialer.Calls[1].Arguments.Get(1).(telephony.PlaceCallRequest)
	assert.Equal(t, "+15558675309", placed.To)
}

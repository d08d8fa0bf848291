package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecodeKnownEvent(t *testing.T) {
	body := []byte(`{
		"type": "conversation.started",
		"timestamp": "2026-03-01T12:00:05Z",
		"sessionCorrelationId": "01JC0XYZ",
		"tenantId": "42",
		"callProviderId": "CA1",
		"data": {"chatId": "chat-9"}
	}`)

	ev, err := Decode(body)
	assert.NoError(t, err)
	assert.Equal(t, TypeConversationStarted, ev.Type)
	assert.True(t, ev.Known())
	assert.Equal(t, "01JC0XYZ", ev.CorrelationID)
	assert.Equal(t, "42", ev.TenantID)
	assert.Equal(t, "CA1", ev.ProviderCallID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "chat-9", ev.Data["chatId"])
}

func TestDecodeUnknownTypeIsNotAParseFailure(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"assistant.prosody_updated"}`))
	assert.NoError(t, err)
	assert.False(t, ev.Known())
	assert.NotNil(t, ev.Data)
}

func TestDecodeParseFailures(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrEventParse)

	_, err = Decode([]byte(`{"timestamp":"2026-03-01T12:00:00Z"}`))
	assert.ErrorIs(t, err, ErrEventParse)
}

func TestDecodeEpochTimestamps(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","timestamp":1772366405000}`))
	assert.NoError(t, err)
	assert.Equal(t, int64(1772366405), ev.Timestamp.Unix())

	ev, err = Decode([]byte(`{"type":"error","timestamp":1772366405}`))
	assert.NoError(t, err)
	assert.Equal(t, int64(1772366405), ev.Timestamp.Unix())

	ev, err = Decode([]byte(`{"type":"error","timestamp":"not-a-time"}`))
	assert.NoError(t, err)
	assert.True(t, ev.Timestamp.IsZero())
}

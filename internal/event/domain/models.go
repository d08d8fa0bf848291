package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrEventParse means the webhook body was not decodable at all. This is the
// only failure the webhook endpoint reports back to the provider.
var ErrEventParse = errors.New("event body parse failure")

// Type discriminates the provider event stream. The set is open on the wire;
// anything outside the known constants routes to the unknown branch.
type Type string

const (
	TypeConversationStarted Type = "conversation.started"
	TypeConversationEnded   Type = "conversation.ended"
	TypeToolCall            Type = "tool.call"
	TypeMessageUser         Type = "message.user"
	TypeMessageAssistant    Type = "message.assistant"
	TypeEmotionDetected     Type = "emotion.detected"
	TypeError               Type = "error"
)

// Event is one decoded provider webhook delivery. Data carries the
// type-specific payload verbatim; handlers pull the fields they understand
// and ignore the rest.
type Event struct {
	Type           Type
	Timestamp      time.Time
	CorrelationID  string
	TenantID       string
	ProviderCallID string
	Data           map[string]any
}

// Known reports whether the type has a dedicated handler.
func (e Event) Known() bool {
	switch e.Type {
	case TypeConversationStarted, TypeConversationEnded, TypeToolCall,
		TypeMessageUser, TypeMessageAssistant, TypeEmotionDetected, TypeError:
		return true
	}
	return false
}

type envelope struct {
	Type                 string          `json:"type"`
	Timestamp            json.RawMessage `json:"timestamp"`
	SessionCorrelationID string          `json:"sessionCorrelationId"`
	TenantID             string          `json:"tenantId"`
	CallProviderID       string          `json:"callProviderId"`
	Data                 map[string]any  `json:"data"`
}

// Decode parses a webhook body into an Event. A body that is not a JSON
// object, or that carries no type discriminator, is a parse failure; every
// other shape defect is tolerated.
func Decode(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrEventParse, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type discriminator", ErrEventParse)
	}
	ev := Event{
		Type:           Type(env.Type),
		Timestamp:      parseTimestamp(env.Timestamp),
		CorrelationID:  env.SessionCorrelationID,
		TenantID:       env.TenantID,
		ProviderCallID: env.CallProviderID,
		Data:           env.Data,
	}
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	return ev, nil
}

// parseTimestamp accepts RFC3339 strings and unix epoch numbers (seconds or
// milliseconds); anything else yields the zero time and the router falls
// back to its own clock.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(n)
		}
		return time.Time{}
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return epochToTime(n)
	}
	return time.Time{}
}

func epochToTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// Ack is the webhook acknowledgement envelope. The provider only cares that
// acknowledged is true; details are for humans reading replayed traffic.
type Ack struct {
	Acknowledged bool   `json:"acknowledged"`
	Outcome      string `json:"outcome,omitempty"`
}

// StatusCallback is one carrier lifecycle notification for a dispatched
// call, delivered form-encoded on the status-callback URL.
type StatusCallback struct {
	CorrelationID string
	TenantID      string
	CallSID       string
	CallStatus    string
	CallDuration  string
}

type Service interface {
	// Route applies one provider event. It never returns an error: a
	// handler failure is logged and the event is acknowledged anyway so
	// the provider does not enter a redelivery storm.
	Route(ctx context.Context, event Event) Ack

	HandleStatusCallback(ctx context.Context, cb StatusCallback) Ack
}

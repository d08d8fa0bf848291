package telephony

import "context"

// PlaceCallRequest describes one outbound call dispatch.
type PlaceCallRequest struct {
	To                   string
	From                 string
	VoiceURL             string
	StatusCallbackURL    string
	StatusCallbackEvents []string
}

// PlaceCallResult is the provider's acknowledgement of a dispatched call.
type PlaceCallResult struct {
	CallID string
	Status string
}

// Dialer places outbound calls with the carrier.
type Dialer interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
	Configured() bool
}

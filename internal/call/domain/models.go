package domain

import (
	"context"
	"errors"
)

var (
	// ErrMissingProviderCredentials means the telephony account is not
	// configured for this deployment; no session row is written.
	ErrMissingProviderCredentials = errors.New("telephony provider credentials not configured")

	// ErrDispatchFailed wraps a carrier rejection after the session row
	// already exists; the session stays initiated so the caller can retry.
	ErrDispatchFailed = errors.New("call dispatch failed")

	ErrMissingTargetNumber = errors.New("target phone number required")
)

// InitiateRequest asks for one outbound IVR call within a tenant. TenantID
// and LegacyTenantID are alternative keys for the same tenant; either works.
type InitiateRequest struct {
	TenantID       string
	LegacyTenantID string
	PhoneNumber    string

	// Metadata is caller-supplied context carried verbatim into the
	// session metadata (campaign ids, operator notes).
	Metadata map[string]any
}

// InitiateResult is returned to the API caller once the carrier accepted
// the dispatch.
type InitiateResult struct {
	CorrelationID     string
	ProviderCallID    string
	ProviderStatus    string
	DestinationNumber string
	OriginNumber      string
	TenantID          string
	TenantDisplayName string
	AIConfigID        string
	MemberRecognized  bool
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
}

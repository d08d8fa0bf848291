package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	calldomain "github.com/cubridge/voiceline/internal/call/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

type initiateCallRequest struct {
	DestinationNumber string         `json:"destinationNumber"`
	TenantID          string         `json:"tenantId"`
	LegacyTenantID    string         `json:"legacyTenantId"`
	Metadata          map[string]any `json:"metadata"`
}

type initiateCallResponse struct {
	Success              bool   `json:"success"`
	CallProviderID       string `json:"callProviderId"`
	SessionCorrelationID string `json:"sessionCorrelationId"`
	ProviderStatus       string `json:"providerStatus"`
	DestinationNumber    string `json:"destinationNumber"`
	OriginNumber         string `json:"originNumber"`
	MemberRecognized     bool   `json:"memberRecognized"`
	TenantDisplayName    string `json:"tenantDisplayName"`
	AIConfigID           string `json:"aiConfigId"`
}

func (s *Server) InitiateCall(c *gin.Context) {
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	// Both tenant keys are optional; a request naming neither falls
	// through to resolution, which reports the tenant as not found.
	tenantKey := req.TenantID
	if tenantKey == "" {
		tenantKey = req.LegacyTenantID
	}
	if tenantKey != "" && s.initiateLimiter.Enabled() {
		// A broken limiter backend must not take call placement down
		// with it; fail open on limiter errors.
		res, err := s.initiateLimiter.Allow(c.Request.Context(), tenantKey)
		if err == nil && !res.Allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "calls.initiate", "bucket_empty")
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		} else if err == nil && s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), "calls.initiate")
		}
	}

	result, err := s.callSvc.Initiate(c.Request.Context(), calldomain.InitiateRequest{
		TenantID:       req.TenantID,
		LegacyTenantID: req.LegacyTenantID,
		PhoneNumber:    req.DestinationNumber,
		Metadata:       req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("correlation_id", result.CorrelationID)

	c.JSON(http.StatusOK, initiateCallResponse{
		Success:              true,
		CallProviderID:       result.ProviderCallID,
		SessionCorrelationID: result.CorrelationID,
		ProviderStatus:       result.ProviderStatus,
		DestinationNumber:    result.DestinationNumber,
		OriginNumber:         result.OriginNumber,
		MemberRecognized:     result.MemberRecognized,
		TenantDisplayName:    result.TenantDisplayName,
		AIConfigID:           result.AIConfigID,
	})
}

func (s *Server) GetIvrConfig(c *gin.Context) {
	id := c.Param("id")
	cfg, err := s.tenantSvc.ResolveIvrConfig(c.Request.Context(), tenantdomain.Ref{
		TenantID:   id,
		LegacySlug: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

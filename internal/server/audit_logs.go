package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

type auditLogsResponse struct {
	Entries       []*auditdomain.AuditLog `json:"entries"`
	NextPageToken string                  `json:"nextPageToken,omitempty"`
	HasMore       bool                    `json:"hasMore"`
}

// ListAuditLogs exposes the tenant's audit trail for compliance review.
// Filters: session_ref, action, result, start/end (RFC3339), cursor paging.
func (s *Server) ListAuditLogs(c *gin.Context) {
	id := c.Param("id")
	t, err := s.tenantSvc.Resolve(c.Request.Context(), tenantdomain.Ref{TenantID: id, LegacySlug: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := auditdomain.ListRequest{
		TenantID:   t.ID,
		SessionRef: c.Query("session_ref"),
		Action:     c.Query("action"),
		Result:     c.Query("result"),
		PageToken:  c.Query("page_token"),
	}
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.PageSize = n
		}
	}
	if raw := c.Query("start_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.StartAt = &at
	}
	if raw := c.Query("end_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.EndAt = &at
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, auditLogsResponse{
		Entries:       resp.Entries,
		NextPageToken: resp.NextPageToken,
		HasMore:       resp.HasMore,
	})
}

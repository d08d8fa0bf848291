package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	eventdomain "github.com/cubridge/voiceline/internal/event/domain"
)

// HandleVoiceEvent is the provider event webhook. Everything that decodes
// acknowledges, recognized type or not; only an unreadable or unparseable
// body surfaces as an error, which the provider treats as a redelivery
// signal.
func (s *Server) HandleVoiceEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, eventdomain.ErrEventParse)
		return
	}

	event, err := eventdomain.Decode(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if event.CorrelationID != "" {
		c.Set("correlation_id", event.CorrelationID)
	}

	ack := s.eventSvc.Route(c.Request.Context(), event)
	c.JSON(http.StatusOK, ack)
}

// VerifyVoiceWebhook lets the provider (and operators) confirm the endpoint
// is alive and which build answers.
func (s *Server) VerifyVoiceWebhook(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.cfg.AppName,
		"version": s.cfg.AppVersion,
		"status":  "ready",
	})
}

// HandleStatusCallback receives carrier lifecycle notifications, delivered
// form-encoded with the correlation id on the query string.
func (s *Server) HandleStatusCallback(c *gin.Context) {
	cb := eventdomain.StatusCallback{
		CorrelationID: c.Query("correlation_id"),
		TenantID:      c.Query("tenant_id"),
		CallSID:       c.PostForm("CallSid"),
		CallStatus:    c.PostForm("CallStatus"),
		CallDuration:  c.PostForm("CallDuration"),
	}
	if cb.CorrelationID == "" || cb.CallStatus == "" {
		c.JSON(http.StatusOK, eventdomain.Ack{Acknowledged: true, Outcome: "ignored"})
		return
	}
	c.Set("correlation_id", cb.CorrelationID)

	ack := s.eventSvc.HandleStatusCallback(c.Request.Context(), cb)
	c.JSON(http.StatusOK, ack)
}

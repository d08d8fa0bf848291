package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cubridge/voiceline/internal/config"
)

const defaultBaseURL = "https://api.twilio.com"

// RestDialer dispatches calls through the carrier REST API.
type RestDialer struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewFromConfig builds the dialer from environment configuration. Missing
// credentials are tolerated here; callers gate on Configured before dispatch.
func NewFromConfig(cfg config.Config) Dialer {
	base := cfg.Telephony.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &RestDialer{
		accountSID: cfg.Telephony.AccountSID,
		authToken:  cfg.Telephony.AuthToken,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *RestDialer) Configured() bool {
	return d.accountSID != "" && d.authToken != ""
}

type callResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// PlaceCall issues a form-encoded create-call request. The carrier fetches
// call instructions from req.VoiceURL once the callee answers.
func (d *RestDialer) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", req.VoiceURL)
	form.Set("Method", "POST")
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", "POST")
		for _, ev := range req.StatusCallbackEvents {
			form.Add("StatusCallbackEvent", ev)
		}
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", d.baseURL, d.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: build request: %w", err)
	}
	httpReq.SetBasicAuth(d.accountSID, d.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: dispatch call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return PlaceCallResult{}, fmt.Errorf("telephony: carrier rejected call (status %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return PlaceCallResult{}, fmt.Errorf("telephony: carrier rejected call (status %d)", resp.StatusCode)
	}

	var out callResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: decode response: %w", err)
	}
	return PlaceCallResult{CallID: out.SID, Status: out.Status}, nil
}

package isuite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"snowalert/internal/config"
	"snowalert/internal/metrics"
	"snowalert/internal/types"
)

// maxDeliveryAttempts bounds the delivery loop: the initial attempt plus at
// most one retry after a token refresh.
const maxDeliveryAttempts = 2

// DeliveryClient posts alert batches to the Integration Suite iFlow endpoint.
// Send never returns a Go error: every outcome, including network failure and
// missing configuration, is reported as a *DeliveryResult so callers always
// have something to log and persist.
type DeliveryClient struct {
	cfg    config.ISuiteConfig
	tokens *TokenProvider
	base   *BaseClient
	clock  types.Clock
	logger *slog.Logger
}

// NewDeliveryClient creates a DeliveryClient sharing the given TokenProvider.
func NewDeliveryClient(cfg config.ISuiteConfig, tokens *TokenProvider, httpClient *http.Client, clock types.Clock, logger *slog.Logger) *DeliveryClient {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryClient{
		cfg:    cfg,
		tokens: tokens,
		base:   NewBaseClient(httpClient, "isuite-delivery", cfg.UserAgent),
		clock:  clock,
		logger: logger,
	}
}

// Send delivers the batch to the iFlow endpoint.
//
// An empty batch short-circuits to a successful result without any network
// I/O, including token acquisition. Otherwise at most two attempts are made:
// a second attempt happens only when the first is rejected with 401, after
// invalidating the cached token and forcing a refresh. A 401 on the retry is
// terminal. All other statuses are terminal on the first attempt.
func (c *DeliveryClient) Send(ctx context.Context, batch *types.AlertBatch) *types.DeliveryResult {
	if batch == nil || batch.Empty() {
		c.logger.Info("no alerts to deliver; skipping")
		metrics.Deliveries.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return &types.DeliveryResult{
			Success:    true,
			StatusCode: http.StatusOK,
			Message:    "no alerts generated; nothing sent",
			Timestamp:  c.clock.Now(),
		}
	}

	if err := c.cfg.Validate(); err != nil {
		return c.failure(0, err.Error(), metrics.OutcomeClientError)
	}

	body, err := json.Marshal(MapBatch(batch))
	if err != nil {
		return c.failure(0, "failed to encode payload: "+err.Error(), metrics.OutcomeClientError)
	}

	start := c.clock.Now()
	defer func() {
		metrics.DeliveryDuration.Observe(c.clock.Now().Sub(start).Seconds())
	}()

	forceRefresh := false
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		token, err := c.tokens.GetToken(ctx, forceRefresh)
		if err != nil {
			return c.failure(0, "token acquisition failed: "+err.Error(), metrics.OutcomeAuthFailed)
		}

		c.logger.Info("delivering alert batch",
			"batch_id", batch.ID,
			"alerts", len(batch.Alerts),
			"attempt", attempt,
		)

		resp, err := c.post(ctx, token, body)
		if err != nil {
			return c.failure(0, "delivery request failed: "+err.Error(), metrics.OutcomeNetwork)
		}

		result, retry := c.classify(resp, attempt)
		resp.Body.Close()
		if !retry {
			return result
		}

		// First 401: the token may have been revoked upstream. Drop it and
		// retry once with a freshly minted one.
		c.logger.Warn("delivery rejected with 401; refreshing token and retrying",
			"batch_id", batch.ID,
		)
		c.tokens.Invalidate()
		forceRefresh = true
	}

	// Unreachable: classify never requests a retry on the final attempt.
	return c.failure(0, "delivery attempts exhausted", metrics.OutcomeNetwork)
}

// post issues one POST of the encoded payload with the given bearer token.
func (c *DeliveryClient) post(ctx context.Context, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.IFlowURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Source-System", sourceSystem)
	req.Header.Set("X-Message-Type", messageType)

	return c.base.Do(req)
}

// classify maps an HTTP response onto a DeliveryResult. The second return
// value requests a retry; it is true only for a 401 on a non-final attempt.
func (c *DeliveryClient) classify(resp *http.Response, attempt int) (*types.DeliveryResult, bool) {
	raw := readBody(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.Info("alert batch delivered", "status", resp.StatusCode)
		metrics.Deliveries.WithLabelValues(metrics.OutcomeSuccess).Inc()
		return &types.DeliveryResult{
			Success:    true,
			StatusCode: resp.StatusCode,
			Body:       decodeResultBody(raw),
			Message:    "alert batch accepted by integration endpoint",
			Timestamp:  c.clock.Now(),
		}, false

	case resp.StatusCode == http.StatusUnauthorized:
		if attempt < maxDeliveryAttempts {
			return nil, true
		}
		return c.failureWithBody(resp.StatusCode, raw,
			"authentication rejected after token refresh", metrics.OutcomeAuthFailed), false

	case resp.StatusCode == http.StatusForbidden:
		return c.failureWithBody(resp.StatusCode, raw,
			"authorization denied by integration endpoint", metrics.OutcomeAuthFailed), false

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return c.failureWithBody(resp.StatusCode, raw,
			fmt.Sprintf("integration endpoint rejected request with HTTP %d", resp.StatusCode),
			metrics.OutcomeClientError), false

	default:
		return c.failureWithBody(resp.StatusCode, raw,
			fmt.Sprintf("integration endpoint error HTTP %d", resp.StatusCode),
			metrics.OutcomeServerError), false
	}
}

// failure builds a terminal failed result and records the outcome metric.
func (c *DeliveryClient) failure(status int, message, outcome string) *types.DeliveryResult {
	c.logger.Error("delivery failed", "status", status, "message", message)
	metrics.Deliveries.WithLabelValues(outcome).Inc()
	return &types.DeliveryResult{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Timestamp:  c.clock.Now(),
	}
}

// failureWithBody is failure plus the (truncated) response body for
// diagnosis.
func (c *DeliveryClient) failureWithBody(status int, raw []byte, message, outcome string) *types.DeliveryResult {
	result := c.failure(status, message, outcome)
	result.Body = decodeResultBody(raw)
	return result
}

// decodeResultBody returns the response body as decoded JSON when possible,
// otherwise as a truncated string. Empty bodies yield nil.
func decodeResultBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return truncate(string(raw), 500)
}

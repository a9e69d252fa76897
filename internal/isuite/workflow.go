package isuite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"snowalert/internal/config"
	"snowalert/internal/types"
)

// workflowStartRequest is the SAP BTP workflow instance creation body.
type workflowStartRequest struct {
	DefinitionID string          `json:"definitionId"`
	Context      workflowContext `json:"context"`
}

// workflowContext carries the analysis text the workflow renders to the
// approver.
type workflowContext struct {
	AgentAnalysis string `json:"agent_analysis"`
}

// workflowStartResponse is the subset of the instance creation response the
// engine reports back.
type workflowStartResponse struct {
	ID string `json:"id"`
}

// WorkflowClient starts SAP BTP workflow instances for operator review of a
// generated alert batch. Like delivery, Trigger reports every outcome as a
// *WorkflowResult rather than a Go error.
type WorkflowClient struct {
	cfg    config.WorkflowConfig
	tokens *TokenProvider
	base   *BaseClient
	clock  types.Clock
	logger *slog.Logger
}

// NewWorkflowClient creates a WorkflowClient reusing the delivery token
// provider; the workflow API accepts the same client-credentials token.
func NewWorkflowClient(cfg config.WorkflowConfig, isuiteCfg config.ISuiteConfig, tokens *TokenProvider, httpClient *http.Client, clock types.Clock, logger *slog.Logger) *WorkflowClient {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowClient{
		cfg:    cfg,
		tokens: tokens,
		base:   NewBaseClient(httpClient, "isuite-workflow", isuiteCfg.UserAgent),
		clock:  clock,
		logger: logger,
	}
}

// Trigger starts one workflow instance carrying the analysis text. At most
// two attempts, with the same single 401-refresh retry as delivery.
func (w *WorkflowClient) Trigger(ctx context.Context, analysis string) *types.WorkflowResult {
	if w.cfg.URL == "" || w.cfg.DefinitionID == "" {
		return w.failure(0, "workflow trigger not configured: ISUITE_WORKFLOW_URL and ISUITE_WORKFLOW_DEFINITION_ID are required")
	}

	body, err := json.Marshal(workflowStartRequest{
		DefinitionID: w.cfg.DefinitionID,
		Context:      workflowContext{AgentAnalysis: analysis},
	})
	if err != nil {
		return w.failure(0, "failed to encode workflow request: "+err.Error())
	}

	forceRefresh := false
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		token, err := w.tokens.GetToken(ctx, forceRefresh)
		if err != nil {
			return w.failure(0, "token acquisition failed: "+err.Error())
		}

		w.logger.Info("starting workflow instance",
			"definition_id", w.cfg.DefinitionID,
			"attempt", attempt,
		)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return w.failure(0, "failed to build workflow request: "+err.Error())
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := w.base.Do(req)
		if err != nil {
			return w.failure(0, "workflow request failed: "+err.Error())
		}

		raw := readBody(resp)
		status := resp.StatusCode
		resp.Body.Close()

		switch {
		case status >= 200 && status < 300:
			var started workflowStartResponse
			_ = json.Unmarshal(raw, &started)
			w.logger.Info("workflow instance started", "instance_id", started.ID, "status", status)
			return &types.WorkflowResult{
				Success:    true,
				StatusCode: status,
				InstanceID: started.ID,
				Message:    "workflow instance created",
				Timestamp:  w.clock.Now(),
			}

		case status == http.StatusUnauthorized && attempt < maxDeliveryAttempts:
			w.logger.Warn("workflow rejected with 401; refreshing token and retrying")
			w.tokens.Invalidate()
			forceRefresh = true

		default:
			return w.failure(status, fmt.Sprintf("workflow endpoint returned HTTP %d: %s", status, truncate(string(raw), 200)))
		}
	}

	return w.failure(http.StatusUnauthorized, "authentication rejected after token refresh")
}

func (w *WorkflowClient) failure(status int, message string) *types.WorkflowResult {
	w.logger.Error("workflow trigger failed", "status", status, "message", message)
	return &types.WorkflowResult{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Timestamp:  w.clock.Now(),
	}
}

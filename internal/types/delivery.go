package types

import "time"

// DeliveryResult is the structured outcome of one delivery attempt sequence.
// Delivery never raises: every failure class is captured here so callers can
// always render a result.
type DeliveryResult struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code,omitempty"`
	Body       any       `json:"response_body,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// WorkflowResult is the structured outcome of a workflow instance trigger.
type WorkflowResult struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code,omitempty"`
	InstanceID string    `json:"instance_id,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

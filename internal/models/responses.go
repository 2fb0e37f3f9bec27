// Package models defines the API response shapes for claim inspection endpoints.
package models

// ClaimDetail combines a claim with its decision and exception history.
type ClaimDetail struct {
	Claim
	DecisionLog   *DecisionLog   `json:"decision_log,omitempty"`
	ExceptionLogs []ExceptionLog `json:"exception_logs,omitempty"`
}

// AgentTimelineEntry summarizes one agent's run for the processing timeline.
type AgentTimelineEntry struct {
	Agent      string      `json:"agent"`
	Status     AgentStatus `json:"status"`
	Duration   float64     `json:"duration"`
	Result     string      `json:"result"`
	Confidence float64     `json:"confidence"`
}

// AgentTimelineResponse is returned by the agent timeline endpoint.
type AgentTimelineResponse struct {
	ClaimID string               `json:"claim_id"`
	Agents  []AgentTimelineEntry `json:"agents"`
}

// AgentReasoningResponse maps each agent to its ordered reasoning steps.
type AgentReasoningResponse struct {
	ClaimID        string                     `json:"claim_id"`
	AgentReasoning map[string][]ReasoningStep `json:"agent_reasoning"`
}

// ToolUsageEntry records one tool call in the flattened tool usage view.
type ToolUsageEntry struct {
	Agent   string   `json:"agent"`
	Tool    ToolName `json:"tool"`
	Result  string   `json:"result"`
	Success bool     `json:"success"`
}

// ToolUsageResponse is returned by the tool usage endpoint.
type ToolUsageResponse struct {
	ClaimID   string           `json:"claim_id"`
	ToolUsage []ToolUsageEntry `json:"tool_usage"`
}

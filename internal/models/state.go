// Package models defines the shared workflow state structures for ClaimPipe.
package models

import "time"

// AgentStatus defines the processing status of a workflow agent.
type AgentStatus string

const (
	// AgentStatusPending marks an agent that has not started yet.
	AgentStatusPending AgentStatus = "PENDING"
	// AgentStatusInProgress marks an agent that is currently running.
	AgentStatusInProgress AgentStatus = "IN_PROGRESS"
	// AgentStatusCompleted marks an agent that finished with a usable outcome.
	AgentStatusCompleted AgentStatus = "COMPLETED"
	// AgentStatusFailed marks an agent that could not produce an outcome.
	AgentStatusFailed AgentStatus = "FAILED"
)

// StepType classifies a single reasoning step within an agent report.
type StepType string

const (
	// StepReason records the agent's analysis of what to do next.
	StepReason StepType = "REASON"
	// StepAct records a tool invocation.
	StepAct StepType = "ACT"
	// StepObserve records the observed result of a tool invocation.
	StepObserve StepType = "OBSERVE"
	// StepComplete records the agent's concluding step.
	StepComplete StepType = "COMPLETE"
)

// ReasoningStep is one entry in an agent's ordered reasoning trace.
type ReasoningStep struct {
	Step      int       `json:"step"` // 1-based, unique within an agent
	Type      StepType  `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolUsage records one tool invocation made by an agent.
type ToolUsage struct {
	ToolName   ToolName               `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Result     string                 `json:"result"`
	Success    bool                   `json:"success"`
	Timestamp  time.Time              `json:"timestamp"`
}

// AgentReport is the audit record an agent produces describing what it did and concluded.
type AgentReport struct {
	AgentName       string          `json:"agent_name"`
	Status          AgentStatus     `json:"status"`
	DurationSeconds float64         `json:"duration_seconds"`
	ToolsUsed       []ToolUsage     `json:"tools_used,omitempty"`
	ReasoningSteps  []ReasoningStep `json:"reasoning_steps,omitempty"`
	Result          string          `json:"result"`
	ConfidenceScore float64         `json:"confidence_score"`
	Timestamp       time.Time       `json:"timestamp"`
}

// AddStep appends a reasoning step with the next sequence number.
func (ar *AgentReport) AddStep(stepType StepType, text string) {
	ar.ReasoningSteps = append(ar.ReasoningSteps, ReasoningStep{
		Step:      len(ar.ReasoningSteps) + 1,
		Type:      stepType,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// StageResult is the structured record a specialist agent writes into the claim state.
type StageResult struct {
	Status  string   `json:"status"`
	Details string   `json:"details,omitempty"`
	Issues  []string `json:"issues,omitempty"`
}

// FraudResult is the structured record the fraud agent writes into the claim state.
type FraudResult struct {
	RiskLevel   string `json:"risk_level"` // "HIGH" or "LOW"
	Details     string `json:"details"`
	QueryResult string `json:"query_result"`
	Flagged     bool   `json:"flagged"`
}

// ClaimState is the shared state that flows through all agents.
//
// A ClaimState instance is owned exclusively by one workflow run and must not
// be shared across concurrent runs. Completion flags move false to true
// exactly once, each set only by its owning agent.
type ClaimState struct {
	ClaimID   string                 `json:"claim_id"`
	ClaimData map[string]interface{} `json:"claim_data"` // read-only snapshot of the submitted claim

	// Agent processing status
	IntakeCompleted       bool `json:"intake_completed"`
	EligibilityVerified   bool `json:"eligibility_verified"`
	CodesValidated        bool `json:"codes_validated"`
	FraudChecked          bool `json:"fraud_checked"`
	AdjudicationCompleted bool `json:"adjudication_completed"`

	// Results from each agent
	EligibilityResult *StageResult `json:"eligibility_result,omitempty"`
	ClinicalResult    *StageResult `json:"clinical_result,omitempty"`
	FraudResult       *FraudResult `json:"fraud_result,omitempty"`

	// Agent reports, appended in canonical execution order
	AgentReports []AgentReport `json:"agent_reports"`

	// Final decision, written only by the adjudication agent
	FinalDecision   DecisionType `json:"final_decision,omitempty"`
	Reasoning       string       `json:"reasoning"`
	ConfidenceScore float64      `json:"confidence_score"` // 0-100
}

// ClampConfidence clamps a confidence score to the valid [0, 100] range.
func ClampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

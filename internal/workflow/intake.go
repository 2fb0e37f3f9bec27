package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// Agent display names used in reports and timelines.
const (
	IntakeAgentName       = "Intake Agent"
	EligibilityAgentName  = "Eligibility Agent"
	ClinicalAgentName     = "Clinical Review Agent"
	FraudAgentName        = "Fraud Detection Agent"
	AdjudicationAgentName = "Adjudication Agent"
	FallbackAgentName     = "Fallback Processor"
)

// Stage confidence scores.
const (
	intakeSuccessConfidence   = 95.0
	intakeFailureConfidence   = 10.0
	eligiblePassConfidence    = 90.0
	eligibleIssueConfidence   = 30.0
	clinicalPassConfidence    = 95.0
	clinicalIssueConfidence   = 20.0
	fraudFlaggedConfidence    = 95.0
	fraudClearConfidence      = 85.0
	fraudDenyConfidence       = 95.0
	validationDenyConfidence  = 90.0
	approveConfidence         = 88.0
	fallbackConfidence        = 75.0
	internalFailureConfidence = 0.0
)

// runIntake validates the claim submission and extracts entities. It is the
// only agent allowed to set IntakeCompleted.
func (e *Engine) runIntake(ctx context.Context, state *models.ClaimState) models.AgentReport {
	start := time.Now()
	report := models.AgentReport{
		AgentName: IntakeAgentName,
		Status:    models.AgentStatusInProgress,
		Timestamp: start,
	}

	report.AddStep(models.StepReason, "I need to validate the claim data structure and extract key entities")

	report.AddStep(models.StepAct, "Calling validate_required_fields() to check data completeness")
	validationResult, usage := e.registry.Invoke(ctx, models.ToolValidateRequiredFields,
		map[string]interface{}{"claim_data": state.ClaimData})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("Validation result: %s", validationResult))

	report.AddStep(models.StepAct, "Calling extract_entities() to count and categorize claim data")
	entityResult, usage := e.registry.Invoke(ctx, models.ToolExtractEntities,
		map[string]interface{}{"claim_data": state.ClaimData})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("Entity extraction: %s", entityResult))

	if strings.HasPrefix(validationResult, "VALID") {
		state.IntakeCompleted = true
		report.Status = models.AgentStatusCompleted
		report.Result = "Claim data validated and entities extracted successfully"
		report.ConfidenceScore = intakeSuccessConfidence
		report.AddStep(models.StepComplete, "Intake validation passed. Handing off to specialized agents.")
	} else {
		report.Status = models.AgentStatusFailed
		report.Result = fmt.Sprintf("Validation failed: %s", validationResult)
		report.ConfidenceScore = intakeFailureConfidence
	}

	report.DurationSeconds = time.Since(start).Seconds()
	return report
}

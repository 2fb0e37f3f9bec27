package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// Eligibility stage result statuses.
const (
	EligibilityStatusEligible   = "eligible"
	EligibilityStatusIneligible = "ineligible"
)

// runEligibility verifies insurance coverage and provider credentials. An
// ineligible patient still completes the stage; only the verified flag stays
// false so adjudication can deny with a reason.
func (e *Engine) runEligibility(ctx context.Context, state *models.ClaimState) models.AgentReport {
	start := time.Now()
	report := models.AgentReport{
		AgentName: EligibilityAgentName,
		Status:    models.AgentStatusInProgress,
		Timestamp: start,
	}

	if !state.IntakeCompleted {
		report.Status = models.AgentStatusFailed
		report.Result = "Cannot proceed - intake validation failed"
		report.DurationSeconds = time.Since(start).Seconds()
		return report
	}

	report.AddStep(models.StepReason, "I need to verify insurance eligibility and provider credentials")

	report.AddStep(models.StepAct, "Calling call_eligibility_api() to verify coverage")
	eligibilityResult, usage := e.registry.Invoke(ctx, models.ToolCallEligibilityAPI, map[string]interface{}{
		"policy_number":      state.ClaimData["policy_number"],
		"insurance_provider": state.ClaimData["insurance_provider"],
	})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("Eligibility check: %s", eligibilityResult))

	if npi, _ := state.ClaimData["provider_npi"].(string); npi != "" {
		report.AddStep(models.StepAct, "Calling verify_provider_credentials() to check provider")
		providerResult, usage := e.registry.Invoke(ctx, models.ToolVerifyProviderCredentials, map[string]interface{}{
			"provider_name": state.ClaimData["provider_name"],
			"provider_npi":  npi,
		})
		report.ToolsUsed = append(report.ToolsUsed, usage)
		report.AddStep(models.StepObserve, fmt.Sprintf("Provider verification: %s", providerResult))
	}

	if strings.HasPrefix(eligibilityResult, "ELIGIBLE") {
		state.EligibilityVerified = true
		state.EligibilityResult = &models.StageResult{
			Status:  EligibilityStatusEligible,
			Details: eligibilityResult,
		}
		report.Status = models.AgentStatusCompleted
		report.Result = "Patient eligible, provider verified"
		report.ConfidenceScore = eligiblePassConfidence
		report.AddStep(models.StepComplete, "Eligibility verification completed successfully")
	} else {
		state.EligibilityResult = &models.StageResult{
			Status:  EligibilityStatusIneligible,
			Details: eligibilityResult,
		}
		report.Status = models.AgentStatusCompleted
		report.Result = fmt.Sprintf("Eligibility issue: %s", eligibilityResult)
		report.ConfidenceScore = eligibleIssueConfidence
	}

	report.DurationSeconds = time.Since(start).Seconds()
	return report
}

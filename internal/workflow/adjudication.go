package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/genai"
	"github.com/MedLedger/ClaimPipe/internal/models"
)

// adjudicationSystemPrompt frames the optional LLM narrative for a decision.
const adjudicationSystemPrompt = "You are an expert healthcare claims adjudicator. " +
	"Given a claim decision and the findings that produced it, write a brief plain-language " +
	"narrative (2-3 sentences) explaining the outcome to a claims examiner."

// runAdjudication synthesizes the specialist findings into the final decision.
// Fraud flags dominate, then eligibility and code failures, then approval.
// An internal failure escalates the claim to human review.
func (e *Engine) runAdjudication(ctx context.Context, state *models.ClaimState) (report models.AgentReport) {
	start := time.Now()
	report = models.AgentReport{
		AgentName: AdjudicationAgentName,
		Status:    models.AgentStatusInProgress,
		Timestamp: start,
	}

	defer func() {
		if rec := recover(); rec != nil {
			report.Status = models.AgentStatusFailed
			report.Result = fmt.Sprintf("Adjudication error: %v", rec)
			report.ConfidenceScore = internalFailureConfidence
			state.FinalDecision = models.DecisionReview
			state.Reasoning = fmt.Sprintf("Error in adjudication: %v", rec)
			state.ConfidenceScore = internalFailureConfidence
		}
		report.DurationSeconds = time.Since(start).Seconds()
	}()

	report.AddStep(models.StepReason, "I need to analyze all agent reports and make final decision")

	specialists := 0
	for _, r := range state.AgentReports {
		switch r.AgentName {
		case EligibilityAgentName, ClinicalAgentName, FraudAgentName:
			specialists++
		}
	}
	report.AddStep(models.StepObserve, fmt.Sprintf("Received reports from %d agents", specialists))

	eligibilityPassed := state.EligibilityVerified
	codesValid := state.CodesValidated
	fraudFlagged := state.FraudResult != nil && state.FraudResult.Flagged

	report.AddStep(models.StepReason, fmt.Sprintf("Analysis: Eligibility=%t, Codes=%t, Fraud=%t",
		eligibilityPassed, codesValid, fraudFlagged))

	var decision models.DecisionType
	var reason string
	var confidence float64

	switch {
	case fraudFlagged:
		decision = models.DecisionDeny
		reason = "Claim denied due to fraud indicators"
		confidence = fraudDenyConfidence

		report.AddStep(models.StepAct, "Calling deny_claim() due to fraud risk")
		_, usage := e.registry.Invoke(ctx, models.ToolDenyClaim, map[string]interface{}{
			"claim_id": state.ClaimID,
			"reason":   reason,
		})
		report.ToolsUsed = append(report.ToolsUsed, usage)

	case !eligibilityPassed || !codesValid:
		decision = models.DecisionDeny
		var issues []string
		if !eligibilityPassed {
			issues = append(issues, "eligibility")
		}
		if !codesValid {
			issues = append(issues, "invalid codes")
		}
		reason = fmt.Sprintf("Claim denied due to: %s", strings.Join(issues, ", "))
		confidence = validationDenyConfidence

		report.AddStep(models.StepAct, "Calling deny_claim() due to validation failures")
		_, usage := e.registry.Invoke(ctx, models.ToolDenyClaim, map[string]interface{}{
			"claim_id": state.ClaimID,
			"reason":   reason,
		})
		report.ToolsUsed = append(report.ToolsUsed, usage)

	default:
		decision = models.DecisionApprove
		reason = "All validation checks passed"
		confidence = approveConfidence

		report.AddStep(models.StepAct, "Calling approve_claim() - all checks passed")
		amount, _ := state.ClaimData["claim_amount"].(float64)
		_, usage := e.registry.Invoke(ctx, models.ToolApproveClaim, map[string]interface{}{
			"claim_id": state.ClaimID,
			"amount":   amount,
			"reason":   reason,
		})
		report.ToolsUsed = append(report.ToolsUsed, usage)
	}

	state.FinalDecision = decision
	state.Reasoning = reason
	state.ConfidenceScore = confidence
	state.AdjudicationCompleted = true

	report.Status = models.AgentStatusCompleted
	report.Result = fmt.Sprintf("Final Decision: %s", decision)
	report.ConfidenceScore = confidence
	report.AddStep(models.StepComplete, fmt.Sprintf("Adjudication completed: %s - %s", decision, reason))

	// Supplemental narrative from the LLM. Decision logic above is
	// deterministic; a generation failure is tolerated.
	if e.llm != nil {
		if narrative, err := e.generateNarrative(ctx, state, decision, reason); err == nil && narrative != "" {
			report.AddStep(models.StepObserve, fmt.Sprintf("Adjudicator narrative: %s", narrative))
		}
	}

	return report
}

// generateNarrative asks the LLM for a short plain-language explanation of the decision.
func (e *Engine) generateNarrative(ctx context.Context, state *models.ClaimState, decision models.DecisionType, reason string) (string, error) {
	var findings []string
	if state.EligibilityResult != nil {
		findings = append(findings, fmt.Sprintf("Eligibility: %s", state.EligibilityResult.Details))
	}
	if state.ClinicalResult != nil {
		findings = append(findings, fmt.Sprintf("Clinical: %s", state.ClinicalResult.Status))
	}
	if state.FraudResult != nil {
		findings = append(findings, fmt.Sprintf("Fraud: %s", state.FraudResult.Details))
	}

	prompt := fmt.Sprintf("Decision: %s\nReason: %s\nFindings:\n%s",
		decision, reason, strings.Join(findings, "\n"))
	return e.llm.GenerateWithMessages(ctx, []genai.Message{
		genai.SystemMessage(adjudicationSystemPrompt),
		genai.UserMessage(prompt),
	})
}

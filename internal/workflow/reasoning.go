package workflow

import (
	"fmt"
	"strings"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// FormatAgentReasoning renders the full workflow state into the reasoning text
// stored with the decision log: the final decision, a per-agent summary, and
// the key findings from each specialist.
func FormatAgentReasoning(state *models.ClaimState) string {
	var parts []string

	if state.Reasoning != "" {
		parts = append(parts, fmt.Sprintf("Final Decision: %s", state.Reasoning))
	}

	if len(state.AgentReports) > 0 {
		parts = append(parts, "", "Agent Analysis:")
		for _, report := range state.AgentReports {
			marker := "[ok]"
			if report.Status != models.AgentStatusCompleted {
				marker = "[failed]"
			}
			parts = append(parts, fmt.Sprintf("- %s %s (%.1fs): %s",
				marker, report.AgentName, report.DurationSeconds, report.Result))
		}
	}

	var findings []string
	if state.EligibilityResult != nil {
		if state.EligibilityResult.Status == EligibilityStatusEligible {
			findings = append(findings, "Patient coverage verified")
		} else {
			findings = append(findings, fmt.Sprintf("Eligibility issue: %s", state.EligibilityResult.Details))
		}
	}
	if state.ClinicalResult != nil {
		if state.ClinicalResult.Status == ClinicalStatusValid {
			findings = append(findings, "Medical codes validated and compatible")
		} else {
			findings = append(findings, "Medical code validation issues detected")
		}
	}
	if state.FraudResult != nil {
		if state.FraudResult.Flagged {
			findings = append(findings, fmt.Sprintf("Fraud risk detected: %s", state.FraudResult.Details))
		} else {
			findings = append(findings, "Fraud screening passed")
		}
	}
	if len(findings) > 0 {
		parts = append(parts, "", "Key Findings:")
		for _, finding := range findings {
			parts = append(parts, fmt.Sprintf("- %s", finding))
		}
	}

	return strings.Join(parts, "\n")
}

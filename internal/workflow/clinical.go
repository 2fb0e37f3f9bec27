package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// Clinical stage result statuses.
const (
	ClinicalStatusValid   = "valid"
	ClinicalStatusInvalid = "invalid"
)

// runClinical validates the medical codes and their compatibility. All three
// checks must pass for CodesValidated to be set.
func (e *Engine) runClinical(ctx context.Context, state *models.ClaimState) models.AgentReport {
	start := time.Now()
	report := models.AgentReport{
		AgentName: ClinicalAgentName,
		Status:    models.AgentStatusInProgress,
		Timestamp: start,
	}

	if !state.IntakeCompleted {
		report.Status = models.AgentStatusFailed
		report.Result = "Cannot proceed - intake validation failed"
		report.DurationSeconds = time.Since(start).Seconds()
		return report
	}

	report.AddStep(models.StepReason, "I need to validate medical codes and check their compatibility")

	report.AddStep(models.StepAct, "Calling lookup_icd10_code() to validate diagnosis")
	icdResult, usage := e.registry.Invoke(ctx, models.ToolLookupICD10Code, map[string]interface{}{
		"diagnosis_code": state.ClaimData["diagnosis_code"],
	})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("ICD-10 validation: %s", icdResult))

	report.AddStep(models.StepAct, "Calling lookup_cpt_code() to validate procedure")
	cptResult, usage := e.registry.Invoke(ctx, models.ToolLookupCPTCode, map[string]interface{}{
		"procedure_code": state.ClaimData["procedure_code"],
	})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("CPT validation: %s", cptResult))

	report.AddStep(models.StepAct, "Calling check_code_compatibility() to verify codes match")
	compatResult, usage := e.registry.Invoke(ctx, models.ToolCheckCodeCompatibility, map[string]interface{}{
		"diagnosis_code": state.ClaimData["diagnosis_code"],
		"procedure_code": state.ClaimData["procedure_code"],
	})
	report.ToolsUsed = append(report.ToolsUsed, usage)
	report.AddStep(models.StepObserve, fmt.Sprintf("Compatibility check: %s", compatResult))

	codesValid := strings.HasPrefix(icdResult, "VALID") &&
		strings.HasPrefix(cptResult, "VALID") &&
		strings.HasPrefix(compatResult, "COMPATIBLE")

	if codesValid {
		state.CodesValidated = true
		state.ClinicalResult = &models.StageResult{
			Status:  ClinicalStatusValid,
			Details: compatResult,
		}
		report.Status = models.AgentStatusCompleted
		report.Result = "Medical codes validated and compatible"
		report.ConfidenceScore = clinicalPassConfidence
		report.AddStep(models.StepComplete, "Clinical review completed - codes are valid and compatible")
	} else {
		state.ClinicalResult = &models.StageResult{
			Status: ClinicalStatusInvalid,
			Issues: []string{icdResult, cptResult, compatResult},
		}
		report.Status = models.AgentStatusCompleted
		report.Result = "Code validation issues detected"
		report.ConfidenceScore = clinicalIssueConfidence
		report.AddStep(models.StepComplete, "Clinical review found code compatibility issues")
	}

	report.DurationSeconds = time.Since(start).Seconds()
	return report
}

// Package models defines the tool vocabulary available to workflow agents.
package models

import "fmt"

// ToolName identifies a registered agent tool.
//
// The tool set is closed: agents dispatch by these constants only, so an
// unknown name is always a registry error rather than a silent no-op.
type ToolName string

const (
	// ToolValidateRequiredFields checks claim data completeness and amount positivity.
	ToolValidateRequiredFields ToolName = "validate_required_fields"
	// ToolExtractEntities counts populated claim fields grouped by category.
	ToolExtractEntities ToolName = "extract_entities"
	// ToolCallEligibilityAPI simulates an insurance eligibility API call.
	ToolCallEligibilityAPI ToolName = "call_eligibility_api"
	// ToolVerifyProviderCredentials verifies provider NPI and network status.
	ToolVerifyProviderCredentials ToolName = "verify_provider_credentials"
	// ToolLookupICD10Code validates an ICD-10 diagnosis code.
	ToolLookupICD10Code ToolName = "lookup_icd10_code"
	// ToolLookupCPTCode validates a CPT procedure code.
	ToolLookupCPTCode ToolName = "lookup_cpt_code"
	// ToolCheckCodeCompatibility checks diagnosis/procedure compatibility.
	ToolCheckCodeCompatibility ToolName = "check_code_compatibility"
	// ToolCheckPriorAuthorization checks whether a procedure needs prior authorization.
	ToolCheckPriorAuthorization ToolName = "check_prior_authorization"
	// ToolQueryClaimsDatabase searches claim history for duplicates and patterns.
	ToolQueryClaimsDatabase ToolName = "query_claims_database"
	// ToolCalculateFraudScore computes the fraud risk score for a claim.
	ToolCalculateFraudScore ToolName = "calculate_fraud_score"
	// ToolFlagForInvestigation marks a claim for fraud investigation.
	ToolFlagForInvestigation ToolName = "flag_for_investigation"
	// ToolApproveClaim records claim approval for the audit trail.
	ToolApproveClaim ToolName = "approve_claim"
	// ToolDenyClaim records claim denial for the audit trail.
	ToolDenyClaim ToolName = "deny_claim"
	// ToolRequestHumanReview escalates a claim to human review.
	ToolRequestHumanReview ToolName = "request_human_review"
)

// IntakeTools lists the tools available to the intake agent.
var IntakeTools = []ToolName{ToolValidateRequiredFields, ToolExtractEntities}

// EligibilityTools lists the tools available to the eligibility agent.
var EligibilityTools = []ToolName{ToolCallEligibilityAPI, ToolVerifyProviderCredentials}

// ClinicalTools lists the tools available to the clinical review agent.
var ClinicalTools = []ToolName{ToolLookupICD10Code, ToolLookupCPTCode, ToolCheckCodeCompatibility, ToolCheckPriorAuthorization}

// FraudTools lists the tools available to the fraud detection agent.
var FraudTools = []ToolName{ToolQueryClaimsDatabase, ToolCalculateFraudScore, ToolFlagForInvestigation}

// AdjudicationTools lists the tools available to the adjudication agent.
var AdjudicationTools = []ToolName{ToolApproveClaim, ToolDenyClaim, ToolRequestHumanReview}

// StringParam extracts a required string parameter from a tool parameter map.
func StringParam(params map[string]interface{}, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string", key)
	}
	return s, nil
}

// OptionalStringParam extracts an optional string parameter, returning "" when absent.
func OptionalStringParam(params map[string]interface{}, key string) string {
	if raw, ok := params[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

// FloatParam extracts a required numeric parameter from a tool parameter map.
func FloatParam(params map[string]interface{}, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing required parameter: %s", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %s must be numeric", key)
	}
}

// ClaimDataParam extracts the claim data mapping from a tool parameter map.
func ClaimDataParam(params map[string]interface{}) (map[string]interface{}, error) {
	raw, ok := params["claim_data"]
	if !ok {
		return nil, fmt.Errorf("missing required parameter: claim_data")
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter claim_data must be a mapping")
	}
	return data, nil
}

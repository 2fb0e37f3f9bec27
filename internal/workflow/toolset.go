package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/fraud"
	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/validation"
)

// requiredClaimFields are the claim data fields every submission must carry.
var requiredClaimFields = []string{
	"patient_name", "patient_id", "insurance_provider",
	"policy_number", "diagnosis_code", "procedure_code",
	"claim_amount", "service_date", "provider_name",
}

// entityCategories groups claim fields for entity extraction, in report order.
var entityCategories = []struct {
	name   string
	fields []string
}{
	{"patient_info", []string{"patient_name", "patient_id"}},
	{"insurance_info", []string{"insurance_provider", "policy_number"}},
	{"medical_info", []string{"diagnosis_code", "procedure_code", "service_date"}},
	{"provider_info", []string{"provider_name", "provider_npi"}},
	{"financial_info", []string{"claim_amount"}},
}

// Toolset provides the deterministic tool implementations backing the agent
// workflow. Eligibility and provider checks are mocks keyed on input patterns;
// database-backed tools use the claim store and fraud service.
type Toolset struct {
	store store.Store
	fraud *fraud.Service
}

// NewToolset creates a toolset backed by the given store and fraud service.
func NewToolset(st store.Store, fraudSvc *fraud.Service) *Toolset {
	return &Toolset{store: st, fraud: fraudSvc}
}

// RegisterAll registers every tool in the registry.
func (t *Toolset) RegisterAll(registry *ToolRegistry) error {
	tools := map[models.ToolName]ToolFunc{
		models.ToolValidateRequiredFields:    t.validateRequiredFields,
		models.ToolExtractEntities:           t.extractEntities,
		models.ToolCallEligibilityAPI:        t.callEligibilityAPI,
		models.ToolVerifyProviderCredentials: t.verifyProviderCredentials,
		models.ToolLookupICD10Code:           t.lookupICD10Code,
		models.ToolLookupCPTCode:             t.lookupCPTCode,
		models.ToolCheckCodeCompatibility:    t.checkCodeCompatibility,
		models.ToolCheckPriorAuthorization:   t.checkPriorAuthorization,
		models.ToolQueryClaimsDatabase:       t.queryClaimsDatabase,
		models.ToolCalculateFraudScore:       t.calculateFraudScore,
		models.ToolFlagForInvestigation:      t.flagForInvestigation,
		models.ToolApproveClaim:              t.approveClaim,
		models.ToolDenyClaim:                 t.denyClaim,
		models.ToolRequestHumanReview:        t.requestHumanReview,
	}
	for name, fn := range tools {
		if err := registry.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// validateRequiredFields checks claim data completeness and amount positivity.
func (t *Toolset) validateRequiredFields(_ context.Context, params map[string]interface{}) (string, error) {
	claimData, err := models.ClaimDataParam(params)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, field := range requiredClaimFields {
		if !fieldPresent(claimData, field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("INVALID: Missing required fields: %s", strings.Join(missing, ", ")), nil
	}

	amount, err := models.FloatParam(claimData, "claim_amount")
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "INVALID: Claim amount must be greater than zero", nil
	}

	return "VALID: All required fields present and properly formatted", nil
}

// extractEntities counts populated claim fields grouped by category.
func (t *Toolset) extractEntities(_ context.Context, params map[string]interface{}) (string, error) {
	claimData, err := models.ClaimDataParam(params)
	if err != nil {
		return "", err
	}

	total := 0
	var parts []string
	for _, category := range entityCategories {
		count := 0
		for _, field := range category.fields {
			if fieldPresent(claimData, field) {
				count++
				total++
			}
		}
		parts = append(parts, fmt.Sprintf("%s=%d", category.name, count))
	}

	return fmt.Sprintf("EXTRACTED: %d entities across %d categories: %s",
		total, len(entityCategories), strings.Join(parts, ", ")), nil
}

// callEligibilityAPI simulates an insurance eligibility API call. Coverage
// scenarios are keyed on the policy number.
func (t *Toolset) callEligibilityAPI(_ context.Context, params map[string]interface{}) (string, error) {
	policyNumber, err := models.StringParam(params, "policy_number")
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(policyNumber, "POL-") {
		return "ERROR: Invalid policy number format", nil
	}
	switch {
	case strings.Contains(policyNumber, "12345"):
		return "ELIGIBLE: Coverage active, $20 copay, $500 deductible remaining, expires 2025-12-31", nil
	case strings.Contains(policyNumber, "67890"):
		return "ELIGIBLE: Coverage active, $0 copay, $1000 deductible remaining, expires 2025-11-30", nil
	case strings.Contains(policyNumber, "99999"):
		return "INELIGIBLE: Coverage expired on 2025-09-30", nil
	default:
		return "ELIGIBLE: Coverage active, $15 copay, $200 deductible remaining, expires 2025-12-31", nil
	}
}

// verifyProviderCredentials verifies provider NPI format and network status.
// Verification is mocked on NPI prefixes.
func (t *Toolset) verifyProviderCredentials(_ context.Context, params map[string]interface{}) (string, error) {
	providerName, err := models.StringParam(params, "provider_name")
	if err != nil {
		return "", err
	}
	providerNPI := models.OptionalStringParam(params, "provider_npi")

	if len(providerNPI) != models.NPILength {
		return "INVALID: Provider NPI format invalid or missing", nil
	}
	if strings.HasPrefix(providerNPI, "555") {
		return fmt.Sprintf("OUT_OF_NETWORK: Provider %s (NPI: %s) is out-of-network", providerName, providerNPI), nil
	}
	return fmt.Sprintf("VERIFIED: Provider %s (NPI: %s) is credentialed and in-network", providerName, providerNPI), nil
}

// lookupICD10Code validates an ICD-10 diagnosis code against the code table.
func (t *Toolset) lookupICD10Code(_ context.Context, params map[string]interface{}) (string, error) {
	code, err := models.StringParam(params, "diagnosis_code")
	if err != nil {
		return "", err
	}

	description := validation.GetCodeDescription(code, validation.CodeTypeICD10)
	if description == validation.UnknownDiagnosisCode {
		return fmt.Sprintf("INVALID: ICD-10 code %s not found in database", code), nil
	}
	return fmt.Sprintf("VALID: %s - %s", code, description), nil
}

// lookupCPTCode validates a CPT procedure code against the code table.
func (t *Toolset) lookupCPTCode(_ context.Context, params map[string]interface{}) (string, error) {
	code, err := models.StringParam(params, "procedure_code")
	if err != nil {
		return "", err
	}

	description := validation.GetCodeDescription(code, validation.CodeTypeCPT)
	if description == validation.UnknownProcedureCode {
		return fmt.Sprintf("INVALID: CPT code %s not found in database", code), nil
	}
	return fmt.Sprintf("VALID: %s - %s", code, description), nil
}

// checkCodeCompatibility checks whether the procedure is appropriate for the diagnosis.
func (t *Toolset) checkCodeCompatibility(_ context.Context, params map[string]interface{}) (string, error) {
	diagnosisCode, err := models.StringParam(params, "diagnosis_code")
	if err != nil {
		return "", err
	}
	procedureCode, err := models.StringParam(params, "procedure_code")
	if err != nil {
		return "", err
	}

	if validation.CompatibleCodes(diagnosisCode, procedureCode) {
		return fmt.Sprintf("COMPATIBLE: Procedure %s is appropriate for diagnosis %s", procedureCode, diagnosisCode), nil
	}
	return fmt.Sprintf("INCOMPATIBLE: Procedure %s does not match diagnosis %s", procedureCode, diagnosisCode), nil
}

// checkPriorAuthorization checks whether a procedure requires prior authorization.
func (t *Toolset) checkPriorAuthorization(_ context.Context, params map[string]interface{}) (string, error) {
	procedureCode, err := models.StringParam(params, "procedure_code")
	if err != nil {
		return "", err
	}
	diagnosisCode, err := models.StringParam(params, "diagnosis_code")
	if err != nil {
		return "", err
	}

	if validation.RequiresPriorAuthorization(procedureCode) {
		return fmt.Sprintf("REQUIRED: Procedure %s requires prior authorization for diagnosis %s", procedureCode, diagnosisCode), nil
	}
	return fmt.Sprintf("NOT_REQUIRED: Procedure %s does not require prior authorization", procedureCode), nil
}

// queryClaimsDatabase searches the patient's claim history for duplicates and
// summarizes prior claims. The claim under processing is excluded so a claim
// never matches itself.
func (t *Toolset) queryClaimsDatabase(_ context.Context, params map[string]interface{}) (string, error) {
	patientID, err := models.StringParam(params, "patient_id")
	if err != nil {
		return "", err
	}
	procedureCode := models.OptionalStringParam(params, "procedure_code")
	serviceDate := models.OptionalStringParam(params, "service_date")
	currentClaimID := models.OptionalStringParam(params, "claim_id")

	patientClaims, err := t.store.ClaimsByPatient(patientID)
	if err != nil {
		return "", fmt.Errorf("claims database query failed: %w", err)
	}

	var history []models.Claim
	for _, c := range patientClaims {
		if c.ClaimID == currentClaimID {
			continue
		}
		history = append(history, c)
	}

	if len(history) == 0 {
		return fmt.Sprintf("NO_HISTORY: No previous claims found for patient %s", patientID), nil
	}

	if procedureCode != "" && serviceDate != "" {
		var duplicateIDs []string
		for _, c := range history {
			if c.ProcedureCode == procedureCode && c.ServiceDate == serviceDate {
				duplicateIDs = append(duplicateIDs, c.ClaimID)
			}
		}
		if len(duplicateIDs) > 0 {
			return fmt.Sprintf("DUPLICATE_FOUND: Found identical claims on same date: [%s]", strings.Join(duplicateIDs, ", ")), nil
		}
	}

	var totalAmount float64
	recent := 0
	cutoff := time.Now().AddDate(0, 0, -30)
	for _, c := range history {
		totalAmount += c.ClaimAmount
		if c.CreatedAt.After(cutoff) {
			recent++
		}
	}
	return fmt.Sprintf("HISTORY_FOUND: Patient has %d previous claims, total amount $%.2f, %d in last 30 days",
		len(history), totalAmount, recent), nil
}

// calculateFraudScore computes the fraud risk score for a stored claim.
func (t *Toolset) calculateFraudScore(_ context.Context, params map[string]interface{}) (string, error) {
	claimID, err := models.StringParam(params, "claim_id")
	if err != nil {
		return "", err
	}

	claim, err := t.store.GetClaim(claimID)
	if err != nil {
		return "", fmt.Errorf("claim lookup failed: %w", err)
	}
	if claim == nil {
		return "ERROR: Claim not found", nil
	}

	analysis, err := t.fraud.AnalyzeFraudRisk(*claim)
	if err != nil {
		return "", fmt.Errorf("fraud analysis failed: %w", err)
	}

	topFactors := analysis.RiskFactors
	if len(topFactors) > 3 {
		topFactors = topFactors[:3]
	}
	return fmt.Sprintf("FRAUD_SCORE: %.1f/100 (%s risk). Key factors: %s",
		analysis.FraudScore, fraud.RiskLevelFor(analysis.FraudScore), strings.Join(topFactors, "; ")), nil
}

// flagForInvestigation marks a claim for fraud investigation.
func (t *Toolset) flagForInvestigation(_ context.Context, params map[string]interface{}) (string, error) {
	claimID, err := models.StringParam(params, "claim_id")
	if err != nil {
		return "", err
	}
	reason, err := models.StringParam(params, "reason")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FLAGGED: Claim %s flagged for investigation at %s. Reason: %s",
		claimID, time.Now().Format(time.RFC3339), reason), nil
}

// approveClaim records claim approval for the audit trail.
func (t *Toolset) approveClaim(_ context.Context, params map[string]interface{}) (string, error) {
	claimID, err := models.StringParam(params, "claim_id")
	if err != nil {
		return "", err
	}
	amount, err := models.FloatParam(params, "amount")
	if err != nil {
		return "", err
	}
	reason, err := models.StringParam(params, "reason")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("APPROVED: Claim %s approved for $%.2f at %s. Reason: %s",
		claimID, amount, time.Now().Format(time.RFC3339), reason), nil
}

// denyClaim records claim denial for the audit trail.
func (t *Toolset) denyClaim(_ context.Context, params map[string]interface{}) (string, error) {
	claimID, err := models.StringParam(params, "claim_id")
	if err != nil {
		return "", err
	}
	reason, err := models.StringParam(params, "reason")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DENIED: Claim %s denied at %s. Reason: %s",
		claimID, time.Now().Format(time.RFC3339), reason), nil
}

// requestHumanReview escalates a claim to human review.
func (t *Toolset) requestHumanReview(_ context.Context, params map[string]interface{}) (string, error) {
	claimID, err := models.StringParam(params, "claim_id")
	if err != nil {
		return "", err
	}
	reason, err := models.StringParam(params, "reason")
	if err != nil {
		return "", err
	}
	urgency := models.OptionalStringParam(params, "urgency")
	if urgency == "" {
		urgency = "normal"
	}
	return fmt.Sprintf("ESCALATED: Claim %s escalated to human review at %s. Reason: %s. Urgency: %s",
		claimID, time.Now().Format(time.RFC3339), reason, urgency), nil
}

// fieldPresent reports whether a claim data field exists and is non-empty.
func fieldPresent(claimData map[string]interface{}, field string) bool {
	raw, ok := claimData[field]
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

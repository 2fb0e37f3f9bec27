package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/fraud"
	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/validation"
)

func newTestToolset(t *testing.T) (*Toolset, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewToolset(st, fraud.NewService(st)), st
}

// weekdayServiceDate returns a recent weekday so fraud timing rules stay quiet.
func weekdayServiceDate() string {
	d := time.Now().AddDate(0, 0, -2)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d.Format(validation.ServiceDateLayout)
}

func storedClaim(claimID, patientID, procedureCode string, amount float64) models.Claim {
	return models.Claim{
		ClaimSubmission: models.ClaimSubmission{
			PatientName:       "John Smith",
			PatientID:         patientID,
			InsuranceProvider: "Acme Health",
			PolicyNumber:      "POL-12345",
			DiagnosisCode:     "Z00.00",
			ProcedureCode:     procedureCode,
			ClaimAmount:       amount,
			ServiceDate:       weekdayServiceDate(),
			ProviderName:      "Dr. Adams",
			ProviderNPI:       "1234567890",
		},
		ClaimID:   claimID,
		Status:    models.ClaimStatusPending,
		CreatedAt: time.Now(),
	}
}

func fullClaimData() map[string]interface{} {
	return map[string]interface{}{
		"patient_name":       "John Smith",
		"patient_id":         "PAT-1001",
		"insurance_provider": "Acme Health",
		"policy_number":      "POL-12345",
		"diagnosis_code":     "Z00.00",
		"procedure_code":     "99213",
		"claim_amount":       150.0,
		"service_date":       weekdayServiceDate(),
		"provider_name":      "Dr. Adams",
		"provider_npi":       "1234567890",
	}
}

func TestRegisterAllRegistersEveryTool(t *testing.T) {
	toolset, _ := newTestToolset(t)
	registry := NewToolRegistry()
	if err := toolset.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	allTools := [][]models.ToolName{
		models.IntakeTools, models.EligibilityTools, models.ClinicalTools,
		models.FraudTools, models.AdjudicationTools,
	}
	for _, group := range allTools {
		for _, name := range group {
			if !registry.Registered(name) {
				t.Errorf("tool %s not registered", name)
			}
		}
	}
}

func TestValidateRequiredFields(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()

	result, err := toolset.validateRequiredFields(ctx, map[string]interface{}{"claim_data": fullClaimData()})
	if err != nil {
		t.Fatalf("validateRequiredFields failed: %v", err)
	}
	if !strings.HasPrefix(result, "VALID") {
		t.Errorf("expected VALID result, got %q", result)
	}

	data := fullClaimData()
	data["patient_name"] = ""
	delete(data, "policy_number")
	result, err = toolset.validateRequiredFields(ctx, map[string]interface{}{"claim_data": data})
	if err != nil {
		t.Fatalf("validateRequiredFields failed: %v", err)
	}
	if !strings.HasPrefix(result, "INVALID: Missing required fields") {
		t.Errorf("expected missing fields result, got %q", result)
	}
	if !strings.Contains(result, "patient_name") || !strings.Contains(result, "policy_number") {
		t.Errorf("expected both missing fields named, got %q", result)
	}
}

func TestExtractEntities(t *testing.T) {
	toolset, _ := newTestToolset(t)
	result, err := toolset.extractEntities(context.Background(), map[string]interface{}{"claim_data": fullClaimData()})
	if err != nil {
		t.Fatalf("extractEntities failed: %v", err)
	}
	if !strings.HasPrefix(result, "EXTRACTED: 10 entities across 5 categories") {
		t.Errorf("unexpected extraction summary: %q", result)
	}
	if !strings.Contains(result, "patient_info=2") || !strings.Contains(result, "financial_info=1") {
		t.Errorf("unexpected category counts: %q", result)
	}
}

func TestCallEligibilityAPI(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()
	cases := []struct {
		policy string
		prefix string
	}{
		{"POL-12345", "ELIGIBLE: Coverage active, $20 copay"},
		{"POL-67890", "ELIGIBLE: Coverage active, $0 copay"},
		{"POL-99999", "INELIGIBLE: Coverage expired"},
		{"POL-55555", "ELIGIBLE: Coverage active, $15 copay"},
		{"12345", "ERROR: Invalid policy number format"},
	}
	for _, tc := range cases {
		result, err := toolset.callEligibilityAPI(ctx, map[string]interface{}{"policy_number": tc.policy})
		if err != nil {
			t.Fatalf("callEligibilityAPI(%s) failed: %v", tc.policy, err)
		}
		if !strings.HasPrefix(result, tc.prefix) {
			t.Errorf("callEligibilityAPI(%s) = %q, want prefix %q", tc.policy, result, tc.prefix)
		}
	}
}

func TestVerifyProviderCredentials(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()
	cases := []struct {
		npi    string
		prefix string
	}{
		{"1234567890", "VERIFIED"},
		{"5551234567", "OUT_OF_NETWORK"},
		{"12345", "INVALID"},
		{"", "INVALID"},
	}
	for _, tc := range cases {
		result, err := toolset.verifyProviderCredentials(ctx, map[string]interface{}{
			"provider_name": "Dr. Adams",
			"provider_npi":  tc.npi,
		})
		if err != nil {
			t.Fatalf("verifyProviderCredentials(%q) failed: %v", tc.npi, err)
		}
		if !strings.HasPrefix(result, tc.prefix) {
			t.Errorf("verifyProviderCredentials(%q) = %q, want prefix %q", tc.npi, result, tc.prefix)
		}
	}
}

func TestCodeLookupTools(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()

	result, _ := toolset.lookupICD10Code(ctx, map[string]interface{}{"diagnosis_code": "Z00.00"})
	if !strings.HasPrefix(result, "VALID: Z00.00") {
		t.Errorf("unexpected ICD-10 lookup: %q", result)
	}
	result, _ = toolset.lookupICD10Code(ctx, map[string]interface{}{"diagnosis_code": "XXX"})
	if !strings.HasPrefix(result, "INVALID: ICD-10 code XXX not found") {
		t.Errorf("unexpected ICD-10 lookup: %q", result)
	}

	result, _ = toolset.lookupCPTCode(ctx, map[string]interface{}{"procedure_code": "99213"})
	if !strings.HasPrefix(result, "VALID: 99213") {
		t.Errorf("unexpected CPT lookup: %q", result)
	}
	result, _ = toolset.lookupCPTCode(ctx, map[string]interface{}{"procedure_code": "00000"})
	if !strings.HasPrefix(result, "INVALID: CPT code 00000 not found") {
		t.Errorf("unexpected CPT lookup: %q", result)
	}
}

func TestCheckCodeCompatibility(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()

	result, _ := toolset.checkCodeCompatibility(ctx, map[string]interface{}{
		"diagnosis_code": "Z00.00", "procedure_code": "99213",
	})
	if !strings.HasPrefix(result, "COMPATIBLE") {
		t.Errorf("expected COMPATIBLE, got %q", result)
	}

	result, _ = toolset.checkCodeCompatibility(ctx, map[string]interface{}{
		"diagnosis_code": "S52.501A", "procedure_code": "92004",
	})
	if !strings.HasPrefix(result, "INCOMPATIBLE") {
		t.Errorf("expected INCOMPATIBLE, got %q", result)
	}
}

func TestCheckPriorAuthorization(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()

	result, _ := toolset.checkPriorAuthorization(ctx, map[string]interface{}{
		"procedure_code": "27447", "diagnosis_code": "S52.501A",
	})
	if !strings.HasPrefix(result, "REQUIRED") {
		t.Errorf("expected REQUIRED, got %q", result)
	}

	result, _ = toolset.checkPriorAuthorization(ctx, map[string]interface{}{
		"procedure_code": "99213", "diagnosis_code": "Z00.00",
	})
	if !strings.HasPrefix(result, "NOT_REQUIRED") {
		t.Errorf("expected NOT_REQUIRED, got %q", result)
	}
}

func TestQueryClaimsDatabase(t *testing.T) {
	toolset, st := newTestToolset(t)
	ctx := context.Background()

	result, err := toolset.queryClaimsDatabase(ctx, map[string]interface{}{"patient_id": "PAT-1001"})
	if err != nil {
		t.Fatalf("queryClaimsDatabase failed: %v", err)
	}
	if !strings.HasPrefix(result, "NO_HISTORY") {
		t.Errorf("expected NO_HISTORY for empty store, got %q", result)
	}

	existing := storedClaim("CLM-OLD", "PAT-1001", "99213", 150)
	if err := st.SaveClaim(existing); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}

	// Same procedure and date as the stored claim: duplicate.
	result, err = toolset.queryClaimsDatabase(ctx, map[string]interface{}{
		"patient_id":     "PAT-1001",
		"procedure_code": "99213",
		"service_date":   existing.ServiceDate,
		"claim_id":       "CLM-NEW",
	})
	if err != nil {
		t.Fatalf("queryClaimsDatabase failed: %v", err)
	}
	if !strings.HasPrefix(result, "DUPLICATE_FOUND") || !strings.Contains(result, "[CLM-OLD]") {
		t.Errorf("expected duplicate listing CLM-OLD, got %q", result)
	}

	// The claim under processing must not match itself.
	result, err = toolset.queryClaimsDatabase(ctx, map[string]interface{}{
		"patient_id":     "PAT-1001",
		"procedure_code": "99213",
		"service_date":   existing.ServiceDate,
		"claim_id":       "CLM-OLD",
	})
	if err != nil {
		t.Fatalf("queryClaimsDatabase failed: %v", err)
	}
	if !strings.HasPrefix(result, "NO_HISTORY") {
		t.Errorf("expected self-exclusion, got %q", result)
	}

	// Different date: plain history summary.
	result, err = toolset.queryClaimsDatabase(ctx, map[string]interface{}{
		"patient_id":     "PAT-1001",
		"procedure_code": "99213",
		"service_date":   "2020-01-01",
		"claim_id":       "CLM-NEW",
	})
	if err != nil {
		t.Fatalf("queryClaimsDatabase failed: %v", err)
	}
	if !strings.HasPrefix(result, "HISTORY_FOUND: Patient has 1 previous claims") {
		t.Errorf("expected history summary, got %q", result)
	}
}

func TestCalculateFraudScore(t *testing.T) {
	toolset, st := newTestToolset(t)
	ctx := context.Background()

	result, err := toolset.calculateFraudScore(ctx, map[string]interface{}{"claim_id": "CLM-MISSING"})
	if err != nil {
		t.Fatalf("calculateFraudScore failed: %v", err)
	}
	if result != "ERROR: Claim not found" {
		t.Errorf("expected claim-not-found sentinel, got %q", result)
	}

	claim := storedClaim("CLM-SCORE", "PAT-1001", "99213", 150)
	if err := st.SaveClaim(claim); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}
	result, err = toolset.calculateFraudScore(ctx, map[string]interface{}{"claim_id": "CLM-SCORE"})
	if err != nil {
		t.Fatalf("calculateFraudScore failed: %v", err)
	}
	if !strings.HasPrefix(result, "FRAUD_SCORE: 0.0/100 (LOW risk)") {
		t.Errorf("expected low-risk score, got %q", result)
	}
}

func TestDecisionTools(t *testing.T) {
	toolset, _ := newTestToolset(t)
	ctx := context.Background()

	result, err := toolset.approveClaim(ctx, map[string]interface{}{
		"claim_id": "CLM-1", "amount": 150.0, "reason": "All validation checks passed",
	})
	if err != nil {
		t.Fatalf("approveClaim failed: %v", err)
	}
	if !strings.HasPrefix(result, "APPROVED: Claim CLM-1 approved for $150.00") {
		t.Errorf("unexpected approval record: %q", result)
	}

	result, err = toolset.denyClaim(ctx, map[string]interface{}{
		"claim_id": "CLM-1", "reason": "fraud indicators",
	})
	if err != nil {
		t.Fatalf("denyClaim failed: %v", err)
	}
	if !strings.HasPrefix(result, "DENIED: Claim CLM-1 denied at") {
		t.Errorf("unexpected denial record: %q", result)
	}

	result, err = toolset.flagForInvestigation(ctx, map[string]interface{}{
		"claim_id": "CLM-1", "reason": "duplicate detected",
	})
	if err != nil {
		t.Fatalf("flagForInvestigation failed: %v", err)
	}
	if !strings.HasPrefix(result, "FLAGGED: Claim CLM-1 flagged for investigation") {
		t.Errorf("unexpected flag record: %q", result)
	}

	result, err = toolset.requestHumanReview(ctx, map[string]interface{}{
		"claim_id": "CLM-1", "reason": "ambiguous findings",
	})
	if err != nil {
		t.Fatalf("requestHumanReview failed: %v", err)
	}
	if !strings.HasPrefix(result, "ESCALATED: Claim CLM-1 escalated to human review") || !strings.HasSuffix(result, "Urgency: normal") {
		t.Errorf("unexpected escalation record: %q", result)
	}
}

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "claimpipe.db")
	st, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Errorf("expected error for missing DSN")
	}
}

func TestSQLiteStoreClaimRoundTrip(t *testing.T) {
	st := newSQLiteTestStore(t)

	claim := testClaim("CLM-SQL0001", "PAT-1", time.Now().Truncate(time.Second))
	claim.Notes = "routine visit"
	if err := st.SaveClaim(claim); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}

	got, err := st.GetClaim("CLM-SQL0001")
	if err != nil {
		t.Fatalf("GetClaim failed: %v", err)
	}
	if got == nil {
		t.Fatalf("claim not found after save")
	}
	if got.PatientName != claim.PatientName || got.PolicyNumber != claim.PolicyNumber || got.Notes != "routine visit" {
		t.Errorf("unexpected claim: %+v", got)
	}
	if got.Status != models.ClaimStatusPending {
		t.Errorf("unexpected status: %s", got.Status)
	}

	// Upsert: saving the same ID updates in place.
	claim.Status = models.ClaimStatusDenied
	processedAt := time.Now().Truncate(time.Second)
	claim.ProcessedAt = &processedAt
	if err := st.SaveClaim(claim); err != nil {
		t.Fatalf("SaveClaim update failed: %v", err)
	}
	got, err = st.GetClaim("CLM-SQL0001")
	if err != nil {
		t.Fatalf("GetClaim failed: %v", err)
	}
	if got.Status != models.ClaimStatusDenied || got.ProcessedAt == nil {
		t.Errorf("update not persisted: %+v", got)
	}

	if missing, err := st.GetClaim("CLM-NONE"); err != nil || missing != nil {
		t.Errorf("expected nil for missing claim, got %+v (%v)", missing, err)
	}
}

func TestSQLiteStoreQueries(t *testing.T) {
	st := newSQLiteTestStore(t)
	now := time.Now().Truncate(time.Second)

	first := testClaim("CLM-A", "PAT-1", now.Add(-2*time.Hour))
	second := testClaim("CLM-B", "PAT-1", now.Add(-1*time.Hour))
	second.Status = models.ClaimStatusApproved
	third := testClaim("CLM-C", "PAT-2", now)
	third.ProviderName = "Dr. Brown"

	for _, c := range []models.Claim{first, second, third} {
		if err := st.SaveClaim(c); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}
	}

	all, err := st.ListClaims("")
	if err != nil {
		t.Fatalf("ListClaims failed: %v", err)
	}
	if len(all) != 3 || all[0].ClaimID != "CLM-C" {
		t.Errorf("expected newest-first ordering of 3 claims, got %v", all)
	}

	approved, err := st.ListClaims(models.ClaimStatusApproved)
	if err != nil {
		t.Fatalf("ListClaims filtered failed: %v", err)
	}
	if len(approved) != 1 || approved[0].ClaimID != "CLM-B" {
		t.Errorf("unexpected filtered claims: %v", approved)
	}

	byPatient, err := st.ClaimsByPatient("PAT-1")
	if err != nil {
		t.Fatalf("ClaimsByPatient failed: %v", err)
	}
	if len(byPatient) != 2 || byPatient[0].ClaimID != "CLM-B" {
		t.Errorf("unexpected patient claims: %v", byPatient)
	}

	byProvider, err := st.ClaimsByProvider("Dr. Brown")
	if err != nil {
		t.Fatalf("ClaimsByProvider failed: %v", err)
	}
	if len(byProvider) != 1 || byProvider[0].ClaimID != "CLM-C" {
		t.Errorf("unexpected provider claims: %v", byProvider)
	}

	// Case-insensitive match, as in the in-memory store.
	byProviderLower, err := st.ClaimsByProvider("dr. brown")
	if err != nil {
		t.Fatalf("ClaimsByProvider failed: %v", err)
	}
	if len(byProviderLower) != 1 || byProviderLower[0].ClaimID != "CLM-C" {
		t.Errorf("expected case-insensitive provider match, got %v", byProviderLower)
	}
}

func TestSQLiteStoreLogsAndReports(t *testing.T) {
	st := newSQLiteTestStore(t)

	decision := models.DecisionLog{
		ClaimID:         "CLM-A",
		Decision:        models.DecisionDeny,
		ConfidenceScore: 90,
		ReasoningText:   "Claim denied due to: invalid codes",
		FraudScore:      15,
		CreatedAt:       time.Now().Truncate(time.Second),
	}
	if err := st.SaveDecisionLog(decision); err != nil {
		t.Fatalf("SaveDecisionLog failed: %v", err)
	}
	gotDecision, err := st.GetDecisionLog("CLM-A")
	if err != nil {
		t.Fatalf("GetDecisionLog failed: %v", err)
	}
	if gotDecision == nil || gotDecision.Decision != models.DecisionDeny || gotDecision.FraudScore != 15 {
		t.Errorf("unexpected decision log: %+v", gotDecision)
	}

	exc := models.ExceptionLog{
		ClaimID:          "CLM-A",
		ExceptionType:    "CODE_MISMATCH",
		ResolutionAction: "Review diagnosis and procedure codes for accuracy",
		CreatedAt:        time.Now().Truncate(time.Second),
	}
	if err := st.SaveExceptionLog(exc); err != nil {
		t.Fatalf("SaveExceptionLog failed: %v", err)
	}
	logs, err := st.GetExceptionLogs("CLM-A")
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected 1 exception log, got %d (%v)", len(logs), err)
	}
	similar, err := st.FindSimilarExceptions("CODE_MISMATCH")
	if err != nil || len(similar) != 1 {
		t.Fatalf("expected 1 similar exception, got %d (%v)", len(similar), err)
	}

	reports := []models.AgentReport{
		{AgentName: "Intake Agent", Status: models.AgentStatusCompleted, Result: "ok", ConfidenceScore: 95},
	}
	reports[0].AddStep(models.StepReason, "checking the claim")
	if err := st.SaveAgentReports("CLM-A", reports); err != nil {
		t.Fatalf("SaveAgentReports failed: %v", err)
	}
	gotReports, err := st.GetAgentReports("CLM-A")
	if err != nil {
		t.Fatalf("GetAgentReports failed: %v", err)
	}
	if len(gotReports) != 1 || gotReports[0].AgentName != "Intake Agent" {
		t.Errorf("unexpected reports: %+v", gotReports)
	}
	if len(gotReports[0].ReasoningSteps) != 1 {
		t.Errorf("reasoning steps not round-tripped: %+v", gotReports[0])
	}

	if none, err := st.GetAgentReports("CLM-NONE"); err != nil || none != nil {
		t.Errorf("expected nil reports for unknown claim, got %+v (%v)", none, err)
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	st, err := NewPostgresStore(WithDSN(dsn))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer st.Close()

	claim := testClaim("CLM-PG0001", "PAT-PG", time.Now().Truncate(time.Second))
	if err := st.SaveClaim(claim); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}
	got, err := st.GetClaim("CLM-PG0001")
	if err != nil {
		t.Fatalf("GetClaim failed: %v", err)
	}
	if got == nil || got.PatientID != "PAT-PG" {
		t.Errorf("unexpected claim: %+v", got)
	}
}

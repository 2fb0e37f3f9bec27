package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MedLedger/ClaimPipe/internal/fraud"
	"github.com/MedLedger/ClaimPipe/internal/genai"
	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/store"
)

// fakeLLM is a canned genai client for workflow tests.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) GenerateWithMessages(_ context.Context, _ []genai.Message) (string, error) {
	return f.response, f.err
}

func newTestEngine(t *testing.T, st *store.InMemoryStore, llm genai.ClientInterface) *Engine {
	t.Helper()
	registry := NewToolRegistry()
	toolset := NewToolset(st, fraud.NewService(st))
	if err := toolset.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	var opts []EngineOption
	if llm != nil {
		opts = append(opts, WithGenAIClient(llm))
	}
	return NewEngine(registry, opts...)
}

func runStoredClaim(t *testing.T, engine *Engine, st *store.InMemoryStore, claim models.Claim) *models.ClaimState {
	t.Helper()
	if err := st.SaveClaim(claim); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}
	return engine.Run(context.Background(), claim.ClaimID, BuildClaimData(claim))
}

func agentOrder(state *models.ClaimState) []string {
	var names []string
	for _, r := range state.AgentReports {
		names = append(names, r.AgentName)
	}
	return names
}

func TestEngineRunApprovesCleanClaim(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{err: errors.New("offline")})

	claim := storedClaim("CLM-CLEAN", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, claim)

	if state.FinalDecision != models.DecisionApprove {
		t.Errorf("expected APPROVE, got %s (%s)", state.FinalDecision, state.Reasoning)
	}
	if state.ConfidenceScore != 88 {
		t.Errorf("expected confidence 88, got %.1f", state.ConfidenceScore)
	}
	if state.Reasoning != "All validation checks passed" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
	if !state.IntakeCompleted || !state.EligibilityVerified || !state.CodesValidated || !state.FraudChecked || !state.AdjudicationCompleted {
		t.Errorf("expected all completion flags set: %+v", state)
	}
	if state.FraudResult == nil || state.FraudResult.Flagged {
		t.Errorf("clean claim should not be fraud flagged: %+v", state.FraudResult)
	}

	want := []string{IntakeAgentName, EligibilityAgentName, ClinicalAgentName, FraudAgentName, AdjudicationAgentName}
	got := agentOrder(state)
	if len(got) != len(want) {
		t.Fatalf("expected %d reports, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("report %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEngineRunDeniesIncompatibleCodes(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	claim := storedClaim("CLM-CODES", "PAT-1001", "92004", 200)
	claim.DiagnosisCode = "S52.501A"
	state := runStoredClaim(t, engine, st, claim)

	if state.FinalDecision != models.DecisionDeny {
		t.Errorf("expected DENY, got %s", state.FinalDecision)
	}
	if state.Reasoning != "Claim denied due to: invalid codes" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
	if state.ConfidenceScore != 90 {
		t.Errorf("expected confidence 90, got %.1f", state.ConfidenceScore)
	}
	if state.CodesValidated {
		t.Errorf("codes should not be validated")
	}
	if state.ClinicalResult == nil || state.ClinicalResult.Status != ClinicalStatusInvalid {
		t.Errorf("unexpected clinical result: %+v", state.ClinicalResult)
	}
	if state.ClinicalResult != nil && len(state.ClinicalResult.Issues) != 3 {
		t.Errorf("expected all three check results in issues, got %v", state.ClinicalResult.Issues)
	}
}

func TestEngineRunDeniesIneligiblePolicy(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	claim := storedClaim("CLM-INEL", "PAT-1001", "99213", 150)
	claim.PolicyNumber = "POL-99999"
	state := runStoredClaim(t, engine, st, claim)

	if state.FinalDecision != models.DecisionDeny {
		t.Errorf("expected DENY, got %s", state.FinalDecision)
	}
	if state.Reasoning != "Claim denied due to: eligibility" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
	if state.EligibilityVerified {
		t.Errorf("eligibility should not be verified")
	}
	if state.EligibilityResult == nil || state.EligibilityResult.Status != EligibilityStatusIneligible {
		t.Errorf("unexpected eligibility result: %+v", state.EligibilityResult)
	}
}

func TestEngineRunFlagsDuplicateClaim(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	existing := storedClaim("CLM-EXISTING", "PAT-1001", "99213", 150)
	if err := st.SaveClaim(existing); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}

	duplicate := storedClaim("CLM-DUP", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, duplicate)

	if state.FinalDecision != models.DecisionDeny {
		t.Errorf("expected DENY, got %s", state.FinalDecision)
	}
	if state.Reasoning != "Claim denied due to fraud indicators" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
	if state.ConfidenceScore != 95 {
		t.Errorf("expected confidence 95, got %.1f", state.ConfidenceScore)
	}
	if state.FraudResult == nil || !state.FraudResult.Flagged || state.FraudResult.RiskLevel != "HIGH" {
		t.Errorf("expected flagged high-risk fraud result: %+v", state.FraudResult)
	}
	if !strings.HasPrefix(state.FraudResult.QueryResult, "DUPLICATE_FOUND") {
		t.Errorf("expected duplicate query result, got %q", state.FraudResult.QueryResult)
	}

	// The fraud report should include the investigation flag tool call.
	var fraudReport *models.AgentReport
	for i := range state.AgentReports {
		if state.AgentReports[i].AgentName == FraudAgentName {
			fraudReport = &state.AgentReports[i]
		}
	}
	if fraudReport == nil {
		t.Fatalf("fraud report missing")
	}
	flagged := false
	for _, usage := range fraudReport.ToolsUsed {
		if usage.ToolName == models.ToolFlagForInvestigation {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("expected flag_for_investigation call, got %v", fraudReport.ToolsUsed)
	}
}

func TestEngineRunFraudOutranksEligibilityDenial(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	existing := storedClaim("CLM-EXISTING", "PAT-1001", "99213", 150)
	if err := st.SaveClaim(existing); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}

	// Both deny branches armed at once: duplicate history and an expired policy.
	claim := storedClaim("CLM-BOTH", "PAT-1001", "99213", 150)
	claim.PolicyNumber = "POL-99999"
	state := runStoredClaim(t, engine, st, claim)

	if state.EligibilityVerified {
		t.Errorf("eligibility should not be verified")
	}
	if state.FraudResult == nil || !state.FraudResult.Flagged {
		t.Fatalf("expected flagged fraud result: %+v", state.FraudResult)
	}
	if state.FinalDecision != models.DecisionDeny {
		t.Errorf("expected DENY, got %s", state.FinalDecision)
	}
	if state.Reasoning != "Claim denied due to fraud indicators" {
		t.Errorf("fraud branch should outrank eligibility, got %q", state.Reasoning)
	}
	if state.ConfidenceScore != 95 {
		t.Errorf("expected fraud denial confidence 95, got %.1f", state.ConfidenceScore)
	}
}

func TestEngineRunRepeatedRunsAgree(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	claim := storedClaim("CLM-TWICE", "PAT-1001", "99213", 150)
	first := runStoredClaim(t, engine, st, claim)
	second := engine.Run(context.Background(), claim.ClaimID, BuildClaimData(claim))

	if first.FinalDecision != second.FinalDecision {
		t.Errorf("decisions differ across runs: %s vs %s", first.FinalDecision, second.FinalDecision)
	}
	if first.ConfidenceScore != second.ConfidenceScore {
		t.Errorf("confidence differs across runs: %.1f vs %.1f", first.ConfidenceScore, second.ConfidenceScore)
	}
	if first.Reasoning != second.Reasoning {
		t.Errorf("reasoning differs across runs: %q vs %q", first.Reasoning, second.Reasoning)
	}
	if len(first.AgentReports) != len(second.AgentReports) {
		t.Errorf("report counts differ across runs: %d vs %d", len(first.AgentReports), len(second.AgentReports))
	}
}

func TestEngineRunIntakeFailureCascades(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	claim := storedClaim("CLM-BAD", "PAT-1001", "99213", 150)
	claim.PatientName = ""
	state := runStoredClaim(t, engine, st, claim)

	if state.IntakeCompleted {
		t.Errorf("intake should have failed")
	}
	if len(state.AgentReports) != 5 {
		t.Fatalf("expected 5 reports even on intake failure, got %d", len(state.AgentReports))
	}
	if state.AgentReports[0].Status != models.AgentStatusFailed {
		t.Errorf("intake report should be FAILED, got %s", state.AgentReports[0].Status)
	}
	if state.AgentReports[0].ConfidenceScore != 10 {
		t.Errorf("expected intake failure confidence 10, got %.1f", state.AgentReports[0].ConfidenceScore)
	}
	for _, i := range []int{1, 2, 3} {
		r := state.AgentReports[i]
		if r.Status != models.AgentStatusFailed {
			t.Errorf("%s should be FAILED after intake failure, got %s", r.AgentName, r.Status)
		}
		if r.Result != "Cannot proceed - intake validation failed" {
			t.Errorf("%s unexpected result: %q", r.AgentName, r.Result)
		}
	}

	if state.FinalDecision != models.DecisionDeny {
		t.Errorf("expected DENY, got %s", state.FinalDecision)
	}
	if state.Reasoning != "Claim denied due to: eligibility, invalid codes" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
}

func TestEngineRunWithoutLLMUsesFallback(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, nil)

	claim := storedClaim("CLM-NOLLM", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, claim)

	if state.FinalDecision != models.DecisionApprove {
		t.Errorf("expected fallback APPROVE, got %s", state.FinalDecision)
	}
	if state.ConfidenceScore != 75 {
		t.Errorf("expected fallback confidence 75, got %.1f", state.ConfidenceScore)
	}
	if state.Reasoning != "Processed with fallback logic - GenAI not available" {
		t.Errorf("unexpected reasoning: %q", state.Reasoning)
	}
	if len(state.AgentReports) != 1 || state.AgentReports[0].AgentName != FallbackAgentName {
		t.Errorf("expected single fallback report, got %v", agentOrder(state))
	}
	if !state.IntakeCompleted || !state.EligibilityVerified || !state.CodesValidated || !state.FraudChecked || !state.AdjudicationCompleted {
		t.Errorf("fallback state should set all completion flags")
	}
}

func TestEngineRunAppendsNarrative(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{response: "The claim passed every check and is payable."})

	claim := storedClaim("CLM-NARR", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, claim)

	adjudication := state.AgentReports[len(state.AgentReports)-1]
	found := false
	for _, step := range adjudication.ReasoningSteps {
		if strings.Contains(step.Text, "Adjudicator narrative: The claim passed every check") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected narrative step in adjudication report, got %v", adjudication.ReasoningSteps)
	}
	// The narrative never changes the deterministic decision.
	if state.FinalDecision != models.DecisionApprove || state.ConfidenceScore != 88 {
		t.Errorf("narrative must not affect the decision: %s %.1f", state.FinalDecision, state.ConfidenceScore)
	}
}

func TestEngineRunNarrativeFailureTolerated(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{err: errors.New("rate limited")})

	claim := storedClaim("CLM-NONARR", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, claim)

	adjudication := state.AgentReports[len(state.AgentReports)-1]
	for _, step := range adjudication.ReasoningSteps {
		if strings.Contains(step.Text, "Adjudicator narrative") {
			t.Errorf("narrative step should be absent on generation failure")
		}
	}
	if state.FinalDecision != models.DecisionApprove {
		t.Errorf("generation failure must not affect the decision, got %s", state.FinalDecision)
	}
}

func TestBuildClaimData(t *testing.T) {
	claim := storedClaim("CLM-DATA", "PAT-1001", "99213", 150)
	claim.Notes = "routine visit"
	data := BuildClaimData(claim)

	if data["patient_id"] != "PAT-1001" || data["procedure_code"] != "99213" {
		t.Errorf("unexpected claim data: %v", data)
	}
	if amount, ok := data["claim_amount"].(float64); !ok || amount != 150 {
		t.Errorf("claim_amount should be float64 150, got %v", data["claim_amount"])
	}
	if data["notes"] != "routine visit" {
		t.Errorf("notes not carried over: %v", data["notes"])
	}
}

func TestFormatAgentReasoning(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := newTestEngine(t, st, &fakeLLM{})

	claim := storedClaim("CLM-FMT", "PAT-1001", "99213", 150)
	state := runStoredClaim(t, engine, st, claim)

	text := FormatAgentReasoning(state)
	if !strings.Contains(text, "Final Decision: APPROVE") {
		t.Errorf("expected final decision line, got:\n%s", text)
	}
	if !strings.Contains(text, "Agent Analysis:") || !strings.Contains(text, IntakeAgentName) {
		t.Errorf("expected agent analysis section, got:\n%s", text)
	}
	if !strings.Contains(text, "Key Findings:") {
		t.Errorf("expected key findings section, got:\n%s", text)
	}
}

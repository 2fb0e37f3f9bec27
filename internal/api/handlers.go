// Package api provides HTTP handlers for ClaimPipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/exceptions"
	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/util"
	"github.com/MedLedger/ClaimPipe/internal/validation"
	"github.com/MedLedger/ClaimPipe/internal/workflow"
)

// submitClaimHandler handles POST /claims/submit.
func (s *Server) submitClaimHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.submitClaimHandler: processing submission", "method", r.Method, "path", r.URL.Path)

	var submission models.ClaimSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		slog.Warn("Server.submitClaimHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := submission.Validate(); err != nil {
		slog.Warn("Server.submitClaimHandler: structural validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	claim := models.Claim{
		ClaimSubmission: submission,
		ClaimID:         util.GenerateClaimID(),
		Status:          models.ClaimStatusPending,
		CreatedAt:       time.Now(),
	}

	if errs := validation.ValidateClaim(&claim); len(errs) > 0 {
		slog.Warn("Server.submitClaimHandler: claim validation failed", "errors", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.APIResponse{
			Status:  "error",
			Message: "Claim validation failed",
			Result:  map[string]interface{}{"errors": errs},
		})
		return
	}

	if err := s.st.SaveClaim(claim); err != nil {
		slog.Error("Server.submitClaimHandler: failed to save claim", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save claim"))
		return
	}

	slog.Info("Server.submitClaimHandler: claim submitted", "claimID", claim.ClaimID)
	writeJSONResponse(w, http.StatusCreated, models.Success(claim))
}

// listClaimsHandler handles GET /claims with an optional status filter.
func (s *Server) listClaimsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.ClaimStatus(r.URL.Query().Get("status"))
	if status != "" && !models.IsValidClaimStatus(status) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown claim status"))
		return
	}

	claims, err := s.st.ListClaims(status)
	if err != nil {
		slog.Error("Server.listClaimsHandler: failed to list claims", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch claims"))
		return
	}
	slog.Debug("Server.listClaimsHandler: claims fetched", "count", len(claims))
	writeJSONResponse(w, http.StatusOK, models.Success(claims))
}

// claimDetailHandler handles GET /claims/{id}.
func (s *Server) claimDetailHandler(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.loadClaim(w, r)
	if !ok {
		return
	}

	decisionLog, err := s.st.GetDecisionLog(claim.ClaimID)
	if err != nil {
		slog.Error("Server.claimDetailHandler: failed to load decision log", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch claim details"))
		return
	}
	exceptionLogs, err := s.st.GetExceptionLogs(claim.ClaimID)
	if err != nil {
		slog.Error("Server.claimDetailHandler: failed to load exception logs", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch claim details"))
		return
	}

	detail := models.ClaimDetail{
		Claim:         *claim,
		DecisionLog:   decisionLog,
		ExceptionLogs: exceptionLogs,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(detail))
}

// processClaimHandler handles POST /claims/{id}/process. It runs fraud
// screening, exception handling, and the agent workflow, then persists the
// decision and updated claim status.
func (s *Server) processClaimHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claim, ok := s.loadClaim(w, r)
	if !ok {
		return
	}

	if claim.Status != models.ClaimStatusPending {
		slog.Warn("Server.processClaimHandler: claim not pending", "claimID", claim.ClaimID, "status", claim.Status)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Claim is not in pending status"))
		return
	}

	fraudAnalysis, err := s.fraud.AnalyzeFraudRisk(*claim)
	if err != nil {
		slog.Error("Server.processClaimHandler: fraud analysis failed", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Processing failed"))
		return
	}

	for _, exc := range s.exceptions.DetectExceptions(*claim) {
		if _, err := s.exceptions.HandleException(*claim, exc.Type, exc.Details); err != nil {
			slog.Error("Server.processClaimHandler: exception handling failed", "error", err,
				"claimID", claim.ClaimID, "type", exc.Type)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Processing failed"))
			return
		}
	}

	state := s.engine.Run(r.Context(), claim.ClaimID, workflow.BuildClaimData(*claim))

	decision := state.FinalDecision
	if decision == "" {
		decision = models.DecisionReview
	}
	decisionLog := models.DecisionLog{
		ClaimID:         claim.ClaimID,
		Decision:        decision,
		ConfidenceScore: state.ConfidenceScore,
		ReasoningText:   workflow.FormatAgentReasoning(state),
		FraudScore:      fraudAnalysis.FraudScore,
		CreatedAt:       time.Now(),
	}

	// Fraud flags dominate the stored claim status.
	switch {
	case fraudAnalysis.IsFlagged:
		claim.Status = models.ClaimStatusFraudFlagged
	case decision == models.DecisionApprove:
		claim.Status = models.ClaimStatusApproved
	case decision == models.DecisionDeny:
		claim.Status = models.ClaimStatusDenied
	default:
		claim.Status = models.ClaimStatusPendingReview
	}
	processedAt := time.Now()
	claim.ProcessedAt = &processedAt

	if err := s.st.SaveClaim(*claim); err != nil {
		slog.Error("Server.processClaimHandler: failed to save claim", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Processing failed"))
		return
	}
	if err := s.st.SaveDecisionLog(decisionLog); err != nil {
		slog.Error("Server.processClaimHandler: failed to save decision log", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Processing failed"))
		return
	}
	if err := s.st.SaveAgentReports(claim.ClaimID, state.AgentReports); err != nil {
		slog.Error("Server.processClaimHandler: failed to save agent reports", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Processing failed"))
		return
	}

	response := models.ProcessClaimResponse{
		ClaimID:               claim.ClaimID,
		Status:                claim.Status,
		Decision:              decision,
		ConfidenceScore:       decisionLog.ConfidenceScore,
		ReasoningText:         decisionLog.ReasoningText,
		FraudScore:            fraudAnalysis.FraudScore,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
		AgentReports:          state.AgentReports,
	}
	slog.Info("Server.processClaimHandler: claim processed", "claimID", claim.ClaimID,
		"decision", decision, "status", claim.Status)
	writeJSONResponse(w, http.StatusOK, models.Success(response))
}

// fraudAnalysisHandler handles GET /claims/{id}/fraud-analysis.
func (s *Server) fraudAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.loadClaim(w, r)
	if !ok {
		return
	}

	analysis, err := s.fraud.AnalyzeFraudRisk(*claim)
	if err != nil {
		slog.Error("Server.fraudAnalysisHandler: analysis failed", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Fraud analysis failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(analysis))
}

// handleExceptionHandler handles POST /claims/{id}/handle-exception.
func (s *Server) handleExceptionHandler(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.loadClaim(w, r)
	if !ok {
		return
	}

	exceptionType := r.URL.Query().Get("exception_type")
	if exceptionType == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: exception_type"))
		return
	}
	details := r.URL.Query().Get("exception_details")

	result, err := s.exceptions.HandleException(*claim, exceptions.ExceptionType(exceptionType), details)
	if err != nil {
		slog.Error("Server.handleExceptionHandler: handling failed", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to handle exception"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// agentTimelineHandler handles GET /claims/{id}/agent-timeline.
func (s *Server) agentTimelineHandler(w http.ResponseWriter, r *http.Request) {
	claim, reports, ok := s.loadAgentReports(w, r)
	if !ok {
		return
	}

	entries := make([]models.AgentTimelineEntry, 0, len(reports))
	for _, report := range reports {
		entries = append(entries, models.AgentTimelineEntry{
			Agent:      report.AgentName,
			Status:     report.Status,
			Duration:   report.DurationSeconds,
			Result:     report.Result,
			Confidence: report.ConfidenceScore,
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.AgentTimelineResponse{
		ClaimID: claim.ClaimID,
		Agents:  entries,
	}))
}

// agentReasoningHandler handles GET /claims/{id}/agent-reasoning.
func (s *Server) agentReasoningHandler(w http.ResponseWriter, r *http.Request) {
	claim, reports, ok := s.loadAgentReports(w, r)
	if !ok {
		return
	}

	reasoning := make(map[string][]models.ReasoningStep, len(reports))
	for _, report := range reports {
		reasoning[report.AgentName] = report.ReasoningSteps
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.AgentReasoningResponse{
		ClaimID:        claim.ClaimID,
		AgentReasoning: reasoning,
	}))
}

// toolUsageHandler handles GET /claims/{id}/tool-usage.
func (s *Server) toolUsageHandler(w http.ResponseWriter, r *http.Request) {
	claim, reports, ok := s.loadAgentReports(w, r)
	if !ok {
		return
	}

	var usage []models.ToolUsageEntry
	for _, report := range reports {
		for _, tool := range report.ToolsUsed {
			usage = append(usage, models.ToolUsageEntry{
				Agent:   report.AgentName,
				Tool:    tool.ToolName,
				Result:  tool.Result,
				Success: tool.Success,
			})
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.ToolUsageResponse{
		ClaimID:   claim.ClaimID,
		ToolUsage: usage,
	}))
}

// dashboardMetricsHandler handles GET /dashboard/metrics.
func (s *Server) dashboardMetricsHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := s.st.ListClaims("")
	if err != nil {
		slog.Error("Server.dashboardMetricsHandler: failed to list claims", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute metrics"))
		return
	}

	var metrics models.DashboardMetrics
	metrics.TotalClaims = len(claims)
	var processedCount int
	var totalProcessingSecs float64
	for _, c := range claims {
		switch c.Status {
		case models.ClaimStatusApproved:
			metrics.ApprovedCount++
		case models.ClaimStatusDenied:
			metrics.DeniedCount++
		case models.ClaimStatusPendingReview:
			metrics.PendingReviewCount++
		case models.ClaimStatusFraudFlagged:
			metrics.FraudFlaggedCount++
		}
		if c.ProcessedAt != nil {
			processedCount++
			totalProcessingSecs += c.ProcessedAt.Sub(c.CreatedAt).Seconds()
		}
	}
	if metrics.TotalClaims > 0 {
		metrics.ApprovalRate = float64(metrics.ApprovedCount) / float64(metrics.TotalClaims) * 100
	}
	if processedCount > 0 {
		metrics.AvgProcessingTimeSecs = totalProcessingSecs / float64(processedCount)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(metrics))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loadClaim resolves the {id} path value to a stored claim, writing the error
// response itself when the claim cannot be served.
func (s *Server) loadClaim(w http.ResponseWriter, r *http.Request) (*models.Claim, bool) {
	claimID := r.PathValue("id")
	claim, err := s.st.GetClaim(claimID)
	if err != nil {
		slog.Error("Server.loadClaim: failed to load claim", "error", err, "claimID", claimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch claim"))
		return nil, false
	}
	if claim == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Claim not found"))
		return nil, false
	}
	return claim, true
}

// loadAgentReports resolves the claim and its stored agent reports.
func (s *Server) loadAgentReports(w http.ResponseWriter, r *http.Request) (*models.Claim, []models.AgentReport, bool) {
	claim, ok := s.loadClaim(w, r)
	if !ok {
		return nil, nil, false
	}
	reports, err := s.st.GetAgentReports(claim.ClaimID)
	if err != nil {
		slog.Error("Server.loadAgentReports: failed to load reports", "error", err, "claimID", claim.ClaimID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch agent reports"))
		return nil, nil, false
	}
	if reports == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Claim has not been processed yet"))
		return nil, nil, false
	}
	return claim, reports, true
}

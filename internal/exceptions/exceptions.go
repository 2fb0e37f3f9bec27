// Package exceptions implements exception detection and learning-based
// resolution for claim processing.
//
// When an exception type has been resolved before, the most recent resolution
// is reused automatically; first occurrences are escalated and logged so
// future cases can learn from them.
package exceptions

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/validation"
)

// ExceptionType identifies a category of processing exception.
type ExceptionType string

const (
	ExceptionMissingReferral      ExceptionType = "MISSING_REFERRAL"
	ExceptionCodeMismatch         ExceptionType = "CODE_MISMATCH"
	ExceptionMissingAuthorization ExceptionType = "MISSING_AUTHORIZATION"
	ExceptionInvalidProvider      ExceptionType = "INVALID_PROVIDER"
	ExceptionCoverageExpired      ExceptionType = "COVERAGE_EXPIRED"
	ExceptionDuplicateClaim       ExceptionType = "DUPLICATE_CLAIM"
	ExceptionAmountLimitExceeded  ExceptionType = "AMOUNT_LIMIT_EXCEEDED"
	ExceptionUnsupportedProcedure ExceptionType = "UNSUPPORTED_PROCEDURE"
)

// Resolution outcomes for handled exceptions.
const (
	ResolutionAutoResolved = "auto_resolved"
	ResolutionEscalated    = "escalated"
)

// DetectedException describes an exception found while screening a claim.
type DetectedException struct {
	Type    ExceptionType `json:"type"`
	Details string        `json:"details"`
	ClaimID string        `json:"claim_id"`
}

// HandlingResult describes how an exception was resolved.
type HandlingResult struct {
	Resolution  string `json:"resolution"` // auto_resolved or escalated
	Action      string `json:"action"`
	LearnedFrom string `json:"learned_from,omitempty"`
	Message     string `json:"message"`
	Confidence  string `json:"confidence"` // high or medium
}

// Statistics summarizes exception volume and learning effectiveness.
type Statistics struct {
	TotalExceptions    int            `json:"total_exceptions"`
	LearnedResolutions int            `json:"learned_resolutions"`
	ExceptionTypes     map[string]int `json:"exception_types"`
	LearningRate       float64        `json:"learning_rate"`
}

// referralRequiredProcedures lists CPT codes that typically require a referral.
var referralRequiredProcedures = map[string]bool{
	"27447": true, // Knee arthroplasty
	"73721": true, // MRI lower extremity
	"92004": true, // Ophthalmological examination
}

// procedureLimits maps CPT codes to policy amount limits in USD.
var procedureLimits = map[string]float64{
	"99213": 500,
	"99214": 800,
	"99215": 1200,
	"27447": 25000,
	"73721": 2000,
	"92004": 500,
}

// defaultProcedureLimit applies to procedures without an explicit limit.
const defaultProcedureLimit = 50000.0

// initialResolutions maps exception types to first-occurrence resolution actions.
var initialResolutions = map[ExceptionType]string{
	ExceptionMissingReferral:      "Request referral documentation from provider",
	ExceptionCodeMismatch:         "Review diagnosis and procedure codes for accuracy",
	ExceptionMissingAuthorization: "Obtain prior authorization before processing",
	ExceptionInvalidProvider:      "Verify provider credentials and network status",
	ExceptionAmountLimitExceeded:  "Review policy limits and justify amount",
	ExceptionUnsupportedProcedure: "Verify procedure coverage under current policy",
}

// fallbackResolution applies to exception types without a template.
const fallbackResolution = "Escalate to senior claims adjudicator"

// Service detects and resolves claim processing exceptions.
type Service struct {
	store store.Store
}

// NewService creates an exception handling service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// DetectExceptions runs all detection rules against a claim and returns any matches.
func (s *Service) DetectExceptions(claim models.Claim) []DetectedException {
	var detected []DetectedException

	checks := []struct {
		exceptionType ExceptionType
		check         func(models.Claim) string
	}{
		{ExceptionMissingReferral, checkMissingReferral},
		{ExceptionCodeMismatch, checkCodeMismatch},
		{ExceptionMissingAuthorization, checkMissingAuthorization},
		{ExceptionInvalidProvider, checkInvalidProvider},
		{ExceptionAmountLimitExceeded, checkAmountLimit},
		{ExceptionUnsupportedProcedure, checkUnsupportedProcedure},
	}

	for _, rule := range checks {
		if details := rule.check(claim); details != "" {
			detected = append(detected, DetectedException{
				Type:    rule.exceptionType,
				Details: details,
				ClaimID: claim.ClaimID,
			})
		}
	}

	if len(detected) > 0 {
		slog.Debug("Service.DetectExceptions: exceptions found", "claimID", claim.ClaimID, "count", len(detected))
	}
	return detected
}

// HandleException resolves an exception, reusing the most recent resolution for
// the same exception type when one exists. Every handled exception is logged so
// later cases can learn from it.
func (s *Service) HandleException(claim models.Claim, exceptionType ExceptionType, details string) (HandlingResult, error) {
	similar, err := s.store.FindSimilarExceptions(string(exceptionType))
	if err != nil {
		return HandlingResult{}, fmt.Errorf("failed to look up similar exceptions for %s: %w", claim.ClaimID, err)
	}

	if len(similar) > 0 {
		// Learned resolution from the most recent similar case.
		latest := similar[0]
		log := models.ExceptionLog{
			ClaimID:           claim.ClaimID,
			ExceptionType:     string(exceptionType),
			ResolutionAction:  latest.ResolutionAction,
			LearnedFromCaseID: latest.ClaimID,
			CreatedAt:         time.Now(),
		}
		if err := s.store.SaveExceptionLog(log); err != nil {
			return HandlingResult{}, fmt.Errorf("failed to save exception log for %s: %w", claim.ClaimID, err)
		}
		slog.Info("Service.HandleException: auto-resolved from prior case",
			"claimID", claim.ClaimID, "type", exceptionType, "learnedFrom", latest.ClaimID)
		return HandlingResult{
			Resolution:  ResolutionAutoResolved,
			Action:      latest.ResolutionAction,
			LearnedFrom: latest.ClaimID,
			Message:     fmt.Sprintf("Learned from Case #%s: %s", latest.ClaimID, latest.ResolutionAction),
			Confidence:  "high",
		}, nil
	}

	// First occurrence: escalate and record for future learning.
	action := initialResolution(exceptionType)
	log := models.ExceptionLog{
		ClaimID:          claim.ClaimID,
		ExceptionType:    string(exceptionType),
		ResolutionAction: action,
		CreatedAt:        time.Now(),
	}
	if err := s.store.SaveExceptionLog(log); err != nil {
		return HandlingResult{}, fmt.Errorf("failed to save exception log for %s: %w", claim.ClaimID, err)
	}
	slog.Info("Service.HandleException: new exception type escalated",
		"claimID", claim.ClaimID, "type", exceptionType)
	return HandlingResult{
		Resolution: ResolutionEscalated,
		Action:     action,
		Message:    fmt.Sprintf("New exception type detected. Escalated for human review: %s", action),
		Confidence: "medium",
	}, nil
}

// initialResolution returns the first-occurrence resolution action for an exception type.
func initialResolution(exceptionType ExceptionType) string {
	if action, ok := initialResolutions[exceptionType]; ok {
		return action
	}
	return fallbackResolution
}

func checkMissingReferral(claim models.Claim) string {
	if !referralRequiredProcedures[claim.ProcedureCode] {
		return ""
	}
	// Simulated referral check: notes mentioning a specialist without an
	// attached referral document trigger the exception.
	if strings.Contains(strings.ToLower(claim.Notes), "specialist") {
		return fmt.Sprintf("Referral required for procedure %s but not provided", claim.ProcedureCode)
	}
	return ""
}

func checkCodeMismatch(claim models.Claim) string {
	if !validation.CompatibleCodes(claim.DiagnosisCode, claim.ProcedureCode) {
		return fmt.Sprintf("Procedure %s does not match diagnosis %s", claim.ProcedureCode, claim.DiagnosisCode)
	}
	return ""
}

func checkMissingAuthorization(claim models.Claim) string {
	if validation.RequiresPriorAuthorization(claim.ProcedureCode) && claim.ClaimAmount > 10000 {
		return fmt.Sprintf("Prior authorization required for procedure %s over $10,000", claim.ProcedureCode)
	}
	return ""
}

func checkInvalidProvider(claim models.Claim) string {
	if claim.ProviderNPI == "" {
		return "NPI number missing for provider verification"
	}
	if len(claim.ProviderNPI) != models.NPILength {
		return fmt.Sprintf("Invalid NPI format: %s", claim.ProviderNPI)
	}
	return ""
}

func checkAmountLimit(claim models.Claim) string {
	limit, ok := procedureLimits[claim.ProcedureCode]
	if !ok {
		limit = defaultProcedureLimit
	}
	if claim.ClaimAmount > limit {
		return fmt.Sprintf("Claim amount $%.2f exceeds policy limit $%.2f for procedure %s",
			claim.ClaimAmount, limit, claim.ProcedureCode)
	}
	return ""
}

func checkUnsupportedProcedure(claim models.Claim) string {
	if !validation.ValidCPTCode(claim.ProcedureCode) {
		return fmt.Sprintf("Procedure code %s is not covered under current policy", claim.ProcedureCode)
	}
	return ""
}

// GetStatistics aggregates exception counts and the share of learned resolutions.
func (s *Service) GetStatistics(claimIDs []string) (Statistics, error) {
	stats := Statistics{ExceptionTypes: make(map[string]int)}

	for _, claimID := range claimIDs {
		logs, err := s.store.GetExceptionLogs(claimID)
		if err != nil {
			return stats, fmt.Errorf("failed to load exception logs for %s: %w", claimID, err)
		}
		for _, log := range logs {
			stats.TotalExceptions++
			stats.ExceptionTypes[log.ExceptionType]++
			if log.LearnedFromCaseID != "" {
				stats.LearnedResolutions++
			}
		}
	}

	if stats.TotalExceptions > 0 {
		stats.LearningRate = float64(stats.LearnedResolutions) / float64(stats.TotalExceptions) * 100
	}
	return stats, nil
}

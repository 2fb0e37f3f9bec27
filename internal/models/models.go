// Package models defines the core data structures for ClaimPipe.
//
// It includes types for claim submissions, processing decisions, and audit logs, which are shared across modules.
package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ClaimStatus defines the lifecycle status of a submitted claim.
type ClaimStatus string

const (
	// ClaimStatusPending marks a claim awaiting processing.
	ClaimStatusPending ClaimStatus = "PENDING"
	// ClaimStatusApproved marks a claim approved for payment.
	ClaimStatusApproved ClaimStatus = "APPROVED"
	// ClaimStatusDenied marks a denied claim.
	ClaimStatusDenied ClaimStatus = "DENIED"
	// ClaimStatusPendingReview marks a claim escalated for human review.
	ClaimStatusPendingReview ClaimStatus = "PENDING_REVIEW"
	// ClaimStatusFraudFlagged marks a claim flagged by fraud screening.
	ClaimStatusFraudFlagged ClaimStatus = "FRAUD_FLAGGED"
)

// DecisionType defines the terminal decision produced by adjudication.
type DecisionType string

const (
	// DecisionApprove approves the claim for payment.
	DecisionApprove DecisionType = "APPROVE"
	// DecisionDeny denies the claim.
	DecisionDeny DecisionType = "DENY"
	// DecisionReview escalates the claim for human review.
	DecisionReview DecisionType = "REVIEW"
)

// Validation constants for input validation
const (
	// MaxNameLength defines the maximum allowed length for patient and provider names
	MaxNameLength = 100
	// MaxPatientIDLength defines the maximum allowed length for patient identifiers
	MaxPatientIDLength = 50
	// MaxPolicyNumberLength defines the maximum allowed length for policy numbers
	MaxPolicyNumberLength = 50
	// MaxNotesLength defines the maximum allowed length for free-text notes
	MaxNotesLength = 500
	// NPILength defines the exact digit count of a National Provider Identifier
	NPILength = 10
	// MaxClaimAmount defines the maximum accepted claim amount in USD
	MaxClaimAmount = 100000.0
)

// Error variables for better error handling and testability
var (
	ErrEmptyPatientName     = errors.New("patient name is required")
	ErrEmptyPatientID       = errors.New("patient ID is required")
	ErrEmptyInsurer         = errors.New("insurance provider is required")
	ErrEmptyPolicyNumber    = errors.New("policy number is required")
	ErrEmptyDiagnosisCode   = errors.New("diagnosis code is required")
	ErrEmptyProcedureCode   = errors.New("procedure code is required")
	ErrEmptyProviderName    = errors.New("provider name is required")
	ErrNonPositiveAmount    = errors.New("claim amount must be greater than zero")
	ErrAmountExceedsLimit   = errors.New("claim amount exceeds maximum limit")
	ErrEmptyServiceDate     = errors.New("service date is required")
	ErrInvalidNPIFormat     = errors.New("NPI format is invalid (must be 10 digits)")
	ErrNameTooLong          = errors.New("name exceeds maximum length")
	ErrNotesTooLong         = errors.New("notes exceed maximum length")
	ErrUnknownClaimStatus   = errors.New("unknown claim status")
	ErrUnknownDecisionType  = errors.New("unknown decision type")
	ErrConfidenceOutOfRange = errors.New("confidence score must be within [0, 100]")
)

var npiPattern = regexp.MustCompile(`^\d{10}$`)

// IsValidClaimStatus checks if the given claim status is supported.
func IsValidClaimStatus(s ClaimStatus) bool {
	switch s {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusDenied, ClaimStatusPendingReview, ClaimStatusFraudFlagged:
		return true
	default:
		return false
	}
}

// IsValidDecisionType checks if the given decision type is supported.
func IsValidDecisionType(d DecisionType) bool {
	switch d {
	case DecisionApprove, DecisionDeny, DecisionReview:
		return true
	default:
		return false
	}
}

// ClaimSubmission represents the fields a caller supplies when submitting a claim.
type ClaimSubmission struct {
	PatientName       string  `json:"patient_name"`
	PatientID         string  `json:"patient_id"`
	InsuranceProvider string  `json:"insurance_provider"`
	PolicyNumber      string  `json:"policy_number"`
	DiagnosisCode     string  `json:"diagnosis_code"` // ICD-10 diagnosis code
	ProcedureCode     string  `json:"procedure_code"` // CPT procedure code
	ClaimAmount       float64 `json:"claim_amount"`   // claim amount in USD
	ServiceDate       string  `json:"service_date"`   // YYYY-MM-DD
	ProviderName      string  `json:"provider_name"`
	ProviderNPI       string  `json:"provider_npi,omitempty"` // National Provider Identifier, optional
	Notes             string  `json:"notes,omitempty"`
}

// Validate performs structural validation on a ClaimSubmission.
// Medical code and compatibility checks are handled by the validation package.
func (cs *ClaimSubmission) Validate() error {
	if strings.TrimSpace(cs.PatientName) == "" {
		return ErrEmptyPatientName
	}
	if len(cs.PatientName) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(cs.PatientID) == "" {
		return ErrEmptyPatientID
	}
	if strings.TrimSpace(cs.InsuranceProvider) == "" {
		return ErrEmptyInsurer
	}
	if strings.TrimSpace(cs.PolicyNumber) == "" {
		return ErrEmptyPolicyNumber
	}
	if strings.TrimSpace(cs.DiagnosisCode) == "" {
		return ErrEmptyDiagnosisCode
	}
	if strings.TrimSpace(cs.ProcedureCode) == "" {
		return ErrEmptyProcedureCode
	}
	if cs.ClaimAmount <= 0 {
		return ErrNonPositiveAmount
	}
	if cs.ClaimAmount > MaxClaimAmount {
		return ErrAmountExceedsLimit
	}
	if strings.TrimSpace(cs.ServiceDate) == "" {
		return ErrEmptyServiceDate
	}
	if strings.TrimSpace(cs.ProviderName) == "" {
		return ErrEmptyProviderName
	}
	if len(cs.ProviderName) > MaxNameLength {
		return ErrNameTooLong
	}
	if cs.ProviderNPI != "" && !npiPattern.MatchString(strings.TrimSpace(cs.ProviderNPI)) {
		return ErrInvalidNPIFormat
	}
	if len(cs.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// Claim represents a stored claim with its processing status.
type Claim struct {
	ClaimSubmission
	ClaimID     string      `json:"claim_id"`
	Status      ClaimStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
}

// DecisionLog records the terminal decision for a processed claim.
type DecisionLog struct {
	ClaimID         string       `json:"claim_id"`
	Decision        DecisionType `json:"decision"`
	ConfidenceScore float64      `json:"confidence_score"` // 0-100
	ReasoningText   string       `json:"reasoning_text"`
	FraudScore      float64      `json:"fraud_score"` // 0-100
	CreatedAt       time.Time    `json:"created_at"`
}

// ExceptionLog records a detected processing exception and its resolution.
type ExceptionLog struct {
	ClaimID           string    `json:"claim_id"`
	ExceptionType     string    `json:"exception_type"`
	ResolutionAction  string    `json:"resolution_action"`
	LearnedFromCaseID string    `json:"learned_from_case_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// FraudAnalysis summarizes fraud screening for a claim.
type FraudAnalysis struct {
	ClaimID         string              `json:"claim_id"`
	FraudScore      float64             `json:"fraud_score"` // 0-100
	RiskFactors     []string            `json:"risk_factors"`
	IsFlagged       bool                `json:"is_flagged"`
	AnalysisDetails map[string]CheckLog `json:"analysis_details"`
}

// CheckLog holds the score contribution and factors of a single fraud check.
type CheckLog struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// DashboardMetrics aggregates claim counts for the dashboard overview.
type DashboardMetrics struct {
	TotalClaims           int     `json:"total_claims"`
	ApprovedCount         int     `json:"approved_count"`
	DeniedCount           int     `json:"denied_count"`
	PendingReviewCount    int     `json:"pending_review_count"`
	FraudFlaggedCount     int     `json:"fraud_flagged_count"`
	ApprovalRate          float64 `json:"approval_rate"`
	AvgProcessingTimeSecs float64 `json:"avg_processing_time_seconds"`
}

// ProcessClaimResponse is returned by the claim processing endpoint.
type ProcessClaimResponse struct {
	ClaimID               string        `json:"claim_id"`
	Status                ClaimStatus   `json:"status"`
	Decision              DecisionType  `json:"decision"`
	ConfidenceScore       float64       `json:"confidence_score"`
	ReasoningText         string        `json:"reasoning_text"`
	FraudScore            float64       `json:"fraud_score"`
	ProcessingTimeSeconds float64       `json:"processing_time_seconds"`
	AgentReports          []AgentReport `json:"agent_reports,omitempty"`
}

// APIResponse is the standard JSON envelope for API responses.
type APIResponse struct {
	Status  string      `json:"status"` // "ok" or "error"
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success builds a successful API response wrapping the given result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage builds a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error builds an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

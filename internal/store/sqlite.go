// Package store provides storage backends for ClaimPipe.
//
// This file implements an SQLite-backed store for claims, decisions, and audit logs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/MedLedger/ClaimPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveClaim inserts a new claim or updates an existing one by claim ID.
func (s *SQLiteStore) SaveClaim(c models.Claim) error {
	_, err := s.db.Exec(`INSERT INTO claims
		(claim_id, patient_name, patient_id, insurance_provider, policy_number,
		 diagnosis_code, procedure_code, claim_amount, service_date,
		 provider_name, provider_npi, notes, status, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
		 status = excluded.status, processed_at = excluded.processed_at`,
		c.ClaimID, c.PatientName, c.PatientID, c.InsuranceProvider, c.PolicyNumber,
		c.DiagnosisCode, c.ProcedureCode, c.ClaimAmount, c.ServiceDate,
		c.ProviderName, nilIfEmpty(c.ProviderNPI), nilIfEmpty(c.Notes), c.Status, c.CreatedAt, c.ProcessedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClaim failed", "error", err, "claimID", c.ClaimID)
		return fmt.Errorf("failed to save claim %s: %w", c.ClaimID, err)
	}
	slog.Debug("SQLiteStore SaveClaim succeeded", "claimID", c.ClaimID, "status", c.Status)
	return nil
}

// GetClaim retrieves a claim by ID, returning nil when not found.
func (s *SQLiteStore) GetClaim(claimID string) (*models.Claim, error) {
	row := s.db.QueryRow(selectClaimColumns+` FROM claims WHERE claim_id = ?`, claimID)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("SQLiteStore GetClaim failed", "error", err, "claimID", claimID)
		return nil, err
	}
	return &claim, nil
}

// ListClaims returns all claims, newest first, optionally filtered by status.
func (s *SQLiteStore) ListClaims(status models.ClaimStatus) ([]models.Claim, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query(selectClaimColumns + ` FROM claims ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.Query(selectClaimColumns+` FROM claims WHERE status = ? ORDER BY created_at DESC`, status)
	}
	if err != nil {
		slog.Error("SQLiteStore ListClaims query failed", "error", err)
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	return collectClaims(rows)
}

// ClaimsByPatient returns all claims for a patient, newest first.
func (s *SQLiteStore) ClaimsByPatient(patientID string) ([]models.Claim, error) {
	rows, err := s.db.Query(selectClaimColumns+` FROM claims WHERE patient_id = ? ORDER BY created_at DESC`, patientID)
	if err != nil {
		slog.Error("SQLiteStore ClaimsByPatient query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query claims for patient %s: %w", patientID, err)
	}
	return collectClaims(rows)
}

// ClaimsByProvider returns all claims for a provider, newest first.
// Provider names match case-insensitively, as in the other backends.
func (s *SQLiteStore) ClaimsByProvider(providerName string) ([]models.Claim, error) {
	rows, err := s.db.Query(selectClaimColumns+` FROM claims WHERE LOWER(provider_name) = LOWER(?) ORDER BY created_at DESC`, providerName)
	if err != nil {
		slog.Error("SQLiteStore ClaimsByProvider query failed", "error", err, "provider", providerName)
		return nil, fmt.Errorf("failed to query claims for provider %s: %w", providerName, err)
	}
	return collectClaims(rows)
}

// SaveDecisionLog stores the decision log for a claim.
func (s *SQLiteStore) SaveDecisionLog(log models.DecisionLog) error {
	_, err := s.db.Exec(`INSERT INTO decision_logs
		(claim_id, decision, confidence_score, reasoning_text, fraud_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
		 decision = excluded.decision, confidence_score = excluded.confidence_score,
		 reasoning_text = excluded.reasoning_text, fraud_score = excluded.fraud_score,
		 created_at = excluded.created_at`,
		log.ClaimID, log.Decision, log.ConfidenceScore, log.ReasoningText, log.FraudScore, log.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveDecisionLog failed", "error", err, "claimID", log.ClaimID)
		return fmt.Errorf("failed to save decision log for %s: %w", log.ClaimID, err)
	}
	return nil
}

// GetDecisionLog retrieves the decision log for a claim, returning nil when not found.
func (s *SQLiteStore) GetDecisionLog(claimID string) (*models.DecisionLog, error) {
	row := s.db.QueryRow(`SELECT claim_id, decision, confidence_score, reasoning_text, fraud_score, created_at
		FROM decision_logs WHERE claim_id = ?`, claimID)
	var log models.DecisionLog
	err := row.Scan(&log.ClaimID, &log.Decision, &log.ConfidenceScore, &log.ReasoningText, &log.FraudScore, &log.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetDecisionLog failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to get decision log for %s: %w", claimID, err)
	}
	return &log, nil
}

// SaveExceptionLog appends an exception log entry.
func (s *SQLiteStore) SaveExceptionLog(log models.ExceptionLog) error {
	_, err := s.db.Exec(`INSERT INTO exception_logs
		(claim_id, exception_type, resolution_action, learned_from_case_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		log.ClaimID, log.ExceptionType, log.ResolutionAction, nilIfEmpty(log.LearnedFromCaseID), log.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveExceptionLog failed", "error", err, "claimID", log.ClaimID)
		return fmt.Errorf("failed to save exception log for %s: %w", log.ClaimID, err)
	}
	return nil
}

// GetExceptionLogs returns all exception logs for a claim, oldest first.
func (s *SQLiteStore) GetExceptionLogs(claimID string) ([]models.ExceptionLog, error) {
	rows, err := s.db.Query(`SELECT claim_id, exception_type, resolution_action, learned_from_case_id, created_at
		FROM exception_logs WHERE claim_id = ? ORDER BY created_at ASC`, claimID)
	if err != nil {
		slog.Error("SQLiteStore GetExceptionLogs query failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to query exception logs for %s: %w", claimID, err)
	}
	return collectExceptionLogs(rows)
}

// FindSimilarExceptions returns past exceptions of the given type, newest first.
func (s *SQLiteStore) FindSimilarExceptions(exceptionType string) ([]models.ExceptionLog, error) {
	rows, err := s.db.Query(`SELECT claim_id, exception_type, resolution_action, learned_from_case_id, created_at
		FROM exception_logs WHERE exception_type = ? ORDER BY created_at DESC`, exceptionType)
	if err != nil {
		slog.Error("SQLiteStore FindSimilarExceptions query failed", "error", err, "type", exceptionType)
		return nil, fmt.Errorf("failed to query exceptions of type %s: %w", exceptionType, err)
	}
	return collectExceptionLogs(rows)
}

// SaveAgentReports stores the agent reports for a claim as a JSON document.
func (s *SQLiteStore) SaveAgentReports(claimID string, reports []models.AgentReport) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to marshal agent reports for %s: %w", claimID, err)
	}
	_, err = s.db.Exec(`INSERT INTO agent_reports (claim_id, reports_json, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
		 reports_json = excluded.reports_json, created_at = excluded.created_at`,
		claimID, string(data), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveAgentReports failed", "error", err, "claimID", claimID)
		return fmt.Errorf("failed to save agent reports for %s: %w", claimID, err)
	}
	return nil
}

// GetAgentReports retrieves the stored agent reports for a claim.
func (s *SQLiteStore) GetAgentReports(claimID string) ([]models.AgentReport, error) {
	row := s.db.QueryRow(`SELECT reports_json FROM agent_reports WHERE claim_id = ?`, claimID)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAgentReports failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to get agent reports for %s: %w", claimID, err)
	}
	var reports []models.AgentReport
	if err := json.Unmarshal([]byte(data), &reports); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent reports for %s: %w", claimID, err)
	}
	return reports, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

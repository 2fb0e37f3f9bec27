// Package store provides storage backends for ClaimPipe.
//
// This file implements a PostgreSQL-backed store for claims, decisions, and audit logs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/MedLedger/ClaimPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveClaim inserts a new claim or updates an existing one by claim ID.
func (s *PostgresStore) SaveClaim(c models.Claim) error {
	_, err := s.db.Exec(`INSERT INTO claims
		(claim_id, patient_name, patient_id, insurance_provider, policy_number,
		 diagnosis_code, procedure_code, claim_amount, service_date,
		 provider_name, provider_npi, notes, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (claim_id) DO UPDATE SET
		 status = EXCLUDED.status, processed_at = EXCLUDED.processed_at`,
		c.ClaimID, c.PatientName, c.PatientID, c.InsuranceProvider, c.PolicyNumber,
		c.DiagnosisCode, c.ProcedureCode, c.ClaimAmount, c.ServiceDate,
		c.ProviderName, nilIfEmpty(c.ProviderNPI), nilIfEmpty(c.Notes), c.Status, c.CreatedAt, c.ProcessedAt)
	if err != nil {
		slog.Error("PostgresStore SaveClaim failed", "error", err, "claimID", c.ClaimID)
		return fmt.Errorf("failed to save claim %s: %w", c.ClaimID, err)
	}
	return nil
}

// GetClaim retrieves a claim by ID, returning nil when not found.
func (s *PostgresStore) GetClaim(claimID string) (*models.Claim, error) {
	row := s.db.QueryRow(selectClaimColumns+` FROM claims WHERE claim_id = $1`, claimID)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("PostgresStore GetClaim failed", "error", err, "claimID", claimID)
		return nil, err
	}
	return &claim, nil
}

// ListClaims returns all claims, newest first, optionally filtered by status.
func (s *PostgresStore) ListClaims(status models.ClaimStatus) ([]models.Claim, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query(selectClaimColumns + ` FROM claims ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.Query(selectClaimColumns+` FROM claims WHERE status = $1 ORDER BY created_at DESC`, status)
	}
	if err != nil {
		slog.Error("PostgresStore ListClaims query failed", "error", err)
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	return collectClaims(rows)
}

// ClaimsByPatient returns all claims for a patient, newest first.
func (s *PostgresStore) ClaimsByPatient(patientID string) ([]models.Claim, error) {
	rows, err := s.db.Query(selectClaimColumns+` FROM claims WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		slog.Error("PostgresStore ClaimsByPatient query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query claims for patient %s: %w", patientID, err)
	}
	return collectClaims(rows)
}

// ClaimsByProvider returns all claims for a provider, newest first.
// Provider names match case-insensitively, as in the other backends.
func (s *PostgresStore) ClaimsByProvider(providerName string) ([]models.Claim, error) {
	rows, err := s.db.Query(selectClaimColumns+` FROM claims WHERE LOWER(provider_name) = LOWER($1) ORDER BY created_at DESC`, providerName)
	if err != nil {
		slog.Error("PostgresStore ClaimsByProvider query failed", "error", err, "provider", providerName)
		return nil, fmt.Errorf("failed to query claims for provider %s: %w", providerName, err)
	}
	return collectClaims(rows)
}

// SaveDecisionLog stores the decision log for a claim.
func (s *PostgresStore) SaveDecisionLog(log models.DecisionLog) error {
	_, err := s.db.Exec(`INSERT INTO decision_logs
		(claim_id, decision, confidence_score, reasoning_text, fraud_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (claim_id) DO UPDATE SET
		 decision = EXCLUDED.decision, confidence_score = EXCLUDED.confidence_score,
		 reasoning_text = EXCLUDED.reasoning_text, fraud_score = EXCLUDED.fraud_score,
		 created_at = EXCLUDED.created_at`,
		log.ClaimID, log.Decision, log.ConfidenceScore, log.ReasoningText, log.FraudScore, log.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveDecisionLog failed", "error", err, "claimID", log.ClaimID)
		return fmt.Errorf("failed to save decision log for %s: %w", log.ClaimID, err)
	}
	return nil
}

// GetDecisionLog retrieves the decision log for a claim, returning nil when not found.
func (s *PostgresStore) GetDecisionLog(claimID string) (*models.DecisionLog, error) {
	row := s.db.QueryRow(`SELECT claim_id, decision, confidence_score, reasoning_text, fraud_score, created_at
		FROM decision_logs WHERE claim_id = $1`, claimID)
	var log models.DecisionLog
	err := row.Scan(&log.ClaimID, &log.Decision, &log.ConfidenceScore, &log.ReasoningText, &log.FraudScore, &log.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetDecisionLog failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to get decision log for %s: %w", claimID, err)
	}
	return &log, nil
}

// SaveExceptionLog appends an exception log entry.
func (s *PostgresStore) SaveExceptionLog(log models.ExceptionLog) error {
	_, err := s.db.Exec(`INSERT INTO exception_logs
		(claim_id, exception_type, resolution_action, learned_from_case_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		log.ClaimID, log.ExceptionType, log.ResolutionAction, nilIfEmpty(log.LearnedFromCaseID), log.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveExceptionLog failed", "error", err, "claimID", log.ClaimID)
		return fmt.Errorf("failed to save exception log for %s: %w", log.ClaimID, err)
	}
	return nil
}

// GetExceptionLogs returns all exception logs for a claim, oldest first.
func (s *PostgresStore) GetExceptionLogs(claimID string) ([]models.ExceptionLog, error) {
	rows, err := s.db.Query(`SELECT claim_id, exception_type, resolution_action, learned_from_case_id, created_at
		FROM exception_logs WHERE claim_id = $1 ORDER BY created_at ASC`, claimID)
	if err != nil {
		slog.Error("PostgresStore GetExceptionLogs query failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to query exception logs for %s: %w", claimID, err)
	}
	return collectExceptionLogs(rows)
}

// FindSimilarExceptions returns past exceptions of the given type, newest first.
func (s *PostgresStore) FindSimilarExceptions(exceptionType string) ([]models.ExceptionLog, error) {
	rows, err := s.db.Query(`SELECT claim_id, exception_type, resolution_action, learned_from_case_id, created_at
		FROM exception_logs WHERE exception_type = $1 ORDER BY created_at DESC`, exceptionType)
	if err != nil {
		slog.Error("PostgresStore FindSimilarExceptions query failed", "error", err, "type", exceptionType)
		return nil, fmt.Errorf("failed to query exceptions of type %s: %w", exceptionType, err)
	}
	return collectExceptionLogs(rows)
}

// SaveAgentReports stores the agent reports for a claim as a JSON document.
func (s *PostgresStore) SaveAgentReports(claimID string, reports []models.AgentReport) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to marshal agent reports for %s: %w", claimID, err)
	}
	_, err = s.db.Exec(`INSERT INTO agent_reports (claim_id, reports_json, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (claim_id) DO UPDATE SET
		 reports_json = EXCLUDED.reports_json, created_at = EXCLUDED.created_at`,
		claimID, string(data), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveAgentReports failed", "error", err, "claimID", claimID)
		return fmt.Errorf("failed to save agent reports for %s: %w", claimID, err)
	}
	return nil
}

// GetAgentReports retrieves the stored agent reports for a claim.
func (s *PostgresStore) GetAgentReports(claimID string) ([]models.AgentReport, error) {
	row := s.db.QueryRow(`SELECT reports_json FROM agent_reports WHERE claim_id = $1`, claimID)
	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAgentReports failed", "error", err, "claimID", claimID)
		return nil, fmt.Errorf("failed to get agent reports for %s: %w", claimID, err)
	}
	var reports []models.AgentReport
	if err := json.Unmarshal([]byte(data), &reports); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent reports for %s: %w", claimID, err)
	}
	return reports, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// selectClaimColumns is the shared column list for claim queries, matching scanClaim order.
const selectClaimColumns = `SELECT claim_id, patient_name, patient_id, insurance_provider, policy_number,
	diagnosis_code, procedure_code, claim_amount, service_date,
	provider_name, provider_npi, notes, status, created_at, processed_at`

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanClaim scans a Claim from a claims table row.
func scanClaim(row rowScanner) (models.Claim, error) {
	var c models.Claim
	var providerNPI, notes sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&c.ClaimID, &c.PatientName, &c.PatientID, &c.InsuranceProvider, &c.PolicyNumber,
		&c.DiagnosisCode, &c.ProcedureCode, &c.ClaimAmount, &c.ServiceDate,
		&c.ProviderName, &providerNPI, &notes, &c.Status, &c.CreatedAt, &processedAt,
	)
	if err != nil {
		return c, fmt.Errorf("scan claim failed: %w", err)
	}
	c.ProviderNPI = providerNPI.String
	c.Notes = notes.String
	if processedAt.Valid {
		c.ProcessedAt = &processedAt.Time
	}
	return c, nil
}

// scanExceptionLog scans an ExceptionLog from an exception_logs table row.
func scanExceptionLog(row rowScanner) (models.ExceptionLog, error) {
	var e models.ExceptionLog
	var learnedFrom sql.NullString
	err := row.Scan(&e.ClaimID, &e.ExceptionType, &e.ResolutionAction, &learnedFrom, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("scan exception log failed: %w", err)
	}
	e.LearnedFromCaseID = learnedFrom.String
	return e, nil
}

// collectClaims drains rows into a claim slice.
func collectClaims(rows *sql.Rows) ([]models.Claim, error) {
	defer rows.Close()
	var claims []models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// collectExceptionLogs drains rows into an exception log slice.
func collectExceptionLogs(rows *sql.Rows) ([]models.ExceptionLog, error) {
	defer rows.Close()
	var logs []models.ExceptionLog
	for rows.Next() {
		log, err := scanExceptionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

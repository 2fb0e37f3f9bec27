// Package store provides storage backends for ClaimPipe.
//
// It includes an in-memory store for tests and demos plus persistent SQLite
// and PostgreSQL implementations sharing a common Store interface.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// Store defines the persistence operations ClaimPipe modules depend on.
type Store interface {
	// SaveClaim inserts a new claim or updates an existing one by claim ID.
	SaveClaim(claim models.Claim) error

	// GetClaim retrieves a claim by ID, returning nil when not found.
	GetClaim(claimID string) (*models.Claim, error)

	// ListClaims returns all claims, newest first, optionally filtered by status ("" = all).
	ListClaims(status models.ClaimStatus) ([]models.Claim, error)

	// ClaimsByPatient returns all claims for a patient, newest first.
	ClaimsByPatient(patientID string) ([]models.Claim, error)

	// ClaimsByProvider returns all claims for a provider, newest first.
	ClaimsByProvider(providerName string) ([]models.Claim, error)

	// SaveDecisionLog appends a decision log entry.
	SaveDecisionLog(log models.DecisionLog) error

	// GetDecisionLog retrieves the decision log for a claim, returning nil when not found.
	GetDecisionLog(claimID string) (*models.DecisionLog, error)

	// SaveExceptionLog appends an exception log entry.
	SaveExceptionLog(log models.ExceptionLog) error

	// GetExceptionLogs returns all exception logs for a claim, oldest first.
	GetExceptionLogs(claimID string) ([]models.ExceptionLog, error)

	// FindSimilarExceptions returns past exceptions of the given type, newest first.
	FindSimilarExceptions(exceptionType string) ([]models.ExceptionLog, error)

	// SaveAgentReports stores the agent reports produced while processing a claim.
	SaveAgentReports(claimID string, reports []models.AgentReport) error

	// GetAgentReports retrieves the stored agent reports for a claim.
	GetAgentReports(claimID string) ([]models.AgentReport, error)

	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Postgres DSNs use
// URL or key=value form; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a thread-safe in-memory Store used in tests and single-run demos.
type InMemoryStore struct {
	mu         sync.RWMutex
	claims     map[string]models.Claim
	decisions  map[string]models.DecisionLog
	exceptions []models.ExceptionLog
	reports    map[string][]models.AgentReport
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		claims:    make(map[string]models.Claim),
		decisions: make(map[string]models.DecisionLog),
		reports:   make(map[string][]models.AgentReport),
	}
}

// SaveClaim inserts or replaces a claim.
func (s *InMemoryStore) SaveClaim(claim models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ClaimID] = claim
	return nil
}

// GetClaim retrieves a claim by ID.
func (s *InMemoryStore) GetClaim(claimID string) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if claim, ok := s.claims[claimID]; ok {
		return &claim, nil
	}
	return nil, nil
}

// ListClaims returns all claims, newest first, optionally filtered by status.
func (s *InMemoryStore) ListClaims(status models.ClaimStatus) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []models.Claim
	for _, claim := range s.claims {
		if status == "" || claim.Status == status {
			claims = append(claims, claim)
		}
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

// ClaimsByPatient returns all claims for a patient, newest first.
func (s *InMemoryStore) ClaimsByPatient(patientID string) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []models.Claim
	for _, claim := range s.claims {
		if claim.PatientID == patientID {
			claims = append(claims, claim)
		}
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

// ClaimsByProvider returns all claims for a provider, newest first.
func (s *InMemoryStore) ClaimsByProvider(providerName string) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []models.Claim
	for _, claim := range s.claims {
		if strings.EqualFold(claim.ProviderName, providerName) {
			claims = append(claims, claim)
		}
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

// SaveDecisionLog stores the decision log for a claim.
func (s *InMemoryStore) SaveDecisionLog(log models.DecisionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[log.ClaimID] = log
	return nil
}

// GetDecisionLog retrieves the decision log for a claim.
func (s *InMemoryStore) GetDecisionLog(claimID string) (*models.DecisionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if log, ok := s.decisions[claimID]; ok {
		return &log, nil
	}
	return nil, nil
}

// SaveExceptionLog appends an exception log entry.
func (s *InMemoryStore) SaveExceptionLog(log models.ExceptionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, log)
	return nil
}

// GetExceptionLogs returns all exception logs for a claim, oldest first.
func (s *InMemoryStore) GetExceptionLogs(claimID string) ([]models.ExceptionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logs []models.ExceptionLog
	for _, log := range s.exceptions {
		if log.ClaimID == claimID {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })
	return logs, nil
}

// FindSimilarExceptions returns past exceptions of the given type, newest first.
func (s *InMemoryStore) FindSimilarExceptions(exceptionType string) ([]models.ExceptionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logs []models.ExceptionLog
	for _, log := range s.exceptions {
		if log.ExceptionType == exceptionType {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	return logs, nil
}

// SaveAgentReports stores the agent reports produced while processing a claim.
func (s *InMemoryStore) SaveAgentReports(claimID string, reports []models.AgentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]models.AgentReport, len(reports))
	copy(stored, reports)
	s.reports[claimID] = stored
	return nil
}

// GetAgentReports retrieves the stored agent reports for a claim.
func (s *InMemoryStore) GetAgentReports(claimID string) ([]models.AgentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.reports[claimID]
	if !ok {
		return nil, nil
	}
	reports := make([]models.AgentReport, len(stored))
	copy(reports, stored)
	return reports, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func sortClaimsNewestFirst(claims []models.Claim) {
	sort.Slice(claims, func(i, j int) bool { return claims[i].CreatedAt.After(claims[j].CreatedAt) })
}

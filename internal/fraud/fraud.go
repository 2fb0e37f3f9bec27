// Package fraud implements rule-based fraud screening for submitted claims.
//
// Screening combines duplicate detection, amount outlier checks, provider
// pattern analysis, and timing anomaly checks into a single 0-100 score.
package fraud

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
	"github.com/MedLedger/ClaimPipe/internal/store"
	"github.com/MedLedger/ClaimPipe/internal/validation"
)

// Scoring thresholds and contributions for fraud checks.
const (
	// FlagThreshold is the score above which a claim is flagged for fraud.
	FlagThreshold = 70.0
	// MediumRiskThreshold is the score above which risk is considered medium.
	MediumRiskThreshold = 30.0

	duplicateSameDayScore    = 50.0
	duplicateSameProcScore   = 30.0
	amountHighRatioScore     = 25.0
	amountModerateRatioScore = 10.0
	amountLowRatioScore      = 15.0
	highValueClaimScore      = 35.0
	significantClaimScore    = 25.0
	highDenialRateScore      = 20.0
	highVolumeScore          = 15.0
	longDelayScore           = 25.0
	moderateDelayScore       = 10.0
	weekendVisitScore        = 5.0
)

// RiskLevel buckets a fraud score into a coarse band.
type RiskLevel string

const (
	// RiskHigh indicates a fraud score above the flag threshold.
	RiskHigh RiskLevel = "HIGH"
	// RiskMedium indicates an elevated but unflagged fraud score.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskLow indicates a low fraud score.
	RiskLow RiskLevel = "LOW"
)

// procedureAverages maps CPT codes to historical average billed amounts in USD.
var procedureAverages = map[string]float64{
	"99213": 150.0,   // Office visit, established patient, low complexity
	"99214": 250.0,   // Office visit, established patient, moderate complexity
	"99215": 350.0,   // Office visit, established patient, high complexity
	"92004": 200.0,   // Ophthalmological examination
	"27447": 15000.0, // Knee arthroplasty
	"73721": 800.0,   // MRI lower extremity
	"36415": 25.0,    // Blood collection
	"85025": 50.0,    // Complete blood count
}

// ProviderStatistics aggregates claim history for a single provider.
type ProviderStatistics struct {
	TotalClaims    int     `json:"total_claims"`
	ApprovedClaims int     `json:"approved_claims"`
	DeniedClaims   int     `json:"denied_claims"`
	ApprovalRate   float64 `json:"approval_rate"`
	TotalAmount    float64 `json:"total_amount"`
	AverageAmount  float64 `json:"average_amount"`
}

// Service screens claims for fraud using the claim history in the store.
type Service struct {
	store store.Store
}

// NewService creates a fraud screening service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// AnalyzeFraudRisk runs all fraud checks against a claim and returns the combined analysis.
// The resulting score is clamped to [0, 100]; a claim is flagged when the score exceeds FlagThreshold.
func (s *Service) AnalyzeFraudRisk(claim models.Claim) (models.FraudAnalysis, error) {
	slog.Debug("Service.AnalyzeFraudRisk: analyzing claim", "claimID", claim.ClaimID)

	analysis := models.FraudAnalysis{
		ClaimID:         claim.ClaimID,
		RiskFactors:     []string{},
		AnalysisDetails: make(map[string]models.CheckLog),
	}

	dupScore, dupFactors, err := s.checkDuplicates(claim)
	if err != nil {
		return analysis, fmt.Errorf("duplicate check failed for %s: %w", claim.ClaimID, err)
	}
	analysis.FraudScore += dupScore
	analysis.RiskFactors = append(analysis.RiskFactors, dupFactors...)
	analysis.AnalysisDetails["duplicate_check"] = models.CheckLog{Score: dupScore, Factors: dupFactors}

	amtScore, amtFactors := checkAmountOutliers(claim)
	analysis.FraudScore += amtScore
	analysis.RiskFactors = append(analysis.RiskFactors, amtFactors...)
	analysis.AnalysisDetails["amount_check"] = models.CheckLog{Score: amtScore, Factors: amtFactors}

	provScore, provFactors, err := s.checkProviderPatterns(claim)
	if err != nil {
		return analysis, fmt.Errorf("provider check failed for %s: %w", claim.ClaimID, err)
	}
	analysis.FraudScore += provScore
	analysis.RiskFactors = append(analysis.RiskFactors, provFactors...)
	analysis.AnalysisDetails["provider_check"] = models.CheckLog{Score: provScore, Factors: provFactors}

	timeScore, timeFactors := checkTimingAnomalies(claim)
	analysis.FraudScore += timeScore
	analysis.RiskFactors = append(analysis.RiskFactors, timeFactors...)
	analysis.AnalysisDetails["timing_check"] = models.CheckLog{Score: timeScore, Factors: timeFactors}

	analysis.FraudScore = models.ClampConfidence(analysis.FraudScore)
	analysis.IsFlagged = analysis.FraudScore > FlagThreshold

	slog.Debug("Service.AnalyzeFraudRisk: analysis complete", "claimID", claim.ClaimID,
		"fraudScore", analysis.FraudScore, "flagged", analysis.IsFlagged)
	return analysis, nil
}

// RiskLevelFor buckets a fraud score into a risk band.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score > FlagThreshold:
		return RiskHigh
	case score > MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// checkDuplicates scores the claim against existing claims for the same patient.
func (s *Service) checkDuplicates(claim models.Claim) (float64, []string, error) {
	var score float64
	factors := []string{}

	existing, err := s.store.ClaimsByPatient(claim.PatientID)
	if err != nil {
		return 0, nil, err
	}

	for _, other := range existing {
		if other.ClaimID == claim.ClaimID {
			continue
		}
		if other.PatientID == claim.PatientID && other.ServiceDate == claim.ServiceDate {
			score += duplicateSameDayScore
			factors = append(factors, fmt.Sprintf("Duplicate claim detected - same patient and date as claim %s", other.ClaimID))
			if other.ProcedureCode == claim.ProcedureCode {
				score += duplicateSameProcScore
				factors = append(factors, "Same procedure code in duplicate claim - highly suspicious")
			}
		}
	}
	return score, factors, nil
}

// checkAmountOutliers scores the claim amount against historical procedure averages.
func checkAmountOutliers(claim models.Claim) (float64, []string) {
	var score float64
	factors := []string{}

	if expected, ok := procedureAverages[claim.ProcedureCode]; ok && expected > 0 {
		ratio := claim.ClaimAmount / expected
		switch {
		case ratio > 2.0:
			score += amountHighRatioScore
			factors = append(factors, fmt.Sprintf("Amount $%.2f is %.1fx higher than average $%.2f", claim.ClaimAmount, ratio, expected))
		case ratio > 1.5:
			score += amountModerateRatioScore
			factors = append(factors, fmt.Sprintf("Amount $%.2f is %.1fx higher than average $%.2f", claim.ClaimAmount, ratio, expected))
		case ratio < 0.3:
			// Suspiciously low amounts can indicate unbundling
			score += amountLowRatioScore
			factors = append(factors, fmt.Sprintf("Amount $%.2f is unusually low compared to average $%.2f", claim.ClaimAmount, expected))
		}
	}

	if claim.ClaimAmount > 50000 {
		score += highValueClaimScore
		factors = append(factors, fmt.Sprintf("High-value claim: $%.2f", claim.ClaimAmount))
	} else if claim.ClaimAmount > 10000 {
		score += significantClaimScore
		factors = append(factors, fmt.Sprintf("Significant claim amount: $%.2f", claim.ClaimAmount))
	}

	return score, factors
}

// checkProviderPatterns scores the claim based on the provider's claim history.
// Only providers with more than 5 historical claims are analyzed.
func (s *Service) checkProviderPatterns(claim models.Claim) (float64, []string, error) {
	var score float64
	factors := []string{}

	providerClaims, err := s.store.ClaimsByProvider(claim.ProviderName)
	if err != nil {
		return 0, nil, err
	}

	if len(providerClaims) > 5 {
		denied := 0
		for _, c := range providerClaims {
			if c.Status == models.ClaimStatusDenied {
				denied++
			}
		}
		denialRate := float64(denied) / float64(len(providerClaims)) * 100
		if denialRate > 30 {
			score += highDenialRateScore
			factors = append(factors, fmt.Sprintf("Provider has high denial rate: %.1f%%", denialRate))
		}

		if len(providerClaims) > 50 {
			recent := 0
			cutoff := time.Now().AddDate(0, 0, -30)
			for _, c := range providerClaims {
				if c.CreatedAt.After(cutoff) {
					recent++
				}
			}
			if recent > 20 {
				score += highVolumeScore
				factors = append(factors, fmt.Sprintf("High claim volume: %d claims in last 30 days", recent))
			}
		}
	}

	return score, factors, nil
}

// checkTimingAnomalies scores submission delay and implausible service dates.
func checkTimingAnomalies(claim models.Claim) (float64, []string) {
	var score float64
	factors := []string{}

	serviceDate, err := validation.ParseServiceDate(claim.ServiceDate)
	if err != nil {
		// Unparseable dates are caught by validation; skip timing checks here.
		return 0, factors
	}

	daysDelay := int(claim.CreatedAt.Sub(serviceDate).Hours() / 24)
	if daysDelay > 90 {
		score += longDelayScore
		factors = append(factors, fmt.Sprintf("Claim submitted %d days after service date", daysDelay))
	} else if daysDelay > 30 {
		score += moderateDelayScore
		factors = append(factors, fmt.Sprintf("Claim submitted %d days after service date", daysDelay))
	}

	if wd := serviceDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		switch claim.ProcedureCode {
		case "99213", "99214", "99215":
			score += weekendVisitScore
			factors = append(factors, "Routine office visit scheduled on weekend")
		}
	}

	return score, factors
}

// GetProviderStatistics summarizes the claim history of a provider.
func (s *Service) GetProviderStatistics(providerName string) (ProviderStatistics, error) {
	providerClaims, err := s.store.ClaimsByProvider(providerName)
	if err != nil {
		return ProviderStatistics{}, fmt.Errorf("failed to load claims for provider %s: %w", providerName, err)
	}

	stats := ProviderStatistics{TotalClaims: len(providerClaims)}
	if stats.TotalClaims == 0 {
		return stats, nil
	}

	for _, c := range providerClaims {
		stats.TotalAmount += c.ClaimAmount
		switch c.Status {
		case models.ClaimStatusApproved:
			stats.ApprovedClaims++
		case models.ClaimStatusDenied:
			stats.DeniedClaims++
		}
	}
	stats.ApprovalRate = float64(stats.ApprovedClaims) / float64(stats.TotalClaims) * 100
	stats.AverageAmount = stats.TotalAmount / float64(stats.TotalClaims)
	return stats, nil
}

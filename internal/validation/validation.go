// Package validation provides claim data validation and medical code lookups for ClaimPipe.
//
// It carries the demo ICD-10 and CPT code tables plus the procedure/diagnosis
// compatibility map used by the clinical review agent.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// Sentinel descriptions returned when a code is not in the tables.
const (
	UnknownDiagnosisCode = "Unknown diagnosis code"
	UnknownProcedureCode = "Unknown procedure code"
)

// CodeType selects which code table a lookup targets.
type CodeType string

const (
	// CodeTypeICD10 selects the ICD-10 diagnosis code table.
	CodeTypeICD10 CodeType = "icd10"
	// CodeTypeCPT selects the CPT procedure code table.
	CodeTypeCPT CodeType = "cpt"
)

// icd10Codes holds the demo ICD-10 diagnosis codes.
var icd10Codes = map[string]string{
	// Regular checkups and conditions
	"Z00.00":   "Encounter for general adult medical examination without abnormal findings",
	"S52.501A": "Unspecified fracture of the lower end of right radius, initial encounter",
	"M25.511":  "Pain in right shoulder",
	"E11.9":    "Type 2 diabetes mellitus without complications",
	"J06.9":    "Acute upper respiratory infection, unspecified",
	"K21.9":    "Gastro-esophageal reflux disease without esophagitis",
	"M79.3":    "Panniculitis, unspecified",
	"I10":      "Essential hypertension",

	// Complex conditions requiring review
	"C50.1": "Malignant neoplasm of central portion of breast",
	"C50.2": "Malignant neoplasm of upper-inner quadrant of breast",
	"I21.0": "ST elevation (STEMI) myocardial infarction of anterior wall",
	"I63.1": "Cerebral infarction due to embolism of precerebral arteries",
	"I63.2": "Cerebral infarction due to unspecified occlusion of cerebral arteries",
}

// cptCodes holds the demo CPT procedure codes.
var cptCodes = map[string]string{
	"99213": "Office visit, established patient, low complexity",
	"99214": "Office visit, established patient, moderate complexity",
	"99215": "Office visit, established patient, high complexity",
	"92004": "Ophthalmological examination and evaluation",
	"27447": "Arthroplasty, knee, condyle and plateau; medial or lateral compartment",
	"73721": "MRI lower extremity other than joint",
	"36415": "Collection of venous blood by venipuncture",
	"85025": "Blood count; complete (CBC), automated",
}

// compatibleProcedures maps each diagnosis code to the procedure codes appropriate for it.
var compatibleProcedures = map[string][]string{
	// Regular procedures
	"Z00.00":   {"99213", "99214", "99215"},
	"S52.501A": {"27447", "73721"},
	"M25.511":  {"99213", "99214", "73721"},
	"E11.9":    {"99213", "99214", "85025"},
	"J06.9":    {"99213", "99214"},
	"K21.9":    {"99213", "99214"},
	"M79.3":    {"99213", "99214"},
	"I10":      {"99213", "99214", "85025"},

	// Complex conditions
	"C50.1": {"99215", "27447", "73721"},
	"C50.2": {"99215", "27447", "73721"},
	"I21.0": {"99215", "27447", "85025"},
	"I63.1": {"99215", "73721", "85025"},
	"I63.2": {"99215", "73721", "85025"},
}

// authorizationRequiredProcedures lists procedures that need prior authorization.
var authorizationRequiredProcedures = map[string]bool{
	"27447": true, // knee arthroplasty
	"73721": true, // MRI lower extremity
}

var (
	patientNamePattern  = regexp.MustCompile(`^[A-Za-z\s\-'\.]+$`)
	alphanumericPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
)

// ServiceDateLayout is the wire format for claim service dates.
const ServiceDateLayout = "2006-01-02"

// ValidateClaim validates claim data beyond structural checks and returns all errors found.
func ValidateClaim(claim *models.Claim) []string {
	var errs []string

	if !validPatientName(claim.PatientName) {
		errs = append(errs, "Patient name contains invalid characters")
	}
	if !validIdentifier(claim.PatientID, 3) {
		errs = append(errs, "Patient ID format is invalid")
	}
	if strings.TrimSpace(claim.InsuranceProvider) == "" {
		errs = append(errs, "Insurance provider is required")
	}
	if !validIdentifier(claim.PolicyNumber, 5) {
		errs = append(errs, "Policy number format is invalid")
	}
	if !ValidICD10Code(claim.DiagnosisCode) {
		errs = append(errs, fmt.Sprintf("Invalid ICD-10 diagnosis code: %s", claim.DiagnosisCode))
	}
	if !ValidCPTCode(claim.ProcedureCode) {
		errs = append(errs, fmt.Sprintf("Invalid CPT procedure code: %s", claim.ProcedureCode))
	}
	if !CompatibleCodes(claim.DiagnosisCode, claim.ProcedureCode) {
		errs = append(errs, fmt.Sprintf("Procedure code %s is not compatible with diagnosis %s", claim.ProcedureCode, claim.DiagnosisCode))
	}
	if claim.ClaimAmount <= 0 {
		errs = append(errs, "Claim amount must be greater than zero")
	} else if claim.ClaimAmount > models.MaxClaimAmount {
		errs = append(errs, "Claim amount exceeds maximum limit ($100,000)")
	}
	if !validServiceDate(claim.ServiceDate) {
		errs = append(errs, "Service date is invalid (cannot be in the future or more than 1 year old)")
	}
	if strings.TrimSpace(claim.ProviderName) == "" {
		errs = append(errs, "Provider name is required")
	}

	return errs
}

// GetCodeDescription returns the human-readable description for a medical code,
// or the unknown-code sentinel when the code is not in the tables.
func GetCodeDescription(code string, codeType CodeType) string {
	switch codeType {
	case CodeTypeICD10:
		if desc, ok := icd10Codes[strings.TrimSpace(code)]; ok {
			return desc
		}
		return UnknownDiagnosisCode
	case CodeTypeCPT:
		if desc, ok := cptCodes[strings.TrimSpace(code)]; ok {
			return desc
		}
		return UnknownProcedureCode
	}
	return "Unknown code"
}

// ValidICD10Code reports whether the diagnosis code is in the demo table.
func ValidICD10Code(code string) bool {
	_, ok := icd10Codes[strings.TrimSpace(code)]
	return ok
}

// ValidCPTCode reports whether the procedure code is in the demo table.
func ValidCPTCode(code string) bool {
	_, ok := cptCodes[strings.TrimSpace(code)]
	return ok
}

// CompatibleCodes reports whether the procedure code is appropriate for the diagnosis.
func CompatibleCodes(diagnosisCode, procedureCode string) bool {
	procedures, ok := compatibleProcedures[strings.TrimSpace(diagnosisCode)]
	if !ok {
		return false
	}
	for _, p := range procedures {
		if p == strings.TrimSpace(procedureCode) {
			return true
		}
	}
	return false
}

// RequiresPriorAuthorization reports whether the procedure needs prior authorization.
func RequiresPriorAuthorization(procedureCode string) bool {
	return authorizationRequiredProcedures[strings.TrimSpace(procedureCode)]
}

// ParseServiceDate parses a YYYY-MM-DD service date string.
func ParseServiceDate(value string) (time.Time, error) {
	return time.Parse(ServiceDateLayout, strings.TrimSpace(value))
}

func validPatientName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return false
	}
	return patientNamePattern.MatchString(name)
}

func validIdentifier(value string, minLen int) bool {
	value = strings.TrimSpace(value)
	if len(value) < minLen {
		return false
	}
	return alphanumericPattern.MatchString(value)
}

func validServiceDate(value string) bool {
	serviceDate, err := ParseServiceDate(value)
	if err != nil {
		return false
	}
	today := time.Now().Truncate(24 * time.Hour)
	oneYearAgo := today.AddDate(-1, 0, 0)
	return !serviceDate.After(today.Add(24*time.Hour)) && !serviceDate.Before(oneYearAgo)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserQuota is the caller's usage snapshot from the ledger store. It is read
// once at run start and mutated exactly once at run end by a single debit.
type UserQuota struct {
	UserID      string
	MaxLimit    int
	Used        int
	USDTBalance float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Remaining reports how many lookups the user may still perform.
func (q *UserQuota) Remaining() int {
	if q.Used >= q.MaxLimit {
		return 0
	}
	return q.MaxLimit - q.Used
}

// ValidationResult is one provider response mapped to the canonical shape.
// Only numbers the provider reports as valid produce a ValidationResult.
type ValidationResult struct {
	Number              string `json:"number"`
	Valid               bool   `json:"valid"`
	LocalFormat         string `json:"local_format"`
	InternationalFormat string `json:"international_format"`
	CountryCode         string `json:"country_code"`
	CountryName         string `json:"country_name"`
	Location            string `json:"location"`
	Carrier             string `json:"carrier"`
	LineType            string `json:"line_type"`
}

// OutcomeKind tags what happened to a single number during verification.
type OutcomeKind int

const (
	OutcomeValid OutcomeKind = iota
	OutcomeInvalid
	OutcomeUnformattable
	OutcomeProviderError
	OutcomeQuotaSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeValid:
		return "valid"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeUnformattable:
		return "unformattable"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeQuotaSkipped:
		return "quota_skipped"
	default:
		return "unknown"
	}
}

// NumberOutcome is the per-number result of one verification attempt.
// Result is set only when Kind is OutcomeValid.
type NumberOutcome struct {
	Number string
	Kind   OutcomeKind
	Result *ValidationResult
}

// HistoryRecord is the persisted summary of one verification run.
type HistoryRecord struct {
	ID            uuid.UUID
	UserID        string
	TotalUploaded int
	Duplicates    int
	UniqueCount   int
	VerifiedCount int
	FilePath      string
	CreatedAt     time.Time
}

// RunSummary is what the caller of a bulk run gets back.
type RunSummary struct {
	TotalUploaded int    `json:"total_uploaded"`
	Duplicates    int    `json:"duplicates"`
	UniqueCount   int    `json:"unique_count"`
	VerifiedCount int    `json:"verified_count"`
	FileURL       string `json:"fileUrl"`
}

package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// verifyBatchSize bounds peak provider concurrency: all members of a batch
// are dispatched together, and batches run strictly sequentially.
const verifyBatchSize = 50

// NumberValidator is the slice of the provider pool the verifier depends on.
type NumberValidator interface {
	Validate(ctx context.Context, number string) (*domain.ValidationResult, error)
}

// BatchResult aggregates one run's verification work. Results holds only
// valid numbers, appended in completion order, so callers must not assume it
// matches input order. Processed == len(Results).
type BatchResult struct {
	Results       []domain.ValidationResult
	Processed     int
	Invalid       int
	Unformattable int
	Errored       int
	QuotaSkipped  int
}

// BatchVerifier fans lookups out over the provider pool in fixed-size
// batches while honoring the caller's remaining quota.
type BatchVerifier struct {
	validator NumberValidator
	logger    *slog.Logger
}

func NewBatchVerifier(validator NumberValidator, logger *slog.Logger) *BatchVerifier {
	return &BatchVerifier{
		validator: validator,
		logger:    logger.With("component", "batch_verifier"),
	}
}

// VerifyAll validates the unique numbers in batches. used and maxLimit come
// from the quota snapshot taken at run start; the in-run processed counter is
// added to used before each dispatch as an advisory gate. Members of one
// batch read that counter concurrently, so overshoot past the limit is
// possible but bounded to one batch width.
func (v *BatchVerifier) VerifyAll(ctx context.Context, numbers []string, countryCode string, used, maxLimit int) BatchResult {
	var (
		mu        sync.Mutex
		result    BatchResult
		processed atomic.Int64
	)

	for start := 0; start < len(numbers); start += verifyBatchSize {
		end := start + verifyBatchSize
		if end > len(numbers) {
			end = len(numbers)
		}
		batch := numbers[start:end]

		var wg sync.WaitGroup
		for _, number := range batch {
			wg.Add(1)
			go func(raw string) {
				defer wg.Done()
				outcome := v.verifyOne(ctx, raw, countryCode, used, maxLimit, &processed)
				numberOutcomesCounter.WithLabelValues(outcome.Kind.String()).Inc()

				mu.Lock()
				defer mu.Unlock()
				switch outcome.Kind {
				case domain.OutcomeValid:
					result.Results = append(result.Results, *outcome.Result)
				case domain.OutcomeInvalid:
					result.Invalid++
				case domain.OutcomeUnformattable:
					result.Unformattable++
				case domain.OutcomeProviderError:
					result.Errored++
				case domain.OutcomeQuotaSkipped:
					result.QuotaSkipped++
				}
			}(number)
		}
		wg.Wait()
	}

	result.Processed = len(result.Results)
	return result
}

func (v *BatchVerifier) verifyOne(ctx context.Context, raw, countryCode string, used, maxLimit int, processed *atomic.Int64) domain.NumberOutcome {
	// Advisory quota gate; members of one batch may race past it.
	if used+int(processed.Load()) >= maxLimit {
		return domain.NumberOutcome{Number: raw, Kind: domain.OutcomeQuotaSkipped}
	}

	formatted := FormatPhone(raw, countryCode)
	if formatted == "" {
		return domain.NumberOutcome{Number: raw, Kind: domain.OutcomeUnformattable}
	}

	res, err := v.validator.Validate(ctx, formatted)
	if err != nil {
		// Swallowed per-number: the number is unverifiable for this attempt.
		v.logger.WarnContext(ctx, "Lookup failed for number", "number", formatted, "error", err)
		return domain.NumberOutcome{Number: formatted, Kind: domain.OutcomeProviderError}
	}
	if res == nil {
		return domain.NumberOutcome{Number: formatted, Kind: domain.OutcomeInvalid}
	}

	processed.Add(1)
	return domain.NumberOutcome{Number: formatted, Kind: domain.OutcomeValid, Result: res}
}

package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritel/golang_services/internal/verification_service/domain"
	"github.com/veritel/golang_services/internal/verification_service/ingest"
	"github.com/veritel/golang_services/internal/verification_service/repository"
)

// RunCompletedSubject is the NATS subject run summaries are published on.
const RunCompletedSubject = "verification.run.completed"

// artifactColumns is the artifact header, in output order.
var artifactColumns = []string{
	"number", "valid", "local_format", "international_format",
	"country_code", "country_name", "location", "carrier", "line_type",
}

// ArtifactStore is the slice of the blob store the run needs.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	PublicURL(key string) string
}

// EventPublisher publishes run lifecycle events. May be nil when eventing is
// disabled.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SingleVerification is the outcome of a one-off number lookup.
type SingleVerification struct {
	Result   *domain.ValidationResult
	Used     int
	MaxLimit int
}

// VerificationService orchestrates the bulk pipeline: ingestion,
// normalization, batched verification, balance debit, artifact persistence
// and history recording.
type VerificationService struct {
	ledgerRepo         repository.LedgerRepository
	artifacts          ArtifactStore
	validator          NumberValidator
	publisher          EventPublisher
	logger             *slog.Logger
	unitCost           float64
	defaultCountryCode string
}

func NewVerificationService(
	ledgerRepo repository.LedgerRepository,
	artifacts ArtifactStore,
	validator NumberValidator,
	publisher EventPublisher,
	unitCost float64,
	defaultCountryCode string,
	logger *slog.Logger,
) *VerificationService {
	if defaultCountryCode == "" {
		defaultCountryCode = DefaultCountryCode
	}
	return &VerificationService{
		ledgerRepo:         ledgerRepo,
		artifacts:          artifacts,
		validator:          validator,
		publisher:          publisher,
		logger:             logger.With("service", "verification"),
		unitCost:           unitCost,
		defaultCountryCode: defaultCountryCode,
	}
}

// RunBulkVerification executes one run end to end. countryCode falls back to
// the service default when empty. The balance check gates the debit step
// only: lookups in the verify phase have already hit the provider when an
// insufficient balance aborts the run.
func (s *VerificationService) RunBulkVerification(ctx context.Context, userID, ext string, fileData []byte, countryCode string) (*domain.RunSummary, error) {
	timer := prometheus.NewTimer(runDurationHist.WithLabelValues(ext))
	defer timer.ObserveDuration()

	if countryCode == "" {
		countryCode = s.defaultCountryCode
	}
	logger := s.logger.With("user_id", userID, "ext", ext)

	// Validating
	quota, err := s.ledgerRepo.GetQuota(ctx, userID)
	if err != nil {
		verificationRunsCounter.WithLabelValues(runStatus(err)).Inc()
		return nil, err
	}
	if quota.Used >= quota.MaxLimit {
		logger.WarnContext(ctx, "User limit exceeded before run start",
			"used", quota.Used, "max_limit", quota.MaxLimit)
		verificationRunsCounter.WithLabelValues("limit_exceeded").Inc()
		return nil, domain.ErrLimitExceeded
	}

	// Ingesting
	candidates, err := ingest.Parse(fileData, ext)
	if err != nil {
		verificationRunsCounter.WithLabelValues(runStatus(err)).Inc()
		return nil, err
	}
	logger.InfoContext(ctx, "File ingested", "candidates", len(candidates))

	// Normalizing: an empty unique set is not an error, the run proceeds
	// with zero work and zero cost.
	normalized := Normalize(candidates)
	logger.InfoContext(ctx, "Candidates normalized",
		"total", normalized.Total, "unique", len(normalized.Unique), "duplicates", normalized.Duplicates)

	// Verifying
	verifier := NewBatchVerifier(s.validator, s.logger)
	batch := verifier.VerifyAll(ctx, normalized.Unique, countryCode, quota.Used, quota.MaxLimit)
	logger.InfoContext(ctx, "Verification finished",
		"processed", batch.Processed, "invalid", batch.Invalid,
		"unformattable", batch.Unformattable, "errored", batch.Errored,
		"quota_skipped", batch.QuotaSkipped)

	// Debiting
	cost := float64(batch.Processed) * s.unitCost
	if _, err := s.ledgerRepo.DebitBalance(ctx, userID, cost, batch.Processed); err != nil {
		verificationRunsCounter.WithLabelValues(runStatus(err)).Inc()
		return nil, err
	}
	balanceDebitedCounter.Add(cost)

	// Persisting
	record := &domain.HistoryRecord{
		ID:            uuid.New(),
		UserID:        userID,
		TotalUploaded: normalized.Total,
		Duplicates:    normalized.Duplicates,
		UniqueCount:   len(normalized.Unique),
		VerifiedCount: batch.Processed,
		CreatedAt:     time.Now().UTC(),
	}
	historyID, err := s.ledgerRepo.InsertHistory(ctx, record)
	if err != nil {
		verificationRunsCounter.WithLabelValues("infrastructure_error").Inc()
		return nil, err
	}

	artifactKey := fmt.Sprintf("results/%s/%s.csv", userID, historyID)
	artifact := buildArtifact(batch.Results)
	if err := s.artifacts.Upload(ctx, artifactKey, bytes.NewReader(artifact), "text/csv"); err != nil {
		// The debit is already committed and is not rolled back.
		logger.ErrorContext(ctx, "Artifact upload failed after debit",
			"history_id", historyID, "error", err)
		verificationRunsCounter.WithLabelValues("artifact_upload_failed").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactUpload, err)
	}
	if err := s.ledgerRepo.UpdateHistoryFilePath(ctx, historyID, artifactKey); err != nil {
		verificationRunsCounter.WithLabelValues("infrastructure_error").Inc()
		return nil, err
	}

	summary := &domain.RunSummary{
		TotalUploaded: normalized.Total,
		Duplicates:    normalized.Duplicates,
		UniqueCount:   len(normalized.Unique),
		VerifiedCount: batch.Processed,
		FileURL:       s.artifacts.PublicURL(artifactKey),
	}
	s.publishRunCompleted(ctx, userID, historyID, summary)

	verificationRunsCounter.WithLabelValues("completed").Inc()
	logger.InfoContext(ctx, "Run completed", "history_id", historyID,
		"verified_count", summary.VerifiedCount, "cost", cost)
	return summary, nil
}

// VerifySingle looks up one number and debits one unit on success.
func (s *VerificationService) VerifySingle(ctx context.Context, userID, number string) (*SingleVerification, error) {
	quota, err := s.ledgerRepo.GetQuota(ctx, userID)
	if err != nil {
		return nil, err
	}
	if quota.Used >= quota.MaxLimit {
		return nil, domain.ErrLimitExceeded
	}

	formatted := FormatPhone(number, s.defaultCountryCode)
	if formatted == "" {
		return nil, domain.ErrNumberInvalid
	}

	result, err := s.validator.Validate(ctx, formatted)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, domain.ErrNumberInvalid
	}

	if _, err := s.ledgerRepo.DebitBalance(ctx, userID, s.unitCost, 1); err != nil {
		return nil, err
	}
	balanceDebitedCounter.Add(s.unitCost)

	return &SingleVerification{
		Result:   result,
		Used:     quota.Used + 1,
		MaxLimit: quota.MaxLimit,
	}, nil
}

// History returns a user's most recent runs.
func (s *VerificationService) History(ctx context.Context, userID string, limit int) ([]*domain.HistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.ledgerRepo.ListHistoryForUser(ctx, userID, limit)
}

// buildArtifact serializes valid results into the downloadable CSV.
func buildArtifact(results []domain.ValidationResult) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	_ = writer.Write(artifactColumns)
	for _, res := range results {
		_ = writer.Write([]string{
			res.Number,
			strconv.FormatBool(res.Valid),
			res.LocalFormat,
			res.InternationalFormat,
			res.CountryCode,
			res.CountryName,
			res.Location,
			res.Carrier,
			res.LineType,
		})
	}
	writer.Flush()
	return buf.Bytes()
}

// runCompletedEvent is the payload published on RunCompletedSubject.
type runCompletedEvent struct {
	HistoryID     string    `json:"history_id"`
	UserID        string    `json:"user_id"`
	TotalUploaded int       `json:"total_uploaded"`
	Duplicates    int       `json:"duplicates"`
	UniqueCount   int       `json:"unique_count"`
	VerifiedCount int       `json:"verified_count"`
	FileURL       string    `json:"file_url"`
	CompletedAt   time.Time `json:"completed_at"`
}

// publishRunCompleted is best effort: a broker failure is logged, never
// surfaced to the caller.
func (s *VerificationService) publishRunCompleted(ctx context.Context, userID string, historyID uuid.UUID, summary *domain.RunSummary) {
	if s.publisher == nil {
		return
	}
	event := runCompletedEvent{
		HistoryID:     historyID.String(),
		UserID:        userID,
		TotalUploaded: summary.TotalUploaded,
		Duplicates:    summary.Duplicates,
		UniqueCount:   summary.UniqueCount,
		VerifiedCount: summary.VerifiedCount,
		FileURL:       summary.FileURL,
		CompletedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal run completed event", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, RunCompletedSubject, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish run completed event",
			"subject", RunCompletedSubject, "history_id", historyID, "error", err)
	}
}

// runStatus maps a run-aborting error to a metrics label.
func runStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	default:
		return "infrastructure_error"
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/veritel/golang_services/internal/verification_service/app"
	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// MaxUploadBytes caps the multipart upload size.
const MaxUploadBytes = 32 << 20 // 32 MiB

// VerificationAppService is the application surface the handler depends on.
type VerificationAppService interface {
	RunBulkVerification(ctx context.Context, userID, ext string, fileData []byte, countryCode string) (*domain.RunSummary, error)
	VerifySingle(ctx context.Context, userID, number string) (*app.SingleVerification, error)
	History(ctx context.Context, userID string, limit int) ([]*domain.HistoryRecord, error)
}

type VerificationHandler struct {
	service VerificationAppService
	logger  *slog.Logger
}

func NewVerificationHandler(service VerificationAppService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		logger:  logger.With("handler", "verification"),
	}
}

// RegisterRoutes registers verification routes with the given router.
func (h *VerificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/verify-bulk", h.handleVerifyBulk)
	r.Post("/verify-number", h.handleVerifyNumber)
	r.Get("/verifications/{userID}/history", h.handleHistory)
}

// handleVerifyBulk accepts a multipart upload (userId, countryCode, file)
// and runs the bulk pipeline. The filename extension selects the parser.
func (h *VerificationHandler) handleVerifyBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		logger.WarnContext(ctx, "Failed to parse multipart form", "error", err)
		h.jsonError(w, logger, "Invalid multipart payload", http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(r.FormValue("userId"))
	if userID == "" {
		h.jsonError(w, logger, "userId is required", http.StatusBadRequest)
		return
	}
	countryCode := strings.TrimSpace(r.FormValue("countryCode"))

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "Missing file field", "error", err)
		h.jsonError(w, logger, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read upload", "error", err)
		h.jsonError(w, logger, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")

	logger.InfoContext(ctx, "Bulk verification upload received",
		"user_id", userID, "filename", header.Filename, "size", len(fileData))

	summary, err := h.service.RunBulkVerification(ctx, userID, ext, fileData, countryCode)
	if err != nil {
		h.writeDomainError(w, logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// handleVerifyNumber verifies a single number against the provider pool.
func (h *VerificationHandler) handleVerifyNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req VerifyNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode verify number request", "error", err)
		h.jsonError(w, logger, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Number == "" {
		h.jsonError(w, logger, "userId and number are required", http.StatusBadRequest)
		return
	}

	verification, err := h.service.VerifySingle(ctx, req.UserID, req.Number)
	if err != nil {
		h.writeDomainError(w, logger, err)
		return
	}

	res := verification.Result
	h.writeJSON(w, http.StatusOK, VerifyNumberResponse{
		Message:  fmt.Sprintf("Number %s verified", res.Number),
		LineType: res.LineType,
		Carrier:  res.Carrier,
		Country:  res.CountryName,
		Used:     verification.Used,
		Limit:    verification.MaxLimit,
	})
}

// handleHistory lists a user's verification runs, newest first.
func (h *VerificationHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.History(ctx, userID, limit)
	if err != nil {
		h.writeDomainError(w, logger, err)
		return
	}

	resp := HistoryResponse{History: make([]HistoryEntryResponse, 0, len(records))}
	for _, rec := range records {
		resp.History = append(resp.History, HistoryEntryResponse{
			ID:            rec.ID.String(),
			TotalUploaded: rec.TotalUploaded,
			Duplicates:    rec.Duplicates,
			UniqueCount:   rec.UniqueCount,
			VerifiedCount: rec.VerifiedCount,
			FilePath:      rec.FilePath,
			CreatedAt:     rec.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps domain errors onto the HTTP status taxonomy:
// 400 bad input, 403 limit/balance, 404 unknown user, 500 infrastructure.
func (h *VerificationHandler) writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		h.jsonError(w, logger, "User not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrLimitExceeded):
		h.jsonError(w, logger, "Limit exceeded", http.StatusForbidden)
	case errors.Is(err, domain.ErrInsufficientBalance):
		h.jsonError(w, logger, "Insufficient balance", http.StatusForbidden)
	case errors.Is(err, domain.ErrUnsupportedFormat):
		h.jsonError(w, logger, "Unsupported file format", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNumberInvalid):
		h.jsonError(w, logger, "Invalid number", http.StatusBadRequest)
	case errors.Is(err, domain.ErrArtifactUpload):
		h.jsonError(w, logger, "Failed to store result file", http.StatusInternalServerError)
	case errors.Is(err, domain.ErrProviderCall):
		h.jsonError(w, logger, "Error verifying number", http.StatusInternalServerError)
	default:
		h.jsonError(w, logger, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *VerificationHandler) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *VerificationHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	logger.WarnContext(context.Background(), "API error response", "status_code", statusCode, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: message}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

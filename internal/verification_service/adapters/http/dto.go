package http

import "time"

// ErrorResponse is the single-message error payload for every failure.
type ErrorResponse struct {
	Message string `json:"message"`
}

// VerifyNumberRequest is the body of POST /verify-number.
type VerifyNumberRequest struct {
	UserID string `json:"userId"`
	Number string `json:"number"`
}

// VerifyNumberResponse mirrors the single-lookup response shape.
type VerifyNumberResponse struct {
	Message  string `json:"message"`
	LineType string `json:"lineType"`
	Carrier  string `json:"carrier"`
	Country  string `json:"country"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit"`
}

// HistoryEntryResponse is one row of GET /verifications/{userID}/history.
type HistoryEntryResponse struct {
	ID            string    `json:"id"`
	TotalUploaded int       `json:"total_uploaded"`
	Duplicates    int       `json:"duplicates"`
	UniqueCount   int       `json:"unique_count"`
	VerifiedCount int       `json:"verified_count"`
	FilePath      string    `json:"file_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryResponse wraps the history listing.
type HistoryResponse struct {
	History []HistoryEntryResponse `json:"history"`
}

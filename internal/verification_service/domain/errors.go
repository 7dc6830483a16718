package domain

import "errors"

var (
	// ErrUserNotFound indicates no quota row exists for the given user.
	ErrUserNotFound = errors.New("user not found")
	// ErrLimitExceeded indicates the user's usage already meets or exceeds their limit.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInsufficientBalance indicates the user's USDT balance cannot cover the run cost.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnsupportedFormat indicates an upload with an extension no parser handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNumberInvalid indicates the provider confirmed the number as invalid.
	ErrNumberInvalid = errors.New("invalid number")
	// ErrArtifactUpload indicates the result artifact could not be stored.
	// The balance debit has already been committed when this is returned.
	ErrArtifactUpload = errors.New("artifact upload failed")
	// ErrProviderCall indicates a transport or upstream failure on a lookup call.
	ErrProviderCall = errors.New("provider call failed")
)

package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConfiguration     = errors.New("configuration error")
	ErrProviderFailure   = errors.New("provider failure")
	ErrEmptyResult       = errors.New("empty result")
	ErrTimeout           = errors.New("operation timed out")
	ErrDownload          = errors.New("download failed")
	ErrUpload            = errors.New("upload failed")
)

// ErrorKind classifies err into a stable label that is stored alongside the
// failure message.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrProviderFailure):
		return "provider"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}

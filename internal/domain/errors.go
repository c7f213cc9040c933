package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Flows wrap these so views can map to inline banners or modal alerts
// without inspecting transport details.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrBadRequest       = errors.New("bad request")
	ErrUnavailable      = errors.New("service unavailable")
)

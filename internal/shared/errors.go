package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Identity & permission errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrPermissionDenied = fmt.Errorf("permission denied")

	// Playlist engine errors
	ErrValidation   = fmt.Errorf("validation failed")
	ErrNotFound     = fmt.Errorf("not found")
	ErrNotDynamic   = fmt.Errorf("playlist is not dynamic")
	ErrConflict     = fmt.Errorf("conflict")
	ErrLockTimeout  = fmt.Errorf("timed out waiting for playlist lock")
	ErrStorage      = fmt.Errorf("storage failure")

	// Service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

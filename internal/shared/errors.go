package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Upstream errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrQueryFailed        = fmt.Errorf("currently playing query failed")
	ErrMalformedPayload   = fmt.Errorf("malformed upstream payload")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Real-time channel errors
	ErrTransport = fmt.Errorf("transport failure")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

package app

import "errors"

// Only ErrInvalidURL and ErrInternal reach the caller as errors. Navigation
// failures are folded into the verdict; the sentinels name them in logs and
// ScanResult.NavigationError.
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrNavigationBlocked = errors.New("navigation blocked by client")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrInternal          = errors.New("internal error")
)

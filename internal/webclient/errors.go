package webclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrBlocked means the browser refused the load itself (client-side block).
	ErrBlocked = errors.New("webclient: navigation blocked by client")

	// ErrNavigationTimeout means the page did not load within the deadline.
	ErrNavigationTimeout = errors.New("webclient: navigation timed out")

	// ErrNavigation covers every other load failure.
	ErrNavigation = errors.New("webclient: navigation failed")
)

// blockMarkers are the net error codes Chrome reports when it declined a load.
var blockMarkers = []string{
	"ERR_BLOCKED_BY_CLIENT",
	"ERR_BLOCKED_BY_ADMINISTRATOR",
	"ERR_BLOCKED_BY_RESPONSE",
	"ERR_BLOCKED_BY_CSP",
	"ERR_BLOCKED_BY_ORB",
}

// ClassifyNavigationError wraps err in the matching sentinel. nil stays nil.
func ClassifyNavigationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrNavigationTimeout) || errors.Is(err, ErrNavigation) {
		return err
	}
	msg := err.Error()
	for _, m := range blockMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrBlocked, err)
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) || strings.Contains(msg, "ERR_TIMED_OUT") {
		return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNavigation, err)
}

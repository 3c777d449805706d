// Package webclient is the browsing-session port the scanner drives: open a
// session, install page hooks, navigate, watch main-frame navigations and
// read the resulting DOM.
package webclient

import (
	"context"
)

// Browser hands out isolated browsing sessions. Implementations must be safe
// for concurrent use; sessions are not.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one tab. Callers must Close it on every path.
type Session interface {
	// InstallHooks injects script into every new document before page scripts
	// run. The script reports by calling window[binding](payload), which is
	// delivered to handler. Backends without script support return an error
	// wrapping errors.ErrUnsupported.
	InstallHooks(ctx context.Context, script, binding string, handler func(payload string)) error

	// OnNavigate registers fn for every main-frame navigation.
	OnNavigate(fn func(url string))

	// Navigate loads url. Failures are classified: see ErrBlocked,
	// ErrNavigationTimeout and ErrNavigation.
	Navigate(ctx context.Context, url string) error

	OuterHTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expression string, out any) error
	Location(ctx context.Context) (string, error)

	Close() error
}

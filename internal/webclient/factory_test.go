package webclient_test

import (
	"context"
	"testing"

	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/webclient"
)

// TestNewBrowser_NetHTTP verifies that the factory can create a nethttp browser
func TestNewBrowser_NetHTTP(t *testing.T) {
	t.Parallel()
	cfg := webclient.Config{Backend: "NetHTTP"}

	b, err := webclient.NewBrowser(cfg, logging.NopLogger{})
	if err != nil {
		t.Fatalf("Failed to create nethttp browser: %v", err)
	}
	if b == nil {
		t.Fatal("browser is nil")
	}
	defer b.Close()
}

// TestNewBrowser_ChromeDP verifies that an empty backend selects chromedp.
// Skipped where no Chrome binary is installed.
func TestNewBrowser_ChromeDP(t *testing.T) {
	cfg := webclient.DefaultConfig()
	cfg.Backend = ""

	b, err := webclient.NewBrowser(cfg, logging.NopLogger{})
	if err != nil {
		t.Skipf("Skipping chromedp test: %v", err)
	}
	defer b.Close()
}

// TestNewBrowser_UnknownBackend verifies that unknown backend returns error
func TestNewBrowser_UnknownBackend(t *testing.T) {
	t.Parallel()
	b, err := webclient.NewBrowser(webclient.Config{Backend: "unknown"}, logging.NopLogger{})
	if err == nil {
		t.Fatal("Expected error for unknown backend, got nil")
	}
	if b != nil {
		t.Fatal("Expected nil browser for unknown backend")
	}
}

type stubBrowser struct{}

func (stubBrowser) NewSession(context.Context) (webclient.Session, error) { return nil, nil }
func (stubBrowser) Close() error                                          { return nil }

func TestRegisterBackend_Custom(t *testing.T) {
	t.Parallel()
	webclient.RegisterBackend("Stub-Test", func(webclient.Config, logging.Logger) (webclient.Browser, error) {
		return stubBrowser{}, nil
	})

	found := false
	for _, name := range webclient.ListBackends() {
		if name == "stub-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("registered backend missing from %v", webclient.ListBackends())
	}

	b, err := webclient.NewBrowser(webclient.Config{Backend: "stub-test"}, nil)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	if _, ok := b.(stubBrowser); !ok {
		t.Fatalf("got %T, want stubBrowser", b)
	}
}

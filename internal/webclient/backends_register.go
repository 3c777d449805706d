package webclient

import (
	"fmt"

	"github.com/raysh454/qssage/internal/logging"
)

func init() {
	RegisterDefaultBackends()
}

// RegisterDefaultBackends registers the chromedp and nethttp backends.
func RegisterDefaultBackends() {
	RegisterBackend(BackendChromedp, func(cfg Config, logger logging.Logger) (Browser, error) {
		b, err := NewChromeBrowser(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create chromedp browser: %w", err)
		}
		return b, nil
	})

	RegisterBackend(BackendNetHTTP, func(cfg Config, logger logging.Logger) (Browser, error) {
		return NewNetHTTPBrowser(cfg, logger, nil)
	})
}

package webclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/qssage/internal/logging"
)

const maxHTTPRedirects = 10

// NetHTTPBrowser is a script-less backend built on net/http. It follows HTTP
// redirects and serves the raw body as the DOM, which is enough for the static
// signals when no Chrome binary is available.
type NetHTTPBrowser struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    logging.Logger
}

func NewNetHTTPBrowser(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPBrowser, error) {
	componentLogger := logging.OrNop(logger).With(logging.F("backend", BackendNetHTTP))

	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultConfig().MaxBodyBytes
	}

	componentLogger.Info("created nethttp browser",
		logging.F("timeout", httpClient.Timeout.String()))

	return &NetHTTPBrowser{
		client:    httpClient,
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
		logger:    componentLogger,
	}, nil
}

func (b *NetHTTPBrowser) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSession{browser: b}, nil
}

func (b *NetHTTPBrowser) Close() error {
	b.logger.Info("closing nethttp browser")
	return nil
}

// HTTPClient returns the underlying *http.Client
func (b *NetHTTPBrowser) HTTPClient() *http.Client {
	return b.client
}

type httpSession struct {
	browser *NetHTTPBrowser

	mu         sync.Mutex
	onNavigate []func(string)
	location   string
	body       string
	closed     bool
}

func (s *httpSession) InstallHooks(context.Context, string, string, func(string)) error {
	return fmt.Errorf("nethttp: page hooks: %w", errors.ErrUnsupported)
}

func (s *httpSession) OnNavigate(fn func(string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onNavigate = append(s.onNavigate, fn)
	s.mu.Unlock()
}

func (s *httpSession) notify(u string) {
	s.mu.Lock()
	handlers := append(([]func(string))(nil), s.onNavigate...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(u)
	}
}

func (s *httpSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: session closed", ErrNavigation)
	}

	b := s.browser
	client := *b.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHTTPRedirects {
			return fmt.Errorf("stopped after %d redirects", maxHTTPRedirects)
		}
		s.notify(req.URL.String())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrNavigation, err)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	b.logger.Debug("sending http request", logging.F("url", url))
	s.notify(url)

	resp, err := client.Do(req)
	if err != nil {
		b.logger.Warn("http request failed", logging.F("url", url), logging.Err(err))
		return ClassifyNavigationError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBody))
	if err != nil {
		b.logger.Warn("failed to read response body", logging.F("url", url), logging.Err(err))
		return ClassifyNavigationError(err)
	}

	final := resp.Request.URL.String()
	s.mu.Lock()
	s.location = final
	s.body = string(body)
	s.mu.Unlock()
	return nil
}

func (s *httpSession) OuterHTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, nil
}

func (s *httpSession) Evaluate(context.Context, string, any) error {
	return fmt.Errorf("nethttp: evaluate: %w", errors.ErrUnsupported)
}

func (s *httpSession) Location(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == "" {
		return "", errors.New("nethttp: no page loaded")
	}
	return s.location, nil
}

func (s *httpSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.body = ""
	s.mu.Unlock()
	return nil
}

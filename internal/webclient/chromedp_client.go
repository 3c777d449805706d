package webclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/qssage/internal/logging"
)

// ChromeBrowser runs one headless Chrome process and opens a tab per session.
type ChromeBrowser struct {
	logger logging.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeBrowser starts Chrome. It fails fast when no browser binary is found.
func NewChromeBrowser(cfg Config, logger logging.Logger) (*ChromeBrowser, error) {
	logger = logging.OrNop(logger).With(logging.F("backend", BackendChromedp))

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("mute-audio", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// an empty Run launches the process and its first tab
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Info("chrome started", logging.F("headless", cfg.Headless))
	return &ChromeBrowser{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewSession opens a fresh tab.
func (b *ChromeBrowser) NewSession(ctx context.Context) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	s := &chromeSession{
		ctx:      tabCtx,
		cancel:   cancel,
		logger:   b.logger,
		bindings: map[string]func(string){},
	}
	// the first Run ties the target to tabCtx, so it must not use a derived context
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	chromedp.ListenTarget(tabCtx, s.dispatch)
	return s, nil
}

// Close shuts Chrome down.
func (b *ChromeBrowser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("chrome stopped")
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger logging.Logger

	mu         sync.Mutex
	onNavigate []func(string)
	bindings   map[string]func(string)

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by both the tab and the caller ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// dispatch runs on the chromedp event goroutine; handlers must stay quick.
func (s *chromeSession) dispatch(ev any) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		u := e.Frame.URL + e.Frame.URLFragment
		s.mu.Lock()
		handlers := append(([]func(string))(nil), s.onNavigate...)
		s.mu.Unlock()
		for _, fn := range handlers {
			fn(u)
		}

	case *runtime.EventBindingCalled:
		s.mu.Lock()
		h := s.bindings[e.Name]
		s.mu.Unlock()
		if h != nil {
			h(e.Payload)
		}
	}
}

func (s *chromeSession) InstallHooks(ctx context.Context, script, binding string, handler func(string)) error {
	s.mu.Lock()
	s.bindings[binding] = handler
	s.mu.Unlock()

	return s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(binding).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
	)
}

func (s *chromeSession) OnNavigate(fn func(string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onNavigate = append(s.onNavigate, fn)
	s.mu.Unlock()
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, chromedp.Navigate(url))
	if err != nil {
		s.logger.Debug("navigation failed", logging.F("url", url), logging.Err(err))
	}
	return ClassifyNavigationError(err)
}

func (s *chromeSession) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html))
	return html, err
}

func (s *chromeSession) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return s.run(ctx, chromedp.Evaluate(expression, out))
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Close closes the tab. It is safe to call more than once.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

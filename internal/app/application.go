package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/qssage/internal/assessor"
	"github.com/raysh454/qssage/internal/dispatch"
	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/metrics"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/webclient"
	"github.com/raysh454/qssage/internal/whitelist"
)

// Application is the global runtime state container. It owns the shared
// services (browser, report store, notifiers, metrics) and the orchestrator
// built on them. Pass Application into modules that need access to the
// global state rather than using package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger

	Browser      webclient.Browser
	Store        store.ReportStore
	Metrics      *metrics.Metrics
	Webhook      *notify.Webhook
	Mailer       notify.Mailer
	Dispatcher   *dispatch.Dispatcher
	Orchestrator *Orchestrator
}

// Option replaces a service NewApplication would otherwise build.
type Option func(*Application)

func WithBrowser(b webclient.Browser) Option { return func(a *Application) { a.Browser = b } }

func WithStore(s store.ReportStore) Option { return func(a *Application) { a.Store = s } }

func WithMailer(m notify.Mailer) Option { return func(a *Application) { a.Mailer = m } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Application) { a.Metrics = m } }

// NewApplication builds every service from cfg. Services supplied through
// opts are used as-is and still closed by Shutdown.
func NewApplication(cfg *Config, logger logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	a := &Application{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}
	if a.Store == nil {
		st, err := store.NewSQLiteStore(logger, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open report store: %w", err)
		}
		a.Store = st
	}
	if a.Browser == nil {
		b, err := webclient.NewBrowser(cfg.WebClient, logger)
		if err != nil {
			_ = a.Store.Close()
			return nil, fmt.Errorf("start browser: %w", err)
		}
		a.Browser = b
	}
	if a.Mailer == nil {
		a.Mailer = notify.NewSMTPMailer(cfg.Notify, logger)
	}
	a.Webhook = notify.NewWebhook(cfg.Notify, nil, logger)
	a.Dispatcher = dispatch.New(a.Store, a.Mailer, a.Metrics, logger)

	scorer, err := assessor.NewScorer(cfg.Assessor)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	orch, err := NewOrchestrator(cfg, Deps{
		Browser:   a.Browser,
		Store:     a.Store,
		Webhook:   a.Webhook,
		Whitelist: whitelist.New(cfg.Whitelist.Trusted, cfg.Whitelist.Shorteners),
		Scorer:    scorer,
		Metrics:   a.Metrics,
		Logger:    logger,
	})
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.Orchestrator = orch

	logger.Info("application ready",
		logging.F("browser", cfg.WebClient.Backend),
		logging.F("store", cfg.Store.Path),
		logging.F("webhook", a.Webhook.Enabled()))
	return a, nil
}

// Shutdown waits for pending side effects (bounded by ctx) and releases the
// browser and the store.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	var errs []error
	if a.Orchestrator != nil {
		if err := a.Orchestrator.Wait(ctx); err != nil {
			a.Logger.Warn("pending side effects abandoned", logging.Err(err))
			errs = append(errs, err)
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) close() error {
	var errs []error
	if a.Browser != nil {
		if err := a.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

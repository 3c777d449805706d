package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/qssage/internal/assessor"
	"github.com/raysh454/qssage/internal/assessor/pagefeatures"
	"github.com/raysh454/qssage/internal/instrument"
	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/metrics"
	"github.com/raysh454/qssage/internal/navigation"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/utils"
	"github.com/raysh454/qssage/internal/webclient"
	"github.com/raysh454/qssage/internal/whitelist"
)

// State is a step of one scan.
type State string

const (
	StateNormalizing      State = "NORMALIZING"
	StateWhitelistCheck   State = "WHITELIST_CHECK"
	StateShortCircuitSafe State = "SHORT_CIRCUIT_SAFE"
	StateNavigating       State = "NAVIGATING"
	StateSettling         State = "SETTLING"
	StateExtracting       State = "EXTRACTING"
	StateScoring          State = "SCORING"
	StateSideEffecting    State = "SIDE_EFFECTING"
	StateResponding       State = "RESPONDING"
	StateFailed           State = "FAILED"
)

// Verdict reasons that do not come from the scorer.
const (
	ReasonTrusted            = "trusted domain"
	ReasonTrustedNavBlocked  = "trusted domain, navigation blocked"
	ReasonBlockedByClient    = "blocked by client"
	ReasonPageUnreachable    = "page unreachable"
	ReasonNoSuspiciousSignal = "no suspicious signals"
)

// StateObserver is called synchronously on every transition of a scan.
type StateObserver func(scanID string, s State)

type ScanRequest struct {
	URL      string `json:"url"`
	Location string `json:"location,omitempty"`
}

// ScanResult is the verdict returned to the caller.
type ScanResult struct {
	ScanID string        `json:"scan_id"`
	URL    string        `json:"url"`
	Safe   bool          `json:"safe"`
	Risk   assessor.Risk `json:"risk"`
	Reason string        `json:"reason"`

	Assessment *assessor.RiskAssessment `json:"assessment,omitempty"`
	// Chain is the top-level navigation history, starting with URL.
	Chain []string `json:"chain,omitempty"`

	NavigationError string `json:"navigation_error,omitempty"`
	ReportQueued    bool   `json:"report_queued"`
	ElapsedMS       int64  `json:"elapsed_ms"`
}

// Deps are the collaborators of an Orchestrator. Store, Webhook and Metrics
// may be nil.
type Deps struct {
	Browser   webclient.Browser
	Store     store.ReportStore
	Webhook   *notify.Webhook
	Whitelist *whitelist.Matcher
	Scorer    *assessor.Scorer
	Metrics   *metrics.Metrics
	Logger    logging.Logger
}

// Orchestrator runs scans. Concurrent scans share only the browser, the
// store and the read-only whitelist; each gets its own session.
type Orchestrator struct {
	cfg    ScanConfig
	navCfg navigation.Config

	browser   webclient.Browser
	store     store.ReportStore
	webhook   *notify.Webhook
	whitelist *whitelist.Matcher
	scorer    *assessor.Scorer
	metrics   *metrics.Metrics
	logger    logging.Logger

	sideEffects sync.WaitGroup
}

// NewOrchestrator ties together config and collaborators.
func NewOrchestrator(cfg *Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if deps.Browser == nil {
		return nil, errors.New("app: orchestrator requires a browser")
	}
	if deps.Scorer == nil {
		s, err := assessor.NewScorer(cfg.Assessor)
		if err != nil {
			return nil, err
		}
		deps.Scorer = s
	}
	if deps.Whitelist == nil {
		deps.Whitelist = whitelist.New(cfg.Whitelist.Trusted, cfg.Whitelist.Shorteners)
	}
	sc := cfg.Scan
	if sc.NavTimeout <= 0 {
		sc.NavTimeout = 10 * time.Second
	}
	if sc.Budget <= 0 {
		sc.Budget = 60 * time.Second
	}
	if sc.SideEffectTimeout <= 0 {
		sc.SideEffectTimeout = 5 * time.Second
	}
	if sc.Binding == "" {
		sc.Binding = instrument.DefaultBinding
	}
	return &Orchestrator{
		cfg:       sc,
		navCfg:    cfg.Navigation,
		browser:   deps.Browser,
		store:     deps.Store,
		webhook:   deps.Webhook,
		whitelist: deps.Whitelist,
		scorer:    deps.Scorer,
		metrics:   deps.Metrics,
		logger:    logging.OrNop(deps.Logger).With(logging.F("component", "orchestrator")),
	}, nil
}

// Scan produces a verdict for req.URL. Only ErrInvalidURL and ErrInternal are
// returned as errors; navigation failures become verdicts.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest, observe StateObserver) (*ScanResult, error) {
	scanID := uuid.NewString()
	start := time.Now()
	logger := o.logger.With(logging.F("scan_id", scanID))
	emit := func(s State) {
		logger.Debug("scan state", logging.F("state", string(s)))
		if observe != nil {
			observe(scanID, s)
		}
	}
	fail := func(outcome string, err error) (*ScanResult, error) {
		emit(StateFailed)
		o.metrics.ObserveScan(outcome, "", time.Since(start))
		return nil, err
	}

	emit(StateNormalizing)
	u, err := utils.Normalize(req.URL)
	if err != nil {
		logger.Info("rejected scan input", logging.F("input", req.URL), logging.Err(err))
		return fail(metrics.OutcomeInvalid, fmt.Errorf("%w: %w", ErrInvalidURL, err))
	}
	target := u.String()
	logger = logger.With(logging.F("url", target))

	emit(StateWhitelistCheck)
	trustedOrigin := o.whitelist.Trusted(u.Hostname())
	if trustedOrigin && (u.Scheme == "https" || !hasExplicitScheme(req.URL)) {
		emit(StateShortCircuitSafe)
		res := &ScanResult{
			ScanID: scanID,
			URL:    target,
			Safe:   true,
			Risk:   assessor.RiskSafe,
			Reason: ReasonTrusted,
			Assessment: &assessor.RiskAssessment{
				Risk:    assessor.RiskSafe,
				Reasons: []string{ReasonTrusted},
				Trusted: true,
				Version: o.scorer.Config().ScoringVersion,
			},
			Chain: []string{target},
		}
		return o.respond(emit, res, metrics.OutcomeShortCircuit, start), nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	emit(StateNavigating)
	visit, err := o.visit(budgetCtx, target, emit, logger)
	if err != nil {
		logger.Error("scan aborted", logging.Err(err))
		return fail(metrics.OutcomeError, fmt.Errorf("%w: %w", ErrInternal, err))
	}

	var (
		res     *ScanResult
		outcome string
	)
	if visit.navErr != nil {
		res = o.navigationVerdict(visit, trustedOrigin)
		outcome = metrics.OutcomeNavFailed
		logger.Info("navigation failed", logging.F("risk", string(res.Risk)), logging.Err(visit.navErr))
	} else {
		emit(StateScoring)
		f := visit.features
		trusted := trustedOrigin || o.whitelist.Trusted(f.FinalHost)
		a := o.scorer.Assess(f, trusted)
		for _, fd := range a.Findings {
			o.metrics.Finding(fd.Code)
		}
		res = &ScanResult{
			Safe:       a.Safe(),
			Risk:       a.Risk,
			Reason:     summarize(a.Reasons),
			Assessment: a,
		}
		outcome = metrics.OutcomeScored
		o.metrics.ObserveRedirects(a.Redirects)
		logger.Info("scan scored",
			logging.F("risk", string(a.Risk)),
			logging.F("score", a.Score),
			logging.F("redirects", a.Redirects))
	}
	res.ScanID = scanID
	res.URL = target
	res.Chain = visit.chain

	if res.Risk != assessor.RiskSafe && o.cfg.AutoReport {
		emit(StateSideEffecting)
		res.ReportQueued = o.fileReport(ctx, req, res, logger)
	}
	return o.respond(emit, res, outcome, start), nil
}

func (o *Orchestrator) respond(emit func(State), res *ScanResult, outcome string, start time.Time) *ScanResult {
	emit(StateResponding)
	elapsed := time.Since(start)
	res.ElapsedMS = elapsed.Milliseconds()
	o.metrics.ObserveScan(outcome, string(res.Risk), elapsed)
	return res
}

// hasExplicitScheme reports whether the raw input named a scheme itself.
func hasExplicitScheme(raw string) bool {
	return strings.Contains(strings.TrimSpace(raw), "://")
}

func summarize(reasons []string) string {
	if len(reasons) == 0 {
		return ReasonNoSuspiciousSignal
	}
	return strings.Join(reasons, ", ")
}

type visitResult struct {
	features *pagefeatures.PageFeatures
	chain    []string
	navErr   error
}

// visit drives one browsing session from navigation to extraction. The
// session is closed on every path. A returned error means the scan has no
// verdict; a navigation failure is reported in visitResult.navErr.
func (o *Orchestrator) visit(ctx context.Context, target string, emit func(State), logger logging.Logger) (*visitResult, error) {
	sess, err := o.browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("closing browser session", logging.Err(err))
		}
	}()

	tracker := navigation.NewTracker(target, nil)
	var errorPage atomic.Bool
	sess.OnNavigate(func(u string) {
		switch {
		case strings.HasPrefix(u, "chrome-error://"):
			errorPage.Store(true)
		case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
			tracker.Record(u)
		}
	})

	obs := instrument.NewObservation(o.cfg.EvalMinLength)
	handler := func(payload string) {
		if err := obs.HandleJSON(payload); err != nil {
			logger.Debug("malformed hook payload", logging.Err(err))
		}
	}
	if err := sess.InstallHooks(ctx, instrument.Script(o.cfg.Binding), o.cfg.Binding, handler); err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			logger.Debug("instrumentation unavailable", logging.Err(err))
		} else {
			logger.Warn("installing instrumentation", logging.Err(err))
		}
	} else {
		obs.MarkInstalled()
	}

	navCtx, navCancel := context.WithTimeout(ctx, o.cfg.NavTimeout)
	err = sess.Navigate(navCtx, target)
	navCancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scan budget: %w", ctx.Err())
		}
		return &visitResult{chain: tracker.Entries(), navErr: classifyNavigation(err)}, nil
	}

	emit(StateSettling)
	outcome, err := navigation.Settle(ctx, tracker, o.navCfg)
	if err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	logger.Debug("navigation settled",
		logging.F("entries", tracker.Len()),
		logging.F("retries", outcome.Retries),
		logging.F("hit_ceiling", outcome.HitCeiling),
		logging.F("elapsed_ms", outcome.Elapsed.Milliseconds()))

	emit(StateExtracting)
	if loc, err := sess.Location(ctx); err == nil && (strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")) {
		tracker.Record(loc)
	}
	f := pagefeatures.Extract(ctx, sess, tracker.FinalURL(), obs, logger)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("scan budget: %w", ctx.Err())
	}
	f.SetOrigin(target)
	f.Redirects = tracker.Redirects()
	f.LoadFailed = f.LoadFailed || errorPage.Load()
	f.Shortener = o.whitelist.IsShortener(f.OriginalHost) || o.whitelist.IsShortener(f.FinalHost)
	for _, h := range f.Hosts() {
		if brand, ok := o.whitelist.LookalikeOf(h); ok {
			f.LookalikeOf = brand
			break
		}
	}
	return &visitResult{features: f, chain: tracker.Entries()}, nil
}

func classifyNavigation(err error) error {
	err = webclient.ClassifyNavigationError(err)
	switch {
	case errors.Is(err, webclient.ErrBlocked):
		return fmt.Errorf("%w: %w", ErrNavigationBlocked, err)
	case errors.Is(err, webclient.ErrNavigationTimeout):
		return fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrNavigationFailed, err)
	}
}

// navigationVerdict maps a failed navigation onto a verdict: a client-side
// block is DANGEROUS, a trusted host is SAFE, anything else is DANGEROUS.
func (o *Orchestrator) navigationVerdict(v *visitResult, trusted bool) *ScanResult {
	version := o.scorer.Config().ScoringVersion
	res := &ScanResult{NavigationError: v.navErr.Error()}

	kind := "other"
	switch {
	case errors.Is(v.navErr, ErrNavigationBlocked):
		kind = "blocked"
	case errors.Is(v.navErr, ErrNavigationTimeout):
		kind = "timeout"
	}
	o.metrics.NavigationFailure(kind)

	if kind != "blocked" && trusted {
		res.Safe = true
		res.Risk = assessor.RiskSafe
		res.Reason = ReasonTrustedNavBlocked
		res.Assessment = &assessor.RiskAssessment{
			Risk:    assessor.RiskSafe,
			Reasons: []string{ReasonTrustedNavBlocked},
			Trusted: true,
			Version: version,
		}
		return res
	}

	res.Reason = ReasonPageUnreachable
	if kind == "blocked" {
		res.Reason = ReasonBlockedByClient
	}
	res.Risk = assessor.RiskDangerous
	res.Assessment = &assessor.RiskAssessment{
		Score:   o.scorer.Config().Thresholds.SuspiciousMax + 1,
		Risk:    assessor.RiskDangerous,
		Reasons: []string{res.Reason},
		Findings: []assessor.Finding{{
			Code:         "navigation-" + kind,
			Message:      res.Reason,
			Contribution: o.scorer.Config().Thresholds.SuspiciousMax + 1,
		}},
		Redirects: max(len(v.chain)-1, 0),
		Trusted:   trusted,
		Version:   version,
	}
	return res
}

// fileReport stores an automatic report in the background. The scan response
// never waits on it and never reflects its failure.
func (o *Orchestrator) fileReport(ctx context.Context, req ScanRequest, res *ScanResult, logger logging.Logger) bool {
	if o.store == nil {
		return false
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = "unknown"
	}
	rec := &store.ReportRecord{
		URL:      res.URL,
		Location: location,
		Source:   store.SourceScan,
		Risk:     string(res.Risk),
	}
	if res.Assessment != nil {
		rec.Score = res.Assessment.Score
		rec.Reasons = res.Assessment.Reasons
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SideEffectTimeout)
	o.Go(func() {
		defer cancel()

		stored, err := o.store.Insert(bg, rec)
		if err != nil {
			o.metrics.SideEffectFailed("store")
			logger.Error("auto report failed", logging.Err(err))
			return
		}
		o.metrics.ReportStored(store.SourceScan)
		logger.Info("auto report stored", logging.F("report_id", stored.ID))

		if o.webhook.Enabled() {
			if err := o.webhook.NotifyReport(bg, stored); err != nil {
				o.metrics.SideEffectFailed("webhook")
				logger.Warn("report webhook failed", logging.Err(err))
			}
		}
	})
	return true
}

// Go runs fn in the background as a side effect that Wait (and so
// Application.Shutdown) waits for.
func (o *Orchestrator) Go(fn func()) {
	o.sideEffects.Add(1)
	go func() {
		defer o.sideEffects.Done()
		fn()
	}()
}

// Wait blocks until background side effects finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.sideEffects.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package assessor

import (
	"fmt"
	"strings"

	"github.com/raysh454/qssage/internal/assessor/pagefeatures"
)

// Scorer turns PageFeatures into a RiskAssessment. It holds no mutable state
// and is safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Categorize maps a score onto a Risk using the configured thresholds.
func (s *Scorer) Categorize(score int) Risk {
	switch {
	case score <= s.cfg.Thresholds.SafeMax:
		return RiskSafe
	case score <= s.cfg.Thresholds.SuspiciousMax:
		return RiskSuspicious
	default:
		return RiskDangerous
	}
}

// Assess scores f. trusted reports whether the original or final host is on
// the allow-list. The result depends only on its inputs.
func (s *Scorer) Assess(f *pagefeatures.PageFeatures, trusted bool) *RiskAssessment {
	if f == nil {
		f = &pagefeatures.PageFeatures{}
	}
	w := s.cfg.Weights
	var (
		score    int
		findings []Finding
	)
	add := func(code string, weight int, format string, args ...any) {
		score += weight
		findings = append(findings, Finding{Code: code, Message: fmt.Sprintf(format, args...), Contribution: weight})
	}

	if f.LoadFailed {
		add("load-failed", w.LoadFailed, "page failed to load or resolved to an error page")
	}

	// host shape
	if f.HostIsIP {
		add("ip-host", w.IPHost, "host is a literal IP address")
	}
	if f.PunycodeHost {
		add("punycode-host", w.PunycodeHost, "host uses punycode (internationalized) encoding")
	}
	if f.Shortener {
		add("shortener", w.Shortener, "URL goes through a known link shortener")
	}
	if f.LookalikeOf != "" {
		add("lookalike", w.Lookalike, "host resembles trusted domain %s", f.LookalikeOf)
	}
	if !f.HTTPS {
		add("not-https", w.NotHTTPS, "connection is not HTTPS")
	}

	// credentials
	externalForm := len(f.ExternalForms) > 0
	switch {
	case externalForm && f.HasPassword:
		add("external-form", w.ExternalForm, "form submits to another site (%s)", strings.Join(f.ExternalForms, ", "))
		add("credential-harvest", w.CredentialHarvest, "password field posts to another site")
	case externalForm:
		add("external-form", w.ExternalForm, "form submits to another site (%s)", strings.Join(f.ExternalForms, ", "))
	case f.HasPassword:
		add("password-field", w.PasswordField, "page asks for a password")
	}

	// redirect chain
	switch {
	case f.Redirects == 1:
		add("single-redirect", w.SingleRedirect, "page redirected once")
	case f.Redirects > 1 && (!f.HTTPS || externalForm || f.HasPassword):
		add("redirect-chain-risky", w.RedirectChainRisky, "page redirected %d times alongside other risk signals", f.Redirects)
	case f.Redirects > 1:
		add("redirect-chain", w.RedirectChain, "page redirected %d times", f.Redirects)
	}

	// hidden frames, escalated by redirects
	if f.HiddenIframes > 0 {
		add("hidden-iframe", w.HiddenIframe, "%d hidden iframe(s)", f.HiddenIframes)
		switch {
		case f.Redirects >= 2:
			add("redirect-iframe-chain", w.ChainIframeBonus, "hidden iframe after a redirect chain")
		case f.Redirects == 1:
			add("redirect-iframe", w.SingleRedirectIframeBonus, "hidden iframe after a redirect")
		}
	}

	if f.ExternalScripts > s.cfg.ExternalScriptLimit {
		add("external-scripts", w.ManyExternalScripts, "%d external or suspicious scripts", f.ExternalScripts)
	}
	if f.ExternalImages > s.cfg.ExternalImageLimit {
		add("external-images", w.ManyExternalImages, "%d images from other sites", f.ExternalImages)
	}

	// script behaviour
	if f.EvalFlagged {
		add("dynamic-eval", w.EvalFlagged, "page executed a long dynamically built code string")
	}
	if f.DecodeFlagged {
		add("decoded-payload", w.DecodeFlagged, "page decoded a suspicious base64 payload")
	}
	if f.StaticSuspicious {
		add("static-content", w.StaticSuspicious, "page source contains decoding or dynamic execution code")
	}

	if trusted && s.cfg.WhitelistDiscount > 0 {
		discount := s.cfg.WhitelistDiscount
		if discount > score {
			discount = score
		}
		if discount > 0 {
			score -= discount
			findings = append(findings, Finding{Code: "trusted-domain", Message: "trusted domain (score reduced)", Contribution: -discount})
		}
	}

	reasons := make([]string, len(findings))
	for i, fd := range findings {
		reasons[i] = fd.Message
	}

	return &RiskAssessment{
		Score:     score,
		Risk:      s.Categorize(score),
		Reasons:   reasons,
		Findings:  findings,
		Redirects: f.Redirects,
		Trusted:   trusted,
		Version:   s.cfg.ScoringVersion,
		Features:  f,
	}
}

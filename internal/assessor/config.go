package assessor

import "fmt"

// Weights is the per-signal contribution table. Magnitudes may be retuned,
// but the combination rules in Scorer.Assess stay fixed.
type Weights struct {
	EvalFlagged      int `yaml:"eval_flagged" json:"eval_flagged"`
	DecodeFlagged    int `yaml:"decode_flagged" json:"decode_flagged"`
	StaticSuspicious int `yaml:"static_suspicious" json:"static_suspicious"`
	NotHTTPS         int `yaml:"not_https" json:"not_https"`

	SingleRedirect     int `yaml:"single_redirect" json:"single_redirect"`
	RedirectChainRisky int `yaml:"redirect_chain_risky" json:"redirect_chain_risky"`
	RedirectChain      int `yaml:"redirect_chain" json:"redirect_chain"`

	HiddenIframe              int `yaml:"hidden_iframe" json:"hidden_iframe"`
	ChainIframeBonus          int `yaml:"chain_iframe_bonus" json:"chain_iframe_bonus"`
	SingleRedirectIframeBonus int `yaml:"single_redirect_iframe_bonus" json:"single_redirect_iframe_bonus"`

	ManyExternalScripts int `yaml:"many_external_scripts" json:"many_external_scripts"`
	ManyExternalImages  int `yaml:"many_external_images" json:"many_external_images"`

	IPHost       int `yaml:"ip_host" json:"ip_host"`
	PunycodeHost int `yaml:"punycode_host" json:"punycode_host"`
	Shortener    int `yaml:"shortener" json:"shortener"`
	Lookalike    int `yaml:"lookalike" json:"lookalike"`

	ExternalForm      int `yaml:"external_form" json:"external_form"`
	CredentialHarvest int `yaml:"credential_harvest" json:"credential_harvest"`
	PasswordField     int `yaml:"password_field" json:"password_field"`

	LoadFailed int `yaml:"load_failed" json:"load_failed"`
}

// DefaultWeights returns the reference table.
func DefaultWeights() Weights {
	return Weights{
		EvalFlagged:      20,
		DecodeFlagged:    30,
		StaticSuspicious: 15,
		NotHTTPS:         4,

		SingleRedirect:     2,
		RedirectChainRisky: 6,
		RedirectChain:      3,

		HiddenIframe:              10,
		ChainIframeBonus:          40,
		SingleRedirectIframeBonus: 20,

		ManyExternalScripts: 4,
		ManyExternalImages:  5,

		IPHost:       35,
		PunycodeHost: 25,
		Shortener:    8,
		Lookalike:    15,

		// 12 at half weight
		ExternalForm:      6,
		CredentialHarvest: 30,
		PasswordField:     8,

		LoadFailed: 30,
	}
}

// Thresholds maps a score to a category: score <= SafeMax is SAFE,
// score <= SuspiciousMax is SUSPICIOUS, anything above is DANGEROUS.
type Thresholds struct {
	SafeMax       int `yaml:"safe_max" json:"safe_max"`
	SuspiciousMax int `yaml:"suspicious_max" json:"suspicious_max"`
}

// Config holds runtime settings for the scorer.
type Config struct {
	// ScoringVersion is reported with every assessment.
	ScoringVersion string `yaml:"scoring_version" json:"scoring_version"`

	Weights    Weights    `yaml:"weights" json:"weights"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	// ExternalScriptLimit and ExternalImageLimit are the counts that must be
	// exceeded before the script/image signals fire.
	ExternalScriptLimit int `yaml:"external_script_limit" json:"external_script_limit"`
	ExternalImageLimit  int `yaml:"external_image_limit" json:"external_image_limit"`

	// WhitelistDiscount is subtracted when the original or final host is trusted.
	WhitelistDiscount int `yaml:"whitelist_discount" json:"whitelist_discount"`
}

// DefaultConfig returns the reference scoring policy.
func DefaultConfig() Config {
	return Config{
		ScoringVersion:      "qssage-heuristics-v1",
		Weights:             DefaultWeights(),
		Thresholds:          Thresholds{SafeMax: 15, SuspiciousMax: 35},
		ExternalScriptLimit: 10,
		ExternalImageLimit:  5,
		WhitelistDiscount:   50,
	}
}

// Validate rejects tables that would break ordering or produce negative
// contributions.
func (c Config) Validate() error {
	if c.Thresholds.SafeMax < 0 || c.Thresholds.SuspiciousMax <= c.Thresholds.SafeMax {
		return fmt.Errorf("assessor: thresholds must satisfy 0 <= safe_max < suspicious_max (got %d, %d)",
			c.Thresholds.SafeMax, c.Thresholds.SuspiciousMax)
	}
	if c.WhitelistDiscount < 0 {
		return fmt.Errorf("assessor: whitelist_discount must not be negative")
	}
	if c.ExternalScriptLimit < 0 || c.ExternalImageLimit < 0 {
		return fmt.Errorf("assessor: external limits must not be negative")
	}
	w := c.Weights
	for name, v := range map[string]int{
		"eval_flagged": w.EvalFlagged, "decode_flagged": w.DecodeFlagged,
		"static_suspicious": w.StaticSuspicious, "not_https": w.NotHTTPS,
		"single_redirect": w.SingleRedirect, "redirect_chain_risky": w.RedirectChainRisky,
		"redirect_chain": w.RedirectChain, "hidden_iframe": w.HiddenIframe,
		"chain_iframe_bonus": w.ChainIframeBonus, "single_redirect_iframe_bonus": w.SingleRedirectIframeBonus,
		"many_external_scripts": w.ManyExternalScripts, "many_external_images": w.ManyExternalImages,
		"ip_host": w.IPHost, "punycode_host": w.PunycodeHost, "shortener": w.Shortener,
		"lookalike": w.Lookalike, "external_form": w.ExternalForm,
		"credential_harvest": w.CredentialHarvest, "password_field": w.PasswordField,
		"load_failed": w.LoadFailed,
	} {
		if v < 0 {
			return fmt.Errorf("assessor: weight %s must not be negative", name)
		}
	}
	if w.RedirectChain < w.SingleRedirect || w.RedirectChainRisky < w.RedirectChain {
		return fmt.Errorf("assessor: redirect weights must not decrease with chain length or risk")
	}
	if w.ChainIframeBonus < w.SingleRedirectIframeBonus {
		return fmt.Errorf("assessor: chain_iframe_bonus must be at least single_redirect_iframe_bonus")
	}
	if w.ExternalForm+w.CredentialHarvest < w.PasswordField {
		return fmt.Errorf("assessor: external_form + credential_harvest must be at least password_field")
	}
	return nil
}

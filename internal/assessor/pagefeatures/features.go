// Package pagefeatures turns a settled page into the flat set of signals the
// risk scorer consumes.
package pagefeatures

import (
	"net/url"
	"strings"

	"github.com/raysh454/qssage/internal/instrument"
	"github.com/raysh454/qssage/internal/utils"
)

// PageFeatures is everything observed about one scanned page. Every field
// defaults to its zero value when the observation that feeds it failed.
type PageFeatures struct {
	OriginalURL  string `json:"original_url"`
	OriginalHost string `json:"original_host"`
	FinalURL     string `json:"final_url"`
	FinalHost    string `json:"final_host"`
	Title        string `json:"title,omitempty"`

	Redirects int `json:"redirects"`

	// ExternalForms holds resolved form actions on a different site than the page.
	ExternalForms   []string `json:"external_forms,omitempty"`
	HasPassword     bool     `json:"has_password"`
	HiddenIframes   int      `json:"hidden_iframes"`
	ExternalScripts int      `json:"external_scripts"`
	ExternalImages  int      `json:"external_images"`

	HostIsIP     bool   `json:"host_is_ip"`
	PunycodeHost bool   `json:"punycode_host"`
	Shortener    bool   `json:"shortener"`
	LookalikeOf  string `json:"lookalike_of,omitempty"`
	HTTPS        bool   `json:"https"`

	HooksInstalled   bool `json:"hooks_installed"`
	EvalFlagged      bool `json:"eval_flagged"`
	DecodeFlagged    bool `json:"decode_flagged"`
	StaticSuspicious bool `json:"static_suspicious"`

	LoadFailed bool `json:"load_failed"`
}

// FromURL fills the fields derived from the final URL alone.
func FromURL(finalURL string) *PageFeatures {
	f := &PageFeatures{FinalURL: finalURL}
	u, err := url.Parse(finalURL)
	if err != nil {
		return f
	}
	f.FinalHost = strings.ToLower(u.Hostname())
	f.HTTPS = strings.EqualFold(u.Scheme, "https")
	f.HostIsIP = utils.IsIPHost(f.FinalHost)
	f.PunycodeHost = utils.IsPunycodeHost(f.FinalHost)
	return f
}

// SetOrigin records the URL the scan started from. A punycode or IP origin
// marks the page even if it redirected somewhere tamer.
func (f *PageFeatures) SetOrigin(originalURL string) {
	f.OriginalURL = originalURL
	f.OriginalHost = utils.Hostname(originalURL)
	if f.OriginalHost == "" {
		return
	}
	f.HostIsIP = f.HostIsIP || utils.IsIPHost(f.OriginalHost)
	f.PunycodeHost = f.PunycodeHost || utils.IsPunycodeHost(f.OriginalHost)
}

// ApplyInstrumentation copies the hook results. Hooks that were not installed
// count as nothing detected.
func (f *PageFeatures) ApplyInstrumentation(r instrument.Result) {
	f.HooksInstalled = r.Installed
	if !r.Installed {
		return
	}
	f.EvalFlagged = r.EvalFlagged
	f.DecodeFlagged = r.DecodeFlagged
}

// Hosts returns the distinct non-empty hosts the scan touched, origin first.
func (f *PageFeatures) Hosts() []string {
	var out []string
	if f.OriginalHost != "" {
		out = append(out, f.OriginalHost)
	}
	if f.FinalHost != "" && f.FinalHost != f.OriginalHost {
		out = append(out, f.FinalHost)
	}
	return out
}

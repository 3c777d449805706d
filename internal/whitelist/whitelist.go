// Package whitelist decides whether a destination host is pre-trusted and
// carries the other static host lists used by scoring (URL shorteners).
package whitelist

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/net/publicsuffix"

	"github.com/raysh454/qssage/internal/utils"
)

// DefaultTrusted are well-known search, social, commerce and developer sites.
var DefaultTrusted = []string{
	"google.com", "naver.com", "daum.net", "bing.com", "yahoo.com",
	"kakao.com", "facebook.com", "instagram.com", "twitter.com", "x.com",
	"youtube.com", "linkedin.com", "github.com", "stackoverflow.com",
	"amazon.com", "microsoft.com", "apple.com", "netflix.com", "spotify.com",
	"coupang.com", "11st.co.kr", "gmarket.co.kr", "auction.co.kr", "tistory.com",
}

// DefaultShorteners are public URL shortening services.
var DefaultShorteners = []string{
	"bit.ly", "goo.gl", "t.co", "tinyurl.com", "ow.ly", "is.gd", "buff.ly",
	"cutt.ly", "rebrand.ly", "t.ly", "shorturl.at", "rb.gy", "me2.do", "han.gl",
	"vo.la", "tiny.cc", "lnkd.in", "s.id",
}

// Matcher answers trust questions against a fixed host set. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	trusted    map[string]struct{}
	shorteners map[string]struct{}
	labels     map[string]string // registrable label -> trusted entry
}

// New builds a Matcher. Nil lists fall back to the package defaults.
func New(trusted, shorteners []string) *Matcher {
	if trusted == nil {
		trusted = DefaultTrusted
	}
	if shorteners == nil {
		shorteners = DefaultShorteners
	}
	m := &Matcher{
		trusted:    toSet(trusted),
		shorteners: toSet(shorteners),
		labels:     make(map[string]string),
	}
	for entry := range m.trusted {
		if label := firstLabel(utils.RegistrableDomain(entry)); len(label) >= 4 {
			m.labels[label] = entry
		}
	}
	return m
}

func toSet(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = normalizeHost(h)
		if h != "" {
			out[h] = struct{}{}
		}
	}
	return out
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "*.")
}

// Trusted reports whether host equals an allow-list entry or is a subdomain of
// one on a dot boundary. "mail.google.com" matches "google.com";
// "notgoogle.com" does not.
func (m *Matcher) Trusted(host string) bool {
	return matchSuffix(m.trusted, normalizeHost(host))
}

// TrustedURL applies Trusted to the host of a full URL.
func (m *Matcher) TrustedURL(raw string) bool {
	return m.Trusted(utils.Hostname(raw))
}

// IsShortener reports whether host belongs to a known URL shortener.
func (m *Matcher) IsShortener(host string) bool {
	return matchSuffix(m.shorteners, normalizeHost(host))
}

func matchSuffix(set map[string]struct{}, host string) bool {
	if host == "" {
		return false
	}
	for {
		if _, ok := set[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
}

// LookalikeOf returns the trusted entry whose registrable label is close to
// host's ("gooogle.com" -> "google.com"). Labels of 6 or 7 characters match at
// edit distance 1, longer labels at distance 1 or 2; shorter labels never
// match. The exact brand label only counts on a suffix outside the ICANN
// list ("google.blogspot.com", "naver.github.io"), so ccTLD siblings like google.de do not. Hosts
// that are themselves trusted never match.
func (m *Matcher) LookalikeOf(host string) (string, bool) {
	host = normalizeHost(host)
	if host == "" || m.Trusted(host) || utils.IsIPHost(host) {
		return "", false
	}
	label := firstLabel(utils.RegistrableDomain(host))
	if label == "" {
		return "", false
	}
	if trusted, ok := m.labels[label]; ok {
		if suffix, icann := publicsuffix.PublicSuffix(host); !icann && suffix != host {
			return trusted, true
		}
		return "", false
	}

	maxDist := 0
	switch n := len(label); {
	case n >= 8:
		maxDist = 2
	case n >= 6:
		maxDist = 1
	default:
		return "", false
	}

	dmp := diffmatchpatch.New()
	candidates := make([]string, 0, len(m.labels))
	for l := range m.labels {
		candidates = append(candidates, l)
	}
	sort.Strings(candidates)

	for _, trustedLabel := range candidates {
		if abs(len(trustedLabel)-len(label)) > maxDist {
			continue
		}
		d := dmp.DiffLevenshtein(dmp.DiffMain(trustedLabel, label, false))
		if d >= 1 && d <= maxDist {
			return m.labels[trustedLabel], true
		}
	}
	return "", false
}

// Hosts returns the sorted allow-list.
func (m *Matcher) Hosts() []string {
	out := make([]string, 0, len(m.trusted))
	for h := range m.trusted {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func firstLabel(domain string) string {
	if i := strings.IndexByte(domain, '.'); i >= 0 {
		return domain[:i]
	}
	return domain
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

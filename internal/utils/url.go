package utils

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var (
	ErrEmptyURL   = errors.New("empty url")
	ErrInvalidURL = errors.New("invalid url")
)

// Normalize turns a scanned string into an absolute http(s) URL.
//
// The input is first parsed as-is; when that does not yield an absolute
// http/https URL with a host, it is retried once with an "http://" prefix.
// Inputs that already carry a "://" separator are not retried, so
// "ftp://host" is rejected rather than reinterpreted.
//
// The host is lower-cased and IDN labels are converted to punycode. An empty
// path becomes "/".
func Normalize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}

	if u, err := parseAbsolute(raw); err == nil {
		return u, nil
	}
	if strings.Contains(raw, "://") || hasForeignScheme(raw) {
		return nil, ErrInvalidURL
	}
	if u, err := parseAbsolute("http://" + raw); err == nil {
		return u, nil
	}
	return nil, ErrInvalidURL
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Opaque != "" {
		return nil, ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	if host == "" || strings.ContainsAny(host, " \t\r\n") {
		return nil, ErrInvalidURL
	}
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, "..") {
		return nil, ErrInvalidURL
	}
	if net.ParseIP(host) == nil {
		if puny, err := idna.Lookup.ToASCII(host); err == nil && puny != "" {
			host = puny
		}
	}

	port := u.Port()
	switch {
	case port == "":
		u.Host = bracketIPv6(host)
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443"):
		u.Host = bracketIPv6(host)
	default:
		if _, err := strconv.Atoi(port); err != nil {
			return nil, ErrInvalidURL
		}
		u.Host = net.JoinHostPort(host, port)
	}

	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// hasForeignScheme reports whether raw parses with a non-web scheme. A
// "scheme" followed by digits is a host:port pair and does not count.
func hasForeignScheme(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	if u.Opaque != "" && u.Opaque[0] >= '0' && u.Opaque[0] <= '9' {
		return false
	}
	return true
}

func bracketIPv6(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// IsIPHost reports whether host is a literal IP address. Browsers also accept
// single-number IPv4 forms such as "2130706433" or "0x7f000001", which count.
func IsIPHost(host string) bool {
	host = strings.Trim(strings.ToLower(host), "[]")
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if strings.HasPrefix(host, "0x") {
		_, err := strconv.ParseUint(host[2:], 16, 32)
		return err == nil
	}
	_, err := strconv.ParseUint(host, 10, 32)
	return err == nil
}

// IsPunycodeHost reports whether any label of host uses the "xn--" ACE prefix.
func IsPunycodeHost(host string) bool {
	for _, label := range strings.Split(strings.ToLower(host), ".") {
		if strings.HasPrefix(label, "xn--") {
			return true
		}
	}
	return false
}

// RegistrableDomain returns the eTLD+1 of host ("mail.google.com" -> "google.com").
// IP addresses and hosts the public suffix list cannot split are returned as-is.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || IsIPHost(host) {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// SameSite reports whether two hosts belong to the same registrable domain.
func SameSite(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return RegistrableDomain(a) == RegistrableDomain(b)
}

// ResolveHost resolves ref against base and returns the resulting hostname.
// ok is false for empty, javascript:, data: and unparsable references.
func ResolveHost(base *url.URL, ref string) (host string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "about:") {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(r)
	h := strings.ToLower(resolved.Hostname())
	if h == "" {
		return "", false
	}
	return h, true
}

// Hostname parses raw and returns its lower-cased hostname, or "" on failure.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

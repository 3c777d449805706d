package utils_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/raysh454/qssage/internal/utils"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "google.com", "http://google.com/"},
		{"https kept", "https://Example.COM/login?a=1", "https://example.com/login?a=1"},
		{"default port dropped", "http://example.com:80/x", "http://example.com/x"},
		{"custom port kept", "example.com:8080/path", "http://example.com:8080/path"},
		{"whitespace trimmed", "  https://example.com  ", "https://example.com/"},
		{"ip host", "10.0.0.1/login", "http://10.0.0.1/login"},
		{"idn to punycode", "http://bücher.example/", "http://xn--bcher-kva.example/"},
		{"upper scheme", "HTTPS://example.com", "https://example.com/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := utils.Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.in, err)
			}
			if got := u.String(); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	inputs := []string{
		"not a url",
		"javascript:alert(1)",
		"ftp://files.example.com",
		"http://",
		"mailto:someone@example.com",
	}
	for _, in := range inputs {
		if u, err := utils.Normalize(in); err == nil {
			t.Errorf("Normalize(%q) = %v, expected rejection", in, u)
		} else if !errors.Is(err, utils.ErrInvalidURL) {
			t.Errorf("Normalize(%q) error = %v, want ErrInvalidURL", in, err)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := utils.Normalize("   "); !errors.Is(err, utils.ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestNormalize_SchemeAlwaysHTTP(t *testing.T) {
	for _, in := range []string{"a.b", "https://a.b", "http://a.b/c", "sub.a.b:9000"} {
		u, err := utils.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			t.Errorf("Normalize(%q) scheme = %q", in, u.Scheme)
		}
		if _, err := url.Parse(u.String()); err != nil {
			t.Errorf("normalized %q does not re-parse: %v", u, err)
		}
	}
}

func TestIsIPHost(t *testing.T) {
	cases := map[string]bool{
		"192.168.0.1":   true,
		"[::1]":         true,
		"2130706433":    true,
		"0x7f000001":    true,
		"example.com":   false,
		"1.example.com": false,
		"":              false,
	}
	for host, want := range cases {
		if got := utils.IsIPHost(host); got != want {
			t.Errorf("IsIPHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestIsPunycodeHost(t *testing.T) {
	if !utils.IsPunycodeHost("xn--pple-43d.com") {
		t.Error("expected punycode host")
	}
	if !utils.IsPunycodeHost("login.XN--80ak6aa92e.com") {
		t.Error("expected punycode label in subdomain position")
	}
	if utils.IsPunycodeHost("apple.com") {
		t.Error("apple.com is not punycode")
	}
}

func TestSameSite(t *testing.T) {
	if !utils.SameSite("www.example.co.uk", "login.example.co.uk") {
		t.Error("expected same registrable domain")
	}
	if utils.SameSite("example.com", "evil.test") {
		t.Error("expected different sites")
	}
	if utils.SameSite("", "example.com") {
		t.Error("empty host never matches")
	}
}

func TestResolveHost(t *testing.T) {
	base, _ := url.Parse("https://shop.example.com/account/")
	cases := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"/login", "shop.example.com", true},
		{"collect.php", "shop.example.com", true},
		{"//cdn.other.net/x.js", "cdn.other.net", true},
		{"http://evil.test/collect", "evil.test", true},
		{"javascript:void(0)", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := utils.ResolveHost(base, c.ref)
		if got != c.want || ok != c.wantOK {
			t.Errorf("ResolveHost(%q) = (%q,%v), want (%q,%v)", c.ref, got, ok, c.want, c.wantOK)
		}
	}
}

package whitelist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raysh454/qssage/internal/whitelist"
)

func TestMatcher_Trusted(t *testing.T) {
	m := whitelist.New([]string{"google.com", "11st.co.kr"}, nil)

	assert.True(t, m.Trusted("google.com"))
	assert.True(t, m.Trusted("mail.google.com"))
	assert.True(t, m.Trusted("MAIL.Google.COM."))
	assert.True(t, m.Trusted("www.11st.co.kr"))

	assert.False(t, m.Trusted("notgoogle.com"))
	assert.False(t, m.Trusted("google.com.evil.test"))
	assert.False(t, m.Trusted("com"))
	assert.False(t, m.Trusted(""))
}

func TestMatcher_TrustedURL(t *testing.T) {
	m := whitelist.New(nil, nil)
	assert.True(t, m.TrustedURL("https://www.github.com/login"))
	assert.False(t, m.TrustedURL("https://github.com.login-verify.test/"))
	assert.False(t, m.TrustedURL("::not a url::"))
}

func TestMatcher_IsShortener(t *testing.T) {
	m := whitelist.New(nil, nil)
	assert.True(t, m.IsShortener("bit.ly"))
	assert.True(t, m.IsShortener("www.tinyurl.com"))
	assert.False(t, m.IsShortener("example.com"))
}

func TestMatcher_LookalikeOf(t *testing.T) {
	m := whitelist.New(nil, nil)

	cases := []struct {
		host string
		want string
		ok   bool
	}{
		{"gooogle.com", "google.com", true},
		{"paypa1-naver.com", "", false},
		{"naverr.com", "naver.com", true},
		{"github.io", "", false},
		{"google.blogspot.com", "google.com", true},
		{"naver.github.io", "naver.com", true},
		{"microsfot.com", "microsoft.com", true},
		// ccTLD siblings and ordinary words
		{"google.de", "", false},
		{"www.amazon.co.uk", "", false},
		{"naver.co.jp", "", false},
		{"history.com", "", false},
		{"paper.com", "", false},
		{"king.com", "", false},
		{"drum.com", "", false},
		{"apply.com", "", false},
		{"google.com", "", false},
		{"accounts.google.com", "", false},
		{"example.com", "", false},
		{"10.0.0.1", "", false},
	}
	for _, c := range cases {
		got, ok := m.LookalikeOf(c.host)
		assert.Equal(t, c.ok, ok, c.host)
		assert.Equal(t, c.want, got, c.host)
	}
}

func TestMatcher_HostsSorted(t *testing.T) {
	m := whitelist.New([]string{"b.com", "a.com", "*.c.com"}, nil)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, m.Hosts())
}

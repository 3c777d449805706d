package instrument

import (
	"regexp"
	"unicode/utf8"
)

// PayloadThreshold is the tally at which a decoded string is flagged.
const PayloadThreshold = 8

var (
	reExec     = regexp.MustCompile(`(?i)\beval\s*\(|new\s+function\s*\(|\bfunction\s*\(\s*['"]|set(?:timeout|interval)\s*\(\s*['"]`)
	reLocation = regexp.MustCompile(`(?i)location\s*\.\s*(?:href|replace|assign)|(?:window|document|top|self)\s*\.\s*location|\blocation\s*=|\bredirect`)
	reDocWrite = regexp.MustCompile(`(?i)document\s*\.\s*(?:write(?:ln)?|open)\s*\(|(?:inner|outer)html\s*=`)
	reCookie   = regexp.MustCompile(`(?i)document\s*\.\s*cookie`)
	reFetch    = regexp.MustCompile(`(?i)\bfetch\s*\(|xmlhttprequest|sendbeacon|\$\s*\.\s*(?:ajax|post)\s*\(|new\s+image\s*\(`)
	reIframe   = regexp.MustCompile(`(?i)<\s*iframe|createelement\s*\(\s*['"]iframe`)
	reHidden   = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|opacity\s*:\s*0(?:[;"'\s]|$)|(?:width|height)\s*[=:]\s*['"]?0(?:px)?['";\s>]|\.hidden\s*=\s*true|display\s*=\s*['"]none`)

	reEscapes    = regexp.MustCompile(`\\x[0-9a-fA-F]{2}|\\u[0-9a-fA-F]{4}|%u[0-9a-fA-F]{4}`)
	reConcat     = regexp.MustCompile(`(?:['"][^'"\n]{0,4}['"]\s*\+\s*){3,}['"]`)
	reNested     = regexp.MustCompile(`(?i)(?:atob|unescape|decodeuricomponent|escape|btoa|eval)\s*\(\s*(?:atob|unescape|decodeuricomponent|escape|btoa)\s*\(`)
	reObfIdent   = regexp.MustCompile(`\b_0x[0-9a-fA-F]{3,}\b|\b_?[a-zA-Z]{1,2}\d{3,}\b|\b_[a-zA-Z]{0,2}\d{2,}\b`)
	reBracketKey = regexp.MustCompile(`\[\s*['"](?:eval|atob|location|cookie|write|href|constructor|fromCharCode|innerHTML|replace|assign)['"]\s*\]`)
	reAdVendor   = regexp.MustCompile(`(?i)googletagmanager|google-analytics|\bgtag\s*\(|doubleclick|googlesyndication|adsbygoogle|\bfbq\s*\(|connect\.facebook\.net|hotjar|criteo|taboola|outbrain|wcslog|wcs_do|mixpanel|amplitude|segment\.(?:com|io)`)
)

// riskKeywords is the generic vocabulary counted once per distinct match.
var riskKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\beval\b`),
	regexp.MustCompile(`(?i)\blocation\b`),
	regexp.MustCompile(`(?i)document\s*\.\s*write`),
	regexp.MustCompile(`(?i)innerhtml`),
	regexp.MustCompile(`(?i)<\s*script|createelement\s*\(\s*['"]script`),
	regexp.MustCompile(`(?i)\biframe\b`),
	regexp.MustCompile(`(?i)\bfetch\b`),
	regexp.MustCompile(`(?i)xmlhttprequest`),
	regexp.MustCompile(`(?i)localstorage|sessionstorage`),
	regexp.MustCompile(`(?i)\bcookie\b`),
	regexp.MustCompile(`(?i)fromcharcode`),
	regexp.MustCompile(`(?i)\bunescape\b`),
}

// ScorePayload returns the suspicion tally of a decoded string. Each rule
// contributes independently; ad and analytics vocabulary subtracts 6 with a
// floor of zero.
func ScorePayload(s string) int {
	if s == "" {
		return 0
	}

	exec := reExec.MatchString(s)
	score := 0

	if exec && reLocation.MatchString(s) {
		score += 15
	}
	if exec && reDocWrite.MatchString(s) {
		score += 15
	}
	if reCookie.MatchString(s) && reFetch.MatchString(s) {
		score += 12
	}
	if reIframe.MatchString(s) && reHidden.MatchString(s) {
		score += 10
	}

	for _, kw := range riskKeywords {
		if kw.MatchString(s) {
			score += 2
		}
	}

	if reEscapes.MatchString(s) {
		score += 4
	}
	if reConcat.MatchString(s) {
		score += 3
	}
	n := utf8.RuneCountInString(s)
	if n > 100 {
		score += 2
	}
	if n > 300 {
		score += 4
	}
	if reNested.MatchString(s) {
		score += 8
	}
	if reObfIdent.MatchString(s) {
		score += 3
	}
	if reBracketKey.MatchString(s) {
		score += 5
	}

	if reAdVendor.MatchString(s) {
		score -= 6
		if score < 0 {
			score = 0
		}
	}
	return score
}

// PayloadSuspicious reports whether s reaches PayloadThreshold. It never
// panics; an internal failure counts as not flagged.
func PayloadSuspicious(s string) (flagged bool) {
	defer func() {
		if recover() != nil {
			flagged = false
		}
	}()
	return ScorePayload(s) >= PayloadThreshold
}

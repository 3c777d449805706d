package assessor

import (
	"github.com/raysh454/qssage/internal/assessor/pagefeatures"
)

// Risk is the coarse user-facing category.
type Risk string

const (
	RiskSafe       Risk = "SAFE"
	RiskSuspicious Risk = "SUSPICIOUS"
	RiskDangerous  Risk = "DANGEROUS"
)

// Finding is one signal that contributed to a score. Contribution is negative
// only for the whitelist discount.
type Finding struct {
	// Code is a stable identifier (e.g. "ip-host", "credential-harvest").
	Code         string `json:"code"`
	Message      string `json:"message"`
	Contribution int    `json:"contribution"`
}

// RiskAssessment is the immutable result of scoring one page.
type RiskAssessment struct {
	Score     int                        `json:"score"`
	Risk      Risk                       `json:"risk"`
	Reasons   []string                   `json:"reasons"`
	Findings  []Finding                  `json:"findings"`
	Redirects int                        `json:"redirects"`
	Trusted   bool                       `json:"trusted"`
	Version   string                     `json:"version"`
	Features  *pagefeatures.PageFeatures `json:"features,omitempty"`
}

// Safe reports whether the category is SAFE.
func (r *RiskAssessment) Safe() bool {
	return r != nil && r.Risk == RiskSafe
}

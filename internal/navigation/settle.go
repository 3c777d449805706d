package navigation

import (
	"context"
	"time"
)

// Config holds the settle protocol timings.
type Config struct {
	// PollInterval is how often the chain is checked.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// QuietWindow is how long the chain must stay unchanged to count as settled.
	QuietWindow time.Duration `yaml:"quiet_window" json:"quiet_window"`

	// HardCeiling bounds the whole settle, retries and grace periods included.
	HardCeiling time.Duration `yaml:"hard_ceiling" json:"hard_ceiling"`

	// GracePeriod is the extra wait after settling that catches late redirects.
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`

	// MaxRetries is how many times a late redirect restarts the wait.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// DefaultConfig returns the reference timings: 500ms poll, 2s quiet window,
// 15s ceiling, 1s grace and a single retry.
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		QuietWindow:  2 * time.Second,
		HardCeiling:  15 * time.Second,
		GracePeriod:  time.Second,
		MaxRetries:   1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = d.QuietWindow
	}
	if c.HardCeiling <= 0 {
		c.HardCeiling = d.HardCeiling
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Outcome describes how a settle wait ended.
type Outcome struct {
	Settled    bool          `json:"settled"`
	HitCeiling bool          `json:"hit_ceiling"`
	Retries    int           `json:"retries"`
	Elapsed    time.Duration `json:"elapsed"`
}

type settleState int

const (
	stateWaiting settleState = iota
	stateGrace
	stateDone
)

// Settle blocks until the chain in t has been quiet for QuietWindow, or
// HardCeiling passes. A settled chain then gets GracePeriod more; if it grew
// meanwhile the wait restarts, at most MaxRetries times. HardCeiling is
// measured from the start of the call and ends the wait in any state.
//
// All transitions happen on a single ticker. Context cancellation stops the
// wait and returns ctx.Err() with the outcome so far.
func Settle(ctx context.Context, t *Tracker, cfg Config) (Outcome, error) {
	cfg = cfg.withDefaults()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var (
		out        Outcome
		state      = stateWaiting
		begin      = t.now()
		graceStart time.Time
		graceLen   int
	)

	for state != stateDone {
		select {
		case <-ctx.Done():
			out.Elapsed = t.now().Sub(begin)
			return out, ctx.Err()
		case <-ticker.C:
		}

		now := t.now()
		switch state {
		case stateWaiting:
			switch {
			case now.Sub(t.LastChange()) >= cfg.QuietWindow:
				state = stateGrace
				graceStart = now
				graceLen = t.Len()
				if cfg.GracePeriod == 0 {
					out.Settled = true
					state = stateDone
				}
			case now.Sub(begin) >= cfg.HardCeiling:
				out.HitCeiling = true
				state = stateDone
			}

		case stateGrace:
			graceOver := now.Sub(graceStart) >= cfg.GracePeriod
			if now.Sub(begin) >= cfg.HardCeiling && (!graceOver || t.Len() > graceLen) {
				out.HitCeiling = true
				state = stateDone
				continue
			}
			if !graceOver {
				continue
			}
			if t.Len() > graceLen && out.Retries < cfg.MaxRetries {
				out.Retries++
				state = stateWaiting
				continue
			}
			out.Settled = true
			state = stateDone
		}
	}

	out.Elapsed = t.now().Sub(begin)
	return out, nil
}

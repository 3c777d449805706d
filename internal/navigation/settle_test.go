package navigation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		QuietWindow:  40 * time.Millisecond,
		HardCeiling:  2 * time.Second,
		GracePeriod:  10 * time.Millisecond,
		MaxRetries:   1,
	}
}

func TestSettleQuietChain(t *testing.T) {
	tr := NewTracker("https://a.example/", nil)
	out, err := Settle(context.Background(), tr, fastConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !out.Settled || out.HitCeiling || out.Retries != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Elapsed > time.Second {
		t.Fatalf("quiet chain took %v to settle", out.Elapsed)
	}
}

func TestSettleWaitsOutBursts(t *testing.T) {
	cfg := fastConfig()
	tr := NewTracker("https://a.example/", nil)

	// changes every 10ms for ~100ms; each gap is shorter than the quiet window
	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(10 * time.Millisecond)
			tr.Record(fmt.Sprintf("https://hop%d.example/", i))
		}
	}()

	start := time.Now()
	out, err := Settle(context.Background(), tr, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	done := time.Now()

	if !out.Settled {
		t.Fatalf("expected settled, got %+v", out)
	}
	if tr.Redirects() != 10 {
		t.Fatalf("settled before the burst ended: %d redirects", tr.Redirects())
	}
	if done.Sub(start) < 100*time.Millisecond {
		t.Fatalf("settled too early after %v", done.Sub(start))
	}
	quiet := done.Sub(tr.LastChange())
	if quiet < cfg.QuietWindow {
		t.Fatalf("settled only %v after last change", quiet)
	}
	// quiet window + one poll + grace, with scheduling slack
	if limit := cfg.QuietWindow + cfg.PollInterval + cfg.GracePeriod + 200*time.Millisecond; quiet > limit {
		t.Fatalf("settle overshot: %v after last change", quiet)
	}
}

func TestSettleHardCeiling(t *testing.T) {
	cfg := fastConfig()
	cfg.HardCeiling = 100 * time.Millisecond

	tr := NewTracker("https://a.example/", nil)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				tr.Record(fmt.Sprintf("https://loop%d.example/", i))
			}
		}
	}()

	out, err := Settle(context.Background(), tr, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !out.HitCeiling || out.Settled {
		t.Fatalf("expected ceiling, got %+v", out)
	}
	if out.Elapsed < cfg.HardCeiling {
		t.Fatalf("returned before the ceiling: %v", out.Elapsed)
	}
}

func TestSettleRetriesOnLateRedirect(t *testing.T) {
	cfg := fastConfig()
	cfg.QuietWindow = 30 * time.Millisecond
	cfg.GracePeriod = 200 * time.Millisecond

	tr := NewTracker("https://a.example/", nil)
	go func() {
		// lands inside the grace period
		time.Sleep(120 * time.Millisecond)
		tr.Record("https://late.example/")
	}()

	out, err := Settle(context.Background(), tr, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !out.Settled || out.Retries != 1 {
		t.Fatalf("expected one retry, got %+v", out)
	}
	if tr.FinalURL() != "https://late.example/" {
		t.Fatalf("late redirect missing: %v", tr.Entries())
	}
}

func TestSettleNoRetryBudget(t *testing.T) {
	cfg := fastConfig()
	cfg.QuietWindow = 30 * time.Millisecond
	cfg.GracePeriod = 200 * time.Millisecond
	cfg.MaxRetries = 0

	tr := NewTracker("https://a.example/", nil)
	go func() {
		time.Sleep(120 * time.Millisecond)
		tr.Record("https://late.example/")
	}()

	out, err := Settle(context.Background(), tr, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !out.Settled || out.Retries != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestSettleContextCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.QuietWindow = 10 * time.Second
	cfg.HardCeiling = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	out, err := Settle(ctx, NewTracker("https://a.example/", nil), cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if out.Settled || out.HitCeiling {
		t.Fatalf("cancelled wait should not report completion: %+v", out)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	d := DefaultConfig()
	if c.PollInterval != d.PollInterval || c.QuietWindow != d.QuietWindow || c.HardCeiling != d.HardCeiling {
		t.Fatalf("zero config not defaulted: %+v", c)
	}
}

func TestSettleCeilingSpansRetries(t *testing.T) {
	cfg := fastConfig()
	cfg.QuietWindow = 40 * time.Millisecond
	cfg.HardCeiling = 200 * time.Millisecond
	cfg.GracePeriod = 30 * time.Millisecond

	tr := NewTracker("https://a.example/", nil)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		// first change lands inside the grace period, then the page never stops
		time.Sleep(60 * time.Millisecond)
		for i := 0; ; i++ {
			tr.Record(fmt.Sprintf("https://loop%d.example/", i))
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	out, err := Settle(context.Background(), tr, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !out.HitCeiling || out.Settled {
		t.Fatalf("expected ceiling, got %+v", out)
	}
	// one poll past the ceiling, with scheduling slack
	if limit := cfg.HardCeiling + cfg.PollInterval + 50*time.Millisecond; out.Elapsed > limit {
		t.Fatalf("ceiling overshot: %v > %v", out.Elapsed, limit)
	}
}

package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/qssage/internal/webclient"
)

// FakePage scripts what a FakeSession does when navigated to a URL.
type FakePage struct {
	// Chain lists the URLs the main frame commits to, in order. Empty means
	// the requested URL itself.
	Chain []string
	HTML  string
	// Hooks are binding payloads delivered to the installed hook handler
	// after the chain commits.
	Hooks []string
	// Late URLs commit LateAfter after Navigate returns.
	Late      []string
	LateAfter time.Duration
	// Delay blocks Navigate, honouring ctx.
	Delay time.Duration
	Err   error
}

// FakeBrowser implements webclient.Browser from a table of scripted pages.
type FakeBrowser struct {
	mu            sync.Mutex
	pages         map[string]FakePage
	sessions      []*FakeSession
	NewSessionErr error
	HooksErr      error
	closed        atomic.Bool
}

func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{pages: make(map[string]FakePage)}
}

// AddPage scripts navigation to url.
func (b *FakeBrowser) AddPage(url string, p FakePage) *FakeBrowser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = p
	return b
}

func (b *FakeBrowser) page(url string) (FakePage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pages[url]
	return p, ok
}

func (b *FakeBrowser) NewSession(context.Context) (webclient.Session, error) {
	if b.NewSessionErr != nil {
		return nil, b.NewSessionErr
	}
	s := &FakeSession{browser: b}
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func (b *FakeBrowser) Close() error {
	b.closed.Store(true)
	return nil
}

// Sessions returns how many sessions were opened.
func (b *FakeBrowser) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// OpenSessions returns how many sessions were opened and never closed.
func (b *FakeBrowser) OpenSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := 0
	for _, s := range b.sessions {
		if s.closes.Load() == 0 {
			open++
		}
	}
	return open
}

// FakeSession implements webclient.Session.
type FakeSession struct {
	browser *FakeBrowser

	mu        sync.Mutex
	current   string
	html      string
	hook      func(string)
	navFns    []func(string)
	Navigated []string

	closes atomic.Int32
}

func (s *FakeSession) InstallHooks(_ context.Context, _, _ string, handler func(string)) error {
	if s.browser.HooksErr != nil {
		return s.browser.HooksErr
	}
	s.mu.Lock()
	s.hook = handler
	s.mu.Unlock()
	return nil
}

func (s *FakeSession) OnNavigate(fn func(string)) {
	s.mu.Lock()
	s.navFns = append(s.navFns, fn)
	s.mu.Unlock()
}

func (s *FakeSession) commit(u string) {
	s.mu.Lock()
	s.current = u
	s.Navigated = append(s.Navigated, u)
	fns := append([]func(string){}, s.navFns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	p, ok := s.browser.page(url)
	if !ok {
		return fmt.Errorf("%w: no page scripted for %s", webclient.ErrNavigation, url)
	}
	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return webclient.ClassifyNavigationError(ctx.Err())
		case <-time.After(p.Delay):
		}
	}
	if p.Err != nil {
		return p.Err
	}

	chain := p.Chain
	if len(chain) == 0 {
		chain = []string{url}
	}
	for _, u := range chain {
		s.commit(u)
	}

	s.mu.Lock()
	s.html = p.HTML
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		for _, payload := range p.Hooks {
			hook(payload)
		}
	}

	if len(p.Late) > 0 {
		late := p.Late
		time.AfterFunc(p.LateAfter, func() {
			if s.closes.Load() > 0 {
				return
			}
			for _, u := range late {
				s.commit(u)
			}
		})
	}
	return nil
}

func (s *FakeSession) OuterHTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return "", errors.New("testutil: no document loaded")
	}
	return s.html, nil
}

// Evaluate is unsupported; callers fall back to static analysis.
func (s *FakeSession) Evaluate(context.Context, string, any) error {
	return fmt.Errorf("testutil: evaluate: %w", errors.ErrUnsupported)
}

func (s *FakeSession) Location(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *FakeSession) Close() error {
	s.closes.Add(1)
	return nil
}

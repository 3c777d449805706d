package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/testutil"
)

func TestNewApplication_WiresServices(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Path = store.MemoryPath
	browser := testutil.NewFakeBrowser()
	mailer := &testutil.DummyMailer{}

	a, err := NewApplication(cfg, &testutil.DummyLogger{}, WithBrowser(browser), WithMailer(mailer))
	require.NoError(t, err)
	require.NotNil(t, a.Orchestrator)
	require.NotNil(t, a.Dispatcher)
	require.NotNil(t, a.Metrics)
	assert.False(t, a.Webhook.Enabled())

	res, err := a.Orchestrator.Scan(context.Background(), ScanRequest{URL: "google.com"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Safe)

	require.NoError(t, a.Shutdown(context.Background()))
}

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Assessor.Thresholds.SuspiciousMax = cfg.Assessor.Thresholds.SafeMax
	_, err := NewApplication(cfg, nil, WithBrowser(testutil.NewFakeBrowser()))
	assert.Error(t, err)
}

func TestShutdown_NilApplication(t *testing.T) {
	var a *Application
	assert.Error(t, a.Shutdown(context.Background()))
}

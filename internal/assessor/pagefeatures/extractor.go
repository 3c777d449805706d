package pagefeatures

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/qssage/internal/instrument"
	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/utils"
)

// DOMReader is the part of a browsing session the extractor needs.
type DOMReader interface {
	OuterHTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expression string, out any) error
}

var (
	// raw source vocabulary for payloads that never ran
	reStaticSuspicious = regexp.MustCompile(`(?i)\batob\s*\(|\beval\s*\(|fromCharCode|document\.write|window\.location|\bunescape\s*\(`)

	// inline script vocabulary: execution, decoding or navigation
	reInlineSuspicious = regexp.MustCompile(`(?i)\beval\s*\(|\batob\s*\(|fromCharCode|\bunescape\s*\(|new\s+Function\s*\(|document\.write|(?:window|document|top|self)\.location|location\.(?:href|replace|assign)`)

	// matched against a style attribute with whitespace removed
	reZeroStyle = regexp.MustCompile(`(?:^|;)(?:width|height|opacity):0(?:\.0+)?(?:px|%|em|rem)?(?:!important)?(?:;|$)`)
)

// liveIframeProbe counts iframes the rendered page actually hides, including
// ones hidden through stylesheets the markup pass cannot see.
const liveIframeProbe = `(() => {
  let n = 0;
  for (const f of document.querySelectorAll('iframe')) {
    const s = window.getComputedStyle(f);
    const r = f.getBoundingClientRect();
    if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0' || r.width === 0 || r.height === 0) n++;
  }
  return n;
})()`

// Extract reads the settled DOM through reader. Read failures are logged and
// leave the affected fields at their defaults; Extract itself never fails.
func Extract(ctx context.Context, reader DOMReader, finalURL string, obs *instrument.Observation, logger logging.Logger) *PageFeatures {
	logger = logging.OrNop(logger)

	var f *PageFeatures
	html, err := reader.OuterHTML(ctx)
	if err != nil {
		logger.Warn("pagefeatures: reading DOM failed", logging.F("url", finalURL), logging.Err(err))
		f = FromURL(finalURL)
	} else {
		f = ExtractStatic(html, finalURL)
	}

	var live int
	if err := reader.Evaluate(ctx, liveIframeProbe, &live); errors.Is(err, errors.ErrUnsupported) {
		logger.Debug("pagefeatures: live probe unavailable", logging.F("url", finalURL))
	} else if err != nil {
		logger.Warn("pagefeatures: iframe probe failed", logging.F("url", finalURL), logging.Err(err))
	} else if live > f.HiddenIframes {
		f.HiddenIframes = live
	}

	if f.Title == "" {
		var title string
		if err := reader.Evaluate(ctx, `document.title`, &title); err == nil {
			f.Title = strings.TrimSpace(title)
		}
	}

	if obs != nil {
		f.ApplyInstrumentation(obs.Snapshot())
	}

	logger.Debug("pagefeatures: extracted",
		logging.F("url", finalURL),
		logging.F("external_forms", len(f.ExternalForms)),
		logging.F("hidden_iframes", f.HiddenIframes),
		logging.F("external_scripts", f.ExternalScripts),
		logging.F("external_images", f.ExternalImages),
	)
	return f
}

// ExtractStatic is the markup-only pass over html as served at finalURL.
func ExtractStatic(html, finalURL string) *PageFeatures {
	f := FromURL(finalURL)
	f.StaticSuspicious = reStaticSuspicious.MatchString(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return f
	}
	base, _ := url.Parse(finalURL)
	if href := getAttr(doc.Find("base[href]").First(), "href"); href != "" && base != nil {
		if b, err := url.Parse(href); err == nil {
			base = base.ResolveReference(b)
		}
	}

	f.Title = strings.TrimSpace(doc.Find("title").First().Text())
	extractForms(f, doc, base)
	f.HasPassword = doc.Find("input").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(getAttr(s, "type"), "password")
	}).Length() > 0
	f.HiddenIframes = countHiddenIframes(doc)
	f.ExternalScripts = countScripts(doc, base, f.FinalHost)
	f.ExternalImages = countCrossSite(doc.Find("img[src]"), "src", base, f.FinalHost)
	return f
}

func extractForms(f *PageFeatures, doc *goquery.Document, base *url.URL) {
	seen := map[string]bool{}
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action := getAttr(form, "action")
		if action == "" {
			return
		}
		host, ok := utils.ResolveHost(base, action)
		if !ok || utils.SameSite(host, f.FinalHost) {
			return
		}
		target := action
		if r, err := url.Parse(action); err == nil && base != nil {
			target = base.ResolveReference(r).String()
		}
		if !seen[target] {
			seen[target] = true
			f.ExternalForms = append(f.ExternalForms, target)
		}
	})
}

func countHiddenIframes(doc *goquery.Document) int {
	n := 0
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		if iframeHidden(s) {
			n++
		}
	})
	return n
}

func iframeHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if w := getAttr(s, "width"); w == "0" || w == "0px" {
		return true
	}
	if h := getAttr(s, "height"); h == "0" || h == "0px" {
		return true
	}
	style := strings.ToLower(strings.Join(strings.Fields(getAttr(s, "style")), ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	return reZeroStyle.MatchString(style)
}

func countScripts(doc *goquery.Document, base *url.URL, pageHost string) int {
	n := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src := getAttr(s, "src"); src != "" {
			if host, ok := utils.ResolveHost(base, src); ok && !utils.SameSite(host, pageHost) {
				n++
			}
			return
		}
		if reInlineSuspicious.MatchString(s.Text()) {
			n++
		}
	})
	return n
}

func countCrossSite(sel *goquery.Selection, attr string, base *url.URL, pageHost string) int {
	n := 0
	sel.Each(func(_ int, s *goquery.Selection) {
		if host, ok := utils.ResolveHost(base, getAttr(s, attr)); ok && !utils.SameSite(host, pageHost) {
			n++
		}
	})
	return n
}

func getAttr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

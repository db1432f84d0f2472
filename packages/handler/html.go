package handler

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"websitecrawler/packages/domain"
	"websitecrawler/packages/urlutil"
)

// HTML analyzes text/html responses: it scans the document for hyperlinks,
// stylesheets, scripts and images (each independently toggleable), records
// the resolved same-origin targets on the job, and rewrites the matched
// attributes to local-relative paths when rewriting is enabled.
type HTML struct{}

func (h *HTML) Accepts(contentType string) bool {
	return acceptsType(contentType, "text/html", "application/xhtml+xml")
}

func (h *HTML) Analyze(job *domain.Job, opts domain.Options) (domain.Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(job.ResponseBody))
	if err != nil {
		return nil, err
	}

	base := baseOverride(doc, job.RemoteURL)
	rewritten := false

	collect := func(sel *goquery.Selection, attr string) {
		sel.Each(func(_ int, s *goquery.Selection) {
			raw, ok := s.Attr(attr)
			if !ok {
				return
			}
			resolved, ok := urlutil.ResolveReference(raw, job.RemoteURL, opts.HTTPSMode, base)
			if !ok {
				job.Logger.Debug("Reference out of scope", "ref", raw, "page", job.RemoteURL)
				return
			}
			job.AddReference(resolved.String())
			if opts.RewriteReferences {
				s.SetAttr(attr, urlutil.RelativeReference(
					job.RemoteURL, resolved, opts.ASCIIOnly, opts.LoweredPaths,
				))
				rewritten = true
			}
		})
	}

	if opts.IncludeHyperlinks {
		collect(doc.Find("a[href], area[href]"), "href")
	}
	if opts.IncludeStylesheets {
		collect(doc.Find("link[href]").FilterFunction(isStylesheetLink), "href")
	}
	if opts.IncludeJavascript {
		collect(doc.Find("script[src]"), "src")
	}
	if opts.IncludeImages {
		collect(doc.Find("img[src]"), "src")
	}

	job.Analyzed = true
	job.Logger.Debug("Analyzed HTML document",
		"url", job.RemoteURL, "references", len(job.References))

	if !rewritten {
		// Avoid re-serialization churn when nothing changed.
		return string(job.ResponseBody), nil
	}
	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return html, nil
}

func isStylesheetLink(_ int, s *goquery.Selection) bool {
	rel, _ := s.Attr("rel")
	for _, part := range bytes.Fields([]byte(rel)) {
		if bytes.EqualFold(part, []byte("stylesheet")) {
			return true
		}
	}
	return false
}

// baseOverride returns the document's <base href> target resolved against
// the page URL, or nil when the document carries none.
func baseOverride(doc *goquery.Document, page *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	return page.ResolveReference(ref)
}

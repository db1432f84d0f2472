package handler

import (
	"regexp"
	"strings"

	"websitecrawler/packages/domain"
	"websitecrawler/packages/urlutil"
)

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// CSS analyzes text/css responses. @import targets count as stylesheet
// references, url(...) targets as image references; both follow the same
// toggles as their HTML counterparts.
type CSS struct{}

func (c *CSS) Accepts(contentType string) bool {
	return acceptsType(contentType, "text/css")
}

func (c *CSS) Analyze(job *domain.Job, opts domain.Options) (domain.Content, error) {
	text := string(job.ResponseBody)

	if opts.IncludeStylesheets {
		text = c.rewrite(job, opts, cssImportPattern, text)
	}
	if opts.IncludeImages {
		text = c.rewrite(job, opts, cssURLPattern, text)
	}

	job.Analyzed = true
	return text, nil
}

func (c *CSS) rewrite(job *domain.Job, opts domain.Options, pattern *regexp.Regexp, text string) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := pattern.FindStringSubmatch(match)
		raw := groups[1]
		if strings.HasPrefix(raw, "data:") {
			return match
		}
		resolved, ok := urlutil.ResolveReference(raw, job.RemoteURL, opts.HTTPSMode, nil)
		if !ok {
			return match
		}
		job.AddReference(resolved.String())
		if !opts.RewriteReferences {
			return match
		}
		rel := urlutil.RelativeReference(job.RemoteURL, resolved, opts.ASCIIOnly, opts.LoweredPaths)
		return strings.Replace(match, raw, rel, 1)
	})
}

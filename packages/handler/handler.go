// Package handler provides the per-MIME-type content analyzers. A handler
// discovers references in a fetched resource, optionally rewrites them to
// local-relative paths, and returns the final content to persist. Handlers
// are consulted in order; the first one accepting a content type wins.
package handler

import (
	"strings"

	"websitecrawler/packages/domain"
)

// Default returns the handler list used when the caller supplies none:
// the HTML handler followed by the CSS handler.
func Default() []domain.Handler {
	return []domain.Handler{&HTML{}, &CSS{}}
}

// acceptsType reports whether contentType names one of the given MIME types,
// ignoring case and any parameters after ";".
func acceptsType(contentType string, mimeTypes ...string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, mt := range mimeTypes {
		if ct == mt {
			return true
		}
	}
	return false
}

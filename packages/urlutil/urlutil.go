// Package urlutil holds the pure URL and path helpers consumed by the
// processor and the content handlers: turning raw references into absolute
// in-scope URLs, folding paths to ASCII, and mapping remote paths onto the
// local mirror hierarchy.
package urlutil

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"websitecrawler/packages/domain"
)

// SmallASCIITable maps the German umlauts and sharp s onto their common
// ASCII transliterations.
var SmallASCIITable = map[rune]string{
	'ä': "ae",
	'Ä': "Ae",
	'ö': "oe",
	'Ö': "Oe",
	'ü': "ue",
	'Ü': "Ue",
	'ß': "ss",
}

// ToASCII converts s into an ASCII-only string. Non-ASCII runes are replaced
// by their entry in mapping, or by fallback when no entry exists. Note that
// mapped replacements may be longer than one character.
func ToASCII(s string, mapping map[rune]string, fallback rune) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 128:
			b.WriteRune(r)
		case mapping[r] != "":
			b.WriteString(mapping[r])
		default:
			b.WriteRune(fallback)
		}
	}
	return b.String()
}

// RemoveDotSegments collapses "." and ".." path segments following RFC 3986
// section 5.2.4. ".." segments never escape above the root.
func RemoveDotSegments(input string) string {
	var out []string
	in := input
	for len(in) > 0 {
		switch {
		case strings.HasPrefix(in, "../"):
			in = in[3:]
		case strings.HasPrefix(in, "./"):
			in = in[2:]
		case strings.HasPrefix(in, "/./"):
			in = in[2:]
		case in == "/.":
			in = "/"
		case strings.HasPrefix(in, "/../"):
			in = in[3:]
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case in == "/..":
			in = "/"
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case in == "." || in == "..":
			in = ""
		default:
			i := 0
			if in[0] == '/' {
				i = 1
			}
			j := strings.IndexByte(in[i:], '/')
			if j < 0 {
				out = append(out, in)
				in = ""
			} else {
				out = append(out, in[:i+j])
				in = in[i+j:]
			}
		}
	}
	return strings.Join(out, "")
}

// ResolveReference turns a raw reference string found on a page into an
// absolute same-origin URL, or rejects it. referer is the URL of the page
// the reference was found on; base is an optional <base href> override used
// for relative references. The result never carries a fragment.
//
// Rejected: references with a scheme other than http or https, and
// references whose host (including the port) is not the referer's host; the
// crawl is restricted to a single origin.
func ResolveReference(raw string, referer *url.URL, mode domain.HTTPSMode, base *url.URL) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || referer == nil {
		return nil, false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	switch ref.Scheme {
	case "", "http", "https":
	default:
		return nil, false
	}

	resolveBase := referer
	if base != nil && ref.Host == "" {
		resolveBase = base
	}
	abs := resolveBase.ResolveReference(ref)

	if ref.Scheme == "" {
		switch mode {
		case domain.HTTPSModeForceHTTPS, domain.HTTPSModeHTTPSFirst:
			abs.Scheme = "https"
		case domain.HTTPSModeForceHTTP:
			abs.Scheme = "http"
		default:
			abs.Scheme = referer.Scheme
		}
	}

	if abs.Host == "" || !strings.EqualFold(abs.Host, referer.Host) {
		return nil, false
	}

	abs.Fragment = ""
	abs.Path = RemoveDotSegments(abs.Path)
	return abs, true
}

// MirrorPath maps a URL path onto its slash-separated location below the
// mirror root: the leading slash is stripped, an empty path becomes
// index.html and a trailing slash gains an index.html suffix. ASCII folding
// and lowercasing are applied first when enabled.
func MirrorPath(u *url.URL, asciiOnly, lowered bool) string {
	p := u.Path
	if asciiOnly {
		p = ToASCII(p, SmallASCIITable, '_')
	}
	if lowered {
		p = strings.ToLower(p)
	}
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "index.html"
	}
	if strings.HasSuffix(p, "/") {
		return p + "index.html"
	}
	return p
}

// LocalPath joins the URL's mirror path with the local base directory.
func LocalPath(u *url.URL, localBase string, asciiOnly, lowered bool) string {
	return filepath.Join(localBase, filepath.FromSlash(MirrorPath(u, asciiOnly, lowered)))
}

// RelativeReference returns the relative path leading from the page stored
// for pageURL to the file stored for target, used when rewriting references
// inside downloaded documents.
func RelativeReference(pageURL, target *url.URL, asciiOnly, lowered bool) string {
	from := MirrorPath(pageURL, asciiOnly, lowered)
	to := MirrorPath(target, asciiOnly, lowered)

	fromDir := path.Dir(from)
	if fromDir == "." {
		return to
	}

	fromSegs := strings.Split(fromDir, "/")
	toSegs := strings.Split(to, "/")
	common := 0
	for common < len(fromSegs) && common < len(toSegs)-1 && fromSegs[common] == toSegs[common] {
		common++
	}
	return strings.Repeat("../", len(fromSegs)-common) + strings.Join(toSegs[common:], "/")
}

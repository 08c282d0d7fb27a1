package service

import (
	"net/url"
	"strings"
)

// ProxyPath is the route every rewritten reference points back to.
const ProxyPath = "/proxy-stream"

// LineKind classifies one manifest line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineReference
)

// ClassifyLine reports how a manifest line is treated by the rewriter.
func ClassifyLine(line string) LineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return LineBlank
	case strings.HasPrefix(trimmed, "#"):
		return LineComment
	default:
		return LineReference
	}
}

// ProxyURL returns the same-origin proxy URL for an absolute target.
func ProxyURL(target string) string {
	// QueryEscape turns spaces into '+'; emit %20 so the value decodes the
	// same way under both query and URI-component rules.
	return ProxyPath + "?url=" + strings.ReplaceAll(url.QueryEscape(target), "+", "%20")
}

// RewriteManifest replaces every reference line of an HLS playlist with a
// proxy URL. Blank and comment lines are kept byte-for-byte. Relative
// references resolve against manifestURL truncated after its final '/'.
// A reference that cannot be resolved is left unchanged.
func RewriteManifest(body, manifestURL string) string {
	base := manifestBase(manifestURL)

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if ClassifyLine(line) != LineReference {
			continue
		}
		if abs, ok := resolveReference(base, strings.TrimSpace(line)); ok {
			lines[i] = ProxyURL(abs)
		}
	}
	return strings.Join(lines, "\n")
}

// manifestBase strips query and fragment and truncates the path after its
// final '/'. A nil result means relative references cannot be resolved.
func manifestBase(manifestURL string) *url.URL {
	u, err := url.Parse(manifestURL)
	if err != nil || !u.IsAbs() {
		return nil
	}
	base := *u
	base.RawQuery = ""
	base.ForceQuery = false
	base.Fragment = ""
	base.RawFragment = ""
	base.Path = truncateAfterSlash(base.Path)
	base.RawPath = truncateAfterSlash(base.RawPath)
	return &base
}

func truncateAfterSlash(p string) string {
	if p == "" {
		return ""
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return "/"
}

func resolveReference(base *url.URL, ref string) (string, bool) {
	if hasHTTPScheme(ref) {
		return ref, true
	}
	if base == nil {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(r).String(), true
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

package client

import (
	regexp "github.com/grafana/regexp"
)

var (
	// credentialParamPattern matches Xtream credentials passed as query parameters.
	credentialParamPattern = regexp.MustCompile(`(?i)\b((?:username|password|token)=)[^&\s"]+`)
	// credentialPathPattern matches /live/<user>/<pass>/ style stream paths.
	credentialPathPattern = regexp.MustCompile(`(?i)(/(?:live|movie|series|timeshift)/)[^/\s"?]+/[^/\s"?]+/`)
	// userinfoPattern matches user:pass@ in URLs.
	userinfoPattern = regexp.MustCompile(`(://)[^/@\s"]+@`)
)

// Redact masks Xtream credentials in URLs and error strings before they are
// logged.
func Redact(s string) string {
	s = credentialParamPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = credentialPathPattern.ReplaceAllString(s, "${1}[REDACTED]/[REDACTED]/")
	return userinfoPattern.ReplaceAllString(s, "${1}[REDACTED]@")
}

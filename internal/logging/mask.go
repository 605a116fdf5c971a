// Package logging sets up the CLI logger and keeps credentials out of
// logs and error messages shown to users.
package logging

import "regexp"

var (
	reAuthorization = regexp.MustCompile(`(?i)(authorization["']?\s*[:=]\s*["']?)([^\s"',;]+)`)
	rePassword      = regexp.MustCompile(`(?i)(password["']?\s*[:=]\s*["']?)([^\s"',;]+)`)
	reURLUserinfo   = regexp.MustCompile(`(?i)(wss?://)([^/@\s:]+):([^/@\s]+)(@)`)
)

// Mask replaces credentials in s with "*".
// For URLs with userinfo, both username and password are masked.
func Mask(s string) string {
	out := s
	out = reAuthorization.ReplaceAllString(out, "$1***")
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reURLUserinfo.ReplaceAllString(out, "$1*:*$4")

	return out
}

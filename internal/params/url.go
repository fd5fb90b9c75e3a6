package params

import "regexp"

var urlPattern = regexp.MustCompile(`(?i)^(https?://)?` +
	// host: domain name, localhost, ipv4 or bracketed ipv6
	`((([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)\.)+[a-z]{2,}|localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}|` +
	`\[?[a-f0-9]*:[a-f0-9:%.~]*\])` +
	// port and path
	`(:\d+)?(/[-a-z0-9+&@#/%=~_|]*)*` +
	// query string
	`(\?[;&a-z0-9+&@#/%=~_|]*)?` +
	// fragment
	`(#[-a-z0-9_]*)?$`)

// IsValidURL reports whether candidate looks like an http(s) target URL.
// The scheme is optional and matching is case-insensitive.
func IsValidURL(candidate string) bool {
	return urlPattern.MatchString(candidate)
}

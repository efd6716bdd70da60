package hyperbeam

import "strings"

// blockedKeys are transport and header-echo keys a node copies into its
// answers. They say nothing about the process and are dropped from reads.
var blockedKeys = map[string]struct{}{
	"accept":                       {},
	"accept-bundle":                {},
	"accept-encoding":              {},
	"accept-language":              {},
	"access-control-allow-headers": {},
	"access-control-allow-methods": {},
	"access-control-allow-origin":  {},
	"cache-control":                {},
	"cdn-loop":                     {},
	"connection":                   {},
	"content-length":               {},
	"content-type":                 {},
	"date":                         {},
	"host":                         {},
	"origin":                       {},
	"pragma":                       {},
	"priority":                     {},
	"referer":                      {},
	"sec-ch-ua":                    {},
	"sec-ch-ua-mobile":             {},
	"sec-ch-ua-platform":           {},
	"sec-fetch-dest":               {},
	"sec-fetch-mode":               {},
	"sec-fetch-site":               {},
	"server":                       {},
	"upgrade-insecure-requests":    {},
	"user-agent":                   {},
	"via":                          {},
	"x-forwarded-for":              {},
	"x-forwarded-proto":            {},
	"x-real-ip":                    {},
}

// IsBlocked reports whether a top-level key is transport noise.
func IsBlocked(key string) bool {
	_, ok := blockedKeys[strings.ToLower(key)]
	return ok
}

// Sanitize returns a copy of m without block-listed top-level keys.
// Nested values are kept as they are.
func Sanitize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsBlocked(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Package auth resolves and validates the bearer credential an SDK sends
// with each ingest request.
package auth

import (
	"net/http"
	"regexp"
	"strings"
)

const (
	// QueryParamKey is the URL query parameter carrying the credential.
	QueryParamKey = "sentry_key"

	// AuthHeaderName is the custom auth header used by SDKs.
	AuthHeaderName = "X-Sentry-Auth"
)

// sentry_key value runs up to the next comma or whitespace within the
// custom-scheme header ("Sentry sentry_key=abc, sentry_version=7").
var credentialPattern = regexp.MustCompile(`sentry_key=([^,\s]+)`)

// ExtractCredential resolves the bearer credential from one of three request
// locations, first match wins:
//  1. the sentry_key query parameter,
//  2. the X-Sentry-Auth header in custom-scheme form,
//  3. the Authorization header, either "Bearer <token>" or custom-scheme.
//
// Returns the empty string when no source yields a credential.
func ExtractCredential(r *http.Request) string {
	if key := r.URL.Query().Get(QueryParamKey); key != "" {
		return key
	}

	if header := r.Header.Get(AuthHeaderName); header != "" {
		if key := keyFromScheme(header); key != "" {
			return key
		}
	}

	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		if key := keyFromScheme(header); key != "" {
			return key
		}
	}

	return ""
}

func keyFromScheme(header string) string {
	m := credentialPattern.FindStringSubmatch(header)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

package sanitize

import (
	"net/url"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveParams = map[string]struct{}{
	"password": {}, "pass": {}, "token": {}, "access_token": {}, "refresh_token": {},
	"api_key": {}, "apikey": {}, "key": {}, "secret": {}, "client_secret": {},
	"signature": {}, "auth": {}, "authorization": {}, "session": {},
}

// SanitizeURL redacts sensitive query parameter values, keeping parameter
// order and the rest of the URL untouched.
func SanitizeURL(raw string) string {
	base, query, hasQuery := strings.Cut(raw, "?")
	if !hasQuery {
		return raw
	}
	query, fragment, hasFragment := strings.Cut(query, "#")

	if _, err := url.Parse(raw); err != nil {
		return base + "?" + redacted
	}

	parts := strings.Split(query, "&")
	for i, part := range parts {
		key, _, hasValue := strings.Cut(part, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if _, ok := sensitiveParams[strings.ToLower(name)]; ok && (hasValue || key != "") {
			parts[i] = key + "=" + redacted
		}
	}

	out := base + "?" + strings.Join(parts, "&")
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

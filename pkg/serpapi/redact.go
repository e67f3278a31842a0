package serpapi

import (
	"net/url"
	"strings"
)

// Redacted replaces secret values in URLs and messages.
const Redacted = "REDACTED"

var secretParams = []string{"api_key", "key", "apikey"}

// RedactURL replaces the values of credential query parameters with
// Redacted. Unparseable input is returned with any "api_key=" value masked.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redactQueryString(raw)
	}
	q := u.Query()
	changed := false
	for name := range q {
		if isSecretParam(name) {
			q.Set(name, Redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isSecretParam(name string) bool {
	for _, p := range secretParams {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}

// redactQueryString masks "name=value" pairs whose name is a credential
// parameter, ignoring case.
func redactQueryString(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); {
		start, end, ok := secretValueAt(raw, i)
		if !ok {
			b.WriteByte(raw[i])
			i++
			continue
		}
		b.WriteString(raw[i:start])
		b.WriteString(Redacted)
		i = end
	}
	return b.String()
}

// secretValueAt reports the value bounds when a credential parameter name
// followed by "=" starts at i on a parameter boundary.
func secretValueAt(raw string, i int) (start, end int, ok bool) {
	if i > 0 && !strings.ContainsRune("?&; ", rune(raw[i-1])) {
		return 0, 0, false
	}
	for _, p := range secretParams {
		marker := p + "="
		if len(raw)-i < len(marker) || !strings.EqualFold(raw[i:i+len(marker)], marker) {
			continue
		}
		start = i + len(marker)
		end = strings.IndexAny(raw[start:], "&# ")
		if end < 0 {
			return start, len(raw), true
		}
		return start, start + end, true
	}
	return 0, 0, false
}

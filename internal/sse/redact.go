package sse

import "net/url"

// redact strips query values, which carry the access token, from a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	for key := range q {
		q.Set(key, "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

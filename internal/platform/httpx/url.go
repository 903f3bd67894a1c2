package httpx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedURL rejects anything but absolute http(s) URLs with a host.
var ErrUnsupportedURL = errors.New("unsupported url")

// ParseRemote validates a download URL. Only http and https with a host are
// accepted; embedded credentials are refused.
func ParseRemote(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in url", ErrUnsupportedURL)
	}
	return u, nil
}

// Redact strips user info and the query for safe logging.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

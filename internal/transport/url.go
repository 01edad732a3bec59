package transport

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeURL returns the cache key form of raw with params merged into its
// query: scheme and host lower-cased, default ports and fragment dropped, a
// trailing slash trimmed from the path and the query sorted.
func NormalizeURL(raw string, params url.Values) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", eris.Wrapf(err, "transport: parse url %q", raw)
	}
	if u.Scheme == "" && u.Host == "" && u.Path != "" {
		u, err = url.Parse("https://" + strings.TrimSpace(raw))
		if err != nil {
			return "", eris.Wrapf(err, "transport: parse url %q", raw)
		}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("transport: unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return "", eris.Errorf("transport: missing host in %q", raw)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	if u.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	} else {
		u.Path = ""
	}

	q := u.Query()
	for k, vs := range params {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Origin returns scheme://host of raw, or "" if raw has no host.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

// Hostname returns the lower-cased host of raw without a leading "www.".
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" {
		if u, err = url.Parse("https://" + strings.TrimSpace(raw)); err != nil {
			return ""
		}
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

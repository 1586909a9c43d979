package store

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern extracts bare URLs from free text, grounded on
// original_source/core/link_utils.py's extraction regex.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// trackingParamPrefixes and trackingParams are stripped during
// canonicalization so the same destination collapses to one Link row
// regardless of the campaign tag it arrived with.
var trackingParamPrefixes = []string{"utm_"}
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"ref":     true,
	"ref_src": true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
}

// excludedDomainSuffixes mirrors should_archive_url's exclude_domains
// wildcard matching (*.local, *.internal) plus literal loopback hosts.
var excludedDomainSuffixes = []string{".local", ".internal"}
var excludedDomainsExact = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
}

// ExtractURLs returns every http(s) URL found in text, in order of
// appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// IsValidURL reports whether raw parses with both a scheme and a host,
// mirroring link_utils.py's is_valid_url.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// ShouldArchiveURL reports whether a URL points somewhere worth
// preserving: valid, non-loopback, non-internal.
func ShouldArchiveURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if excludedDomainsExact[host] {
		return false
	}
	for _, suffix := range excludedDomainSuffixes {
		if strings.HasSuffix(host, suffix) {
			return false
		}
	}
	return true
}

// CanonicalizeURL strips tracking query parameters and normalizes
// scheme/host case and trailing slashes, so re-shares of the same link
// collapse onto a single Link row.
func CanonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParams[lower] {
				q.Del(key)
				continue
			}
			for _, prefix := range trackingParamPrefixes {
				if strings.HasPrefix(lower, prefix) {
					q.Del(key)
					break
				}
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}

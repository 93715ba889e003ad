package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// IsValidURL checks if a URL is an absolute http(s) URL
func IsValidURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	return true
}

// NormalizeMethod upper-cases method and accepts only GET and POST
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case "":
		return http.MethodGet, nil
	case http.MethodGet, http.MethodPost:
		return m, nil
	}
	return "", fmt.Errorf("unsupported method %q (want GET or POST)", method)
}

// SplitList splits a comma separated list, trimming entries and dropping empty ones
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseHeaders turns "Name: value" lines into a header map
func ParseHeaders(lines []string) (map[string]string, error) {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed header %q (want \"Name: value\")", line)
		}
		headers[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// WithQuery appends a query parameter to rawURL, keeping the existing ones
func WithQuery(rawURL, name, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Add(name, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactURL hides userinfo passwords so a URL can be logged
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}

// Package crawl fetches a single page and reports its text and links.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Engines.
const (
	EngineBrowser = "browser"
	EngineHTTP    = "http"
)

// Crawler fetches one URL. A page the engine reached but could not load
// comes back with Success false; an error means the engine itself failed.
type Crawler interface {
	Name() string
	Crawl(ctx context.Context, rawURL string) (*Page, error)
}

// Page is the result of a crawl.
type Page struct {
	URL           string   `json:"url"`
	Success       bool     `json:"success"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	Title         string   `json:"title,omitempty"`
	Text          string   `json:"-"`
	InternalLinks []string `json:"internal_links"`
	ExternalLinks []string `json:"external_links"`
}

// WordCount is the number of whitespace-separated words in the page text.
func (p *Page) WordCount() int {
	return len(strings.Fields(p.Text))
}

// Preview returns the first n characters of the text with newlines
// flattened to spaces.
func (p *Page) Preview(n int) string {
	text := p.Text
	if utf8.RuneCountInString(text) > n {
		text = string([]rune(text)[:n])
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
}

func failed(rawURL, msg string) *Page {
	return &Page{URL: rawURL, ErrorMessage: msg}
}

// classifyLinks resolves hrefs against base and splits them by host.
// Fragments are dropped, non-http schemes are skipped and duplicates are
// removed with first-seen order kept.
func classifyLinks(base *url.URL, hrefs []string) (internal, external []string) {
	seen := make(map[string]bool)
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		abs.Fragment = ""
		s := abs.String()
		if seen[s] {
			continue
		}
		seen[s] = true

		if sameSite(base.Hostname(), abs.Hostname()) {
			internal = append(internal, s)
		} else {
			external = append(external, s)
		}
	}
	return internal, external
}

func sameSite(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}

// New returns the crawler for engine. chromeBin is only used by the
// browser engine; empty lets rod find or download a browser.
func New(engine string, timeout time.Duration, chromeBin string) (Crawler, error) {
	switch engine {
	case EngineBrowser, "":
		return NewBrowserCrawler(timeout, chromeBin), nil
	case EngineHTTP:
		return NewHTTPCrawler(timeout), nil
	default:
		return nil, fmt.Errorf("unknown crawl engine %q", engine)
	}
}

// NormalizeURL accepts a bare host and returns an absolute http(s) URL.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return u.String(), nil
}

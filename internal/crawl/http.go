package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 10 << 20

// HTTPCrawler fetches the raw HTML without running scripts.
type HTTPCrawler struct {
	client    *http.Client
	userAgent string
}

// NewHTTPCrawler creates a crawler with the given request timeout.
func NewHTTPCrawler(timeout time.Duration) *HTTPCrawler {
	return &HTTPCrawler{
		client:    &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (compatible; pipecheck/1.0)",
	}
}

func (c *HTTPCrawler) Name() string { return "http" }

func (c *HTTPCrawler) Crawl(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return failed(rawURL, err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return failed(rawURL, fmt.Sprintf("HTTP %d", resp.StatusCode)), nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return failed(rawURL, fmt.Sprintf("parse html: %v", err)), nil
	}

	ex := &extractor{}
	ex.walk(doc)

	base := resp.Request.URL
	if ex.base != "" {
		if b, err := base.Parse(ex.base); err == nil {
			base = b
		}
	}
	internal, external := classifyLinks(base, ex.hrefs)

	return &Page{
		URL:           resp.Request.URL.String(),
		Success:       true,
		Title:         strings.TrimSpace(ex.title),
		Text:          strings.Join(ex.text, "\n"),
		InternalLinks: internal,
		ExternalLinks: external,
	}, nil
}

// extractor collects the title, visible text blocks and anchor targets.
type extractor struct {
	title string
	base  string
	text  []string
	hrefs []string
}

func (e *extractor) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template", "svg":
			return
		case "title":
			if e.title == "" && n.FirstChild != nil {
				e.title = n.FirstChild.Data
			}
			return
		case "base":
			e.base = attr(n, "href")
		case "a":
			if href := attr(n, "href"); href != "" {
				e.hrefs = append(e.hrefs, href)
			}
		}
	}
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			e.text = append(e.text, s)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var _ Crawler = (*HTTPCrawler)(nil)

package check

import (
	"context"
	"fmt"
	"io"

	"pipecheck/internal/crawl"
	"pipecheck/internal/domain"
)

const (
	previewChars  = 500
	maxLinksShown = 10
)

// CrawlResult is the crawl smoke test outcome.
type CrawlResult struct {
	Outcome  domain.Outcome `json:"outcome"`
	URL      string         `json:"url"`
	Provider string         `json:"provider"`
	Engine   string         `json:"engine"`
	Words    int            `json:"words"`
	MinWords int            `json:"min_words"`
	Page     *crawl.Page    `json:"page"`
}

// Crawl fetches url with c and scores the page. Only engine failures are
// returned as errors; an unreachable page is a failed result.
func Crawl(ctx context.Context, c crawl.Crawler, url, provider string, minWords int) (*CrawlResult, error) {
	page, err := c.Crawl(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", url, err)
	}

	res := &CrawlResult{
		URL:      url,
		Provider: provider,
		Engine:   c.Name(),
		MinWords: minWords,
		Page:     page,
		Outcome:  domain.OutcomeFailed,
	}
	if page.Success {
		res.Outcome = domain.OutcomePassed
		res.Words = page.WordCount()
	}
	return res, nil
}

// LowContent reports whether the page is short enough to be a bot wall.
func (r *CrawlResult) LowContent() bool {
	return r.Page.Success && r.Words < r.MinWords
}

func (r *CrawlResult) Status() domain.Outcome { return r.Outcome }

func (r *CrawlResult) Summary() string {
	if !r.Page.Success {
		return "crawl failed: " + r.Page.ErrorMessage
	}
	return fmt.Sprintf("%d words, %d internal links", r.Words, len(r.Page.InternalLinks))
}

func (r *CrawlResult) Report(w io.Writer) {
	fmt.Fprintf(w, "Crawling: %s\n", r.URL)
	fmt.Fprintf(w, "Provider: %s\n", r.Provider)

	if !r.Page.Success {
		fmt.Fprintf(w, "FAIL: Crawl failed — %s\n", r.Page.ErrorMessage)
		return
	}

	links := r.Page.InternalLinks
	title := r.Page.Title
	if title == "" {
		title = "N/A"
	}
	fmt.Fprintln(w, "\n  OK: Crawl succeeded")
	fmt.Fprintf(w, "  Words: %d\n", r.Words)
	fmt.Fprintf(w, "  Internal links: %d\n", len(links))
	fmt.Fprintf(w, "  Title: %s\n", title)

	if r.LowContent() {
		fmt.Fprintf(w, "\n  WARNING: Only %d words — possible bot block page\n", r.Words)
	}
	if r.Page.Text != "" {
		fmt.Fprintf(w, "\n  Preview: %s...\n", r.Page.Preview(previewChars))
	}

	fmt.Fprintf(w, "\n  Links discovered: %d\n", len(links))
	if len(links) > maxLinksShown {
		links = links[:maxLinksShown]
	}
	for _, l := range links {
		fmt.Fprintf(w, "    → %s\n", l)
	}

	fmt.Fprintln(w, "\nPASS: Basic crawl working")
}

package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	textJS  = `() => document.body ? document.body.innerText : ""`
	linksJS = `() => Array.from(document.querySelectorAll("a[href]"), a => a.getAttribute("href"))`
)

// BrowserCrawler renders the page in headless Chrome, so script-built
// listings are visible.
type BrowserCrawler struct {
	timeout time.Duration
	bin     string
}

func NewBrowserCrawler(timeout time.Duration, chromeBin string) *BrowserCrawler {
	return &BrowserCrawler{timeout: timeout, bin: chromeBin}
}

func (c *BrowserCrawler) Name() string { return "browser" }

func (c *BrowserCrawler) Crawl(ctx context.Context, rawURL string) (*Page, error) {
	l := launcher.New().Headless(true)
	if c.bin != "" {
		l = l.Bin(c.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if c.timeout > 0 {
		page = page.Timeout(c.timeout)
	}

	if err := page.Navigate(rawURL); err != nil {
		return failed(rawURL, err.Error()), nil
	}
	if err := page.WaitLoad(); err != nil {
		return failed(rawURL, fmt.Sprintf("wait load: %v", err)), nil
	}

	info, err := page.Info()
	if err != nil {
		return failed(rawURL, fmt.Sprintf("page info: %v", err)), nil
	}

	text, err := page.Eval(textJS)
	if err != nil {
		return failed(rawURL, fmt.Sprintf("read text: %v", err)), nil
	}

	res, err := page.Eval(linksJS)
	if err != nil {
		return failed(rawURL, fmt.Sprintf("read links: %v", err)), nil
	}
	var hrefs []string
	for _, v := range res.Value.Arr() {
		hrefs = append(hrefs, v.Str())
	}

	base, err := url.Parse(info.URL)
	if err != nil {
		base, _ = url.Parse(rawURL)
	}
	internal, external := classifyLinks(base, hrefs)

	return &Page{
		URL:           info.URL,
		Success:       true,
		Title:         info.Title,
		Text:          text.Value.Str(),
		InternalLinks: internal,
		ExternalLinks: external,
	}, nil
}

var _ Crawler = (*BrowserCrawler)(nil)

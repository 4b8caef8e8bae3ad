package check_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pipecheck/internal/check"
	"pipecheck/internal/crawl"
	"pipecheck/internal/dbclient"
	"pipecheck/internal/domain"
)

// fakeStore knows a fixed set of tables and how many rows each holds.
type fakeStore struct {
	rows   map[string]int
	limits []int
}

func (s *fakeStore) Select(ctx context.Context, table string, columns []string, limit int) (*dbclient.QueryPage, error) {
	s.limits = append(s.limits, limit)
	n, ok := s.rows[table]
	if !ok {
		return nil, &dbclient.QueryError{Table: table, Message: fmt.Sprintf(`relation "public.%s" does not exist`, table)}
	}
	page := &dbclient.QueryPage{Columns: columns}
	for i := 0; i < n && i < limit; i++ {
		page.Rows = append(page.Rows, make([]any, len(columns)))
	}
	return page, nil
}

func TestCheckTables_ProbesEveryTable(t *testing.T) {
	store := &fakeStore{rows: map[string]int{"sources": 3, "business_listings": 0, "buyer_profiles": 1}}

	res := check.CheckTables(context.Background(), store, domain.DefaultTables())

	if len(store.limits) != 4 {
		t.Fatalf("expected 4 probes, got %d", len(store.limits))
	}
	for _, l := range store.limits {
		if l != 1 {
			t.Errorf("probe limit %d, want 1", l)
		}
	}
	if res.Passed != 3 || res.Failed != 1 || res.Status() != domain.OutcomeFailed {
		t.Errorf("got %d passed, %d failed, %s", res.Passed, res.Failed, res.Status())
	}
	if res.Tables[0].Rows != 1 {
		t.Errorf("sources rows: %d", res.Tables[0].Rows)
	}

	var b strings.Builder
	res.Report(&b)
	out := b.String()
	for _, want := range []string{
		"  OK: sources — accessible, 1 rows, columns verified",
		`  FAIL: crawled_pages — relation "public.crawled_pages" does not exist`,
		"Result: 3 passed, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(res.Summary(), "crawled_pages") {
		t.Errorf("summary: %s", res.Summary())
	}
}

func TestCheckTables_AllPass(t *testing.T) {
	store := &fakeStore{rows: map[string]int{"sources": 0}}
	res := check.CheckTables(context.Background(), store, []domain.TableSpec{{Name: "sources", Columns: []string{"source_id"}}})
	if res.Status() != domain.OutcomePassed || res.Status().ExitCode() != 0 {
		t.Errorf("outcome: %s", res.Status())
	}
}

type fakeCrawler struct {
	page *crawl.Page
	err  error
}

func (c fakeCrawler) Name() string { return "fake" }

func (c fakeCrawler) Crawl(ctx context.Context, url string) (*crawl.Page, error) {
	return c.page, c.err
}

func TestCrawl_Report(t *testing.T) {
	var links []string
	for i := 0; i < 12; i++ {
		links = append(links, fmt.Sprintf("https://acquire.com/listing/%d", i))
	}
	text := strings.Repeat("word ", 60) + "\n" + strings.Repeat("x", 600)
	c := fakeCrawler{page: &crawl.Page{Success: true, Text: text, InternalLinks: links}}

	res, err := check.Crawl(context.Background(), c, "https://acquire.com/marketplace", "openai/gpt-4o", 50)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Status() != domain.OutcomePassed || res.Words != 61 {
		t.Fatalf("outcome %s words %d", res.Status(), res.Words)
	}

	var b strings.Builder
	res.Report(&b)
	out := b.String()

	if !strings.Contains(out, "Title: N/A") {
		t.Errorf("missing N/A title:\n%s", out)
	}
	if strings.Contains(out, "WARNING") {
		t.Errorf("unexpected warning:\n%s", out)
	}
	if !strings.Contains(out, "listing/9\n") || strings.Contains(out, "listing/10") {
		t.Errorf("expected exactly the first 10 links:\n%s", out)
	}
	if !strings.HasSuffix(out, "PASS: Basic crawl working\n") {
		t.Errorf("missing PASS line:\n%s", out)
	}
	preview := out[strings.Index(out, "Preview: ")+len("Preview: "):]
	preview = preview[:strings.Index(preview, "...")]
	if len(preview) != 500 || strings.Contains(preview, "\n") {
		t.Errorf("preview length %d", len(preview))
	}
}

func TestCrawl_LowContentWarns(t *testing.T) {
	c := fakeCrawler{page: &crawl.Page{Success: true, Title: "Just a moment...", Text: "Checking your browser"}}
	res, _ := check.Crawl(context.Background(), c, "https://acquire.com", "deepseek/deepseek-chat", 50)

	var b strings.Builder
	res.Report(&b)
	if !strings.Contains(b.String(), "WARNING: Only 3 words") {
		t.Errorf("missing warning:\n%s", b.String())
	}
	if res.Status() != domain.OutcomePassed {
		t.Errorf("low content should still pass, got %s", res.Status())
	}
}

func TestCrawl_Failed(t *testing.T) {
	c := fakeCrawler{page: &crawl.Page{ErrorMessage: "HTTP 403"}}
	res, err := check.Crawl(context.Background(), c, "https://acquire.com", "openai/gpt-4o", 50)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Status() != domain.OutcomeFailed {
		t.Errorf("outcome: %s", res.Status())
	}
	var b strings.Builder
	res.Report(&b)
	if !strings.Contains(b.String(), "FAIL: Crawl failed — HTTP 403") {
		t.Errorf("report:\n%s", b.String())
	}

	_, err = check.Crawl(context.Background(), fakeCrawler{err: errors.New("no chrome")}, "https://acquire.com", "", 50)
	if err == nil {
		t.Error("expected engine error")
	}
}

package dbclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pipecheck/internal/domain"
)

// restConnector talks to a PostgREST gateway, which is how Supabase exposes
// its Postgres tables. Column names are resolved by Postgres itself, so an
// unknown column comes back as a 400 with SQLSTATE 42703.
type restConnector struct {
	baseURL string // .../rest/v1
	key     string
	client  *http.Client
}

// restError is the PostgREST error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func newRESTConnector(conn *domain.DatabaseConnection, key string) (*restConnector, error) {
	if conn.URL == "" {
		return nil, fmt.Errorf("postgrest: url is required")
	}
	u, err := url.Parse(conn.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("postgrest: invalid url %q", conn.URL)
	}
	base := strings.TrimRight(conn.URL, "/")
	if !strings.HasSuffix(base, "/rest/v1") {
		base += "/rest/v1"
	}
	return &restConnector{
		baseURL: base,
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *restConnector) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *restConnector) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, c.baseURL+"/")
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("postgrest: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *restConnector) Select(ctx context.Context, table string, columns []string, limit int) (*QueryPage, error) {
	q := url.Values{}
	q.Set("select", strings.Join(columns, ","))
	q.Set("limit", strconv.Itoa(limit))
	req, err := c.newRequest(ctx, c.baseURL+"/"+url.PathEscape(table)+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, parseRESTError(table, resp.StatusCode, body)
	}

	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	page := &QueryPage{Columns: columns}
	for _, item := range items {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = item[col]
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

// parseRESTError keeps the gateway's message verbatim; bodies that are not
// PostgREST JSON fall back to the raw text or the status line.
func parseRESTError(table string, status int, body []byte) *QueryError {
	qe := &QueryError{Table: table, Status: status}
	var re restError
	if err := json.Unmarshal(body, &re); err == nil && re.Message != "" {
		qe.Code = re.Code
		qe.Message = re.Message
		qe.Details = re.Details
		qe.Hint = re.Hint
		return qe
	}
	qe.Message = strings.TrimSpace(string(body))
	if qe.Message == "" {
		qe.Message = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	return qe
}

func (c *restConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

package check

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pipecheck/internal/domain"
)

// TableResult is the probe result for one table.
type TableResult struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	OK      bool     `json:"ok"`
	Rows    int      `json:"rows"`
	Error   string   `json:"error,omitempty"`
}

// TablesResult aggregates every table probe.
type TablesResult struct {
	Outcome domain.Outcome `json:"outcome"`
	Tables  []TableResult  `json:"tables"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
}

// CheckTables selects the expected columns from each table with limit 1.
// Every table is probed, whatever the earlier ones returned.
func CheckTables(ctx context.Context, store Store, specs []domain.TableSpec) *TablesResult {
	res := &TablesResult{Tables: make([]TableResult, 0, len(specs))}
	for _, spec := range specs {
		tr := TableResult{Table: spec.Name, Columns: spec.Columns}
		page, err := store.Select(ctx, spec.Name, spec.Columns, 1)
		if err != nil {
			tr.Error = err.Error()
			res.Failed++
		} else {
			tr.OK = true
			tr.Rows = page.Len()
			res.Passed++
		}
		res.Tables = append(res.Tables, tr)
	}

	res.Outcome = domain.OutcomePassed
	if res.Failed > 0 {
		res.Outcome = domain.OutcomeFailed
	}
	return res
}

func (r *TablesResult) Status() domain.Outcome { return r.Outcome }

func (r *TablesResult) Summary() string {
	if r.Failed == 0 {
		return fmt.Sprintf("%d passed, %d failed", r.Passed, r.Failed)
	}
	var names []string
	for _, t := range r.Tables {
		if !t.OK {
			names = append(names, t.Table)
		}
	}
	return fmt.Sprintf("%d passed, %d failed (%s)", r.Passed, r.Failed, strings.Join(names, ", "))
}

func (r *TablesResult) Report(w io.Writer) {
	for _, t := range r.Tables {
		if t.OK {
			fmt.Fprintf(w, "  OK: %s — accessible, %d rows, columns verified\n", t.Table, t.Rows)
		} else {
			fmt.Fprintf(w, "  FAIL: %s — %s\n", t.Table, t.Error)
		}
	}
	fmt.Fprintf(w, "\nResult: %d passed, %d failed\n", r.Passed, r.Failed)
}

package schema

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pipecheck/internal/dbclient"
	"pipecheck/internal/domain"
)

// Prober is a live table that can resolve column names.
type Prober interface {
	Name() string
	Select(ctx context.Context, columns []string, limit int) (*dbclient.QueryPage, error)
}

// Result is the outcome of ValidateMapping. Only Validated results carry the
// mapping report; a SchemaMismatch carries the store's error text instead.
type Result struct {
	Outcome  domain.Outcome `json:"outcome"`
	Table    string         `json:"table"`
	Probed   []string       `json:"probed"`
	Direct   []FieldPair    `json:"direct,omitempty"`
	Overflow []FieldPair    `json:"overflow,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ProbeColumns returns the ordered, duplicate-free union of the direct map's
// columns and the structural columns.
func ProbeColumns(direct DirectMap) []string {
	seen := make(map[string]bool, len(direct)+len(StructuralColumns))
	out := make([]string, 0, len(direct)+len(StructuralColumns))
	for _, col := range append(direct.Columns(), StructuralColumns...) {
		if seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	return out
}

// ValidateMapping confirms that every column the mapping writes to exists on
// table, using a single zero-row select. It returns an error only when the
// mapping itself is malformed; store rejections are a SchemaMismatch result.
func ValidateMapping(ctx context.Context, direct DirectMap, overflow OverflowFields, table Prober) (*Result, error) {
	if err := (Mapping{Direct: direct, Overflow: overflow}).Check(); err != nil {
		return nil, err
	}

	res := &Result{Table: table.Name(), Probed: ProbeColumns(direct)}
	if _, err := table.Select(ctx, res.Probed, 0); err != nil {
		res.Outcome = domain.OutcomeSchemaMismatch
		res.Error = err.Error()
		return res, nil
	}

	res.Outcome = domain.OutcomeValidated
	res.Direct = append([]FieldPair(nil), direct...)
	res.Overflow = make([]FieldPair, len(overflow))
	for i, f := range overflow {
		res.Overflow[i] = FieldPair{Field: f, Column: MetadataColumn}
	}
	return res, nil
}

// Status returns the run outcome.
func (r *Result) Status() domain.Outcome { return r.Outcome }

// Summary is a one-line description for logs and history.
func (r *Result) Summary() string {
	if r.Outcome != domain.OutcomeValidated {
		return "column check failed: " + r.Error
	}
	return fmt.Sprintf("%d direct, %d overflow fields validated against %s", len(r.Direct), len(r.Overflow), r.Table)
}

// Report writes the human-readable audit report.
func (r *Result) Report(w io.Writer) {
	if r.Outcome != domain.OutcomeValidated {
		fmt.Fprintf(w, "  FAIL: Column check failed — %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "  OK: All direct-mapped columns exist in %s\n", r.Table)

	fmt.Fprintln(w, "\n  Direct mappings:")
	for _, p := range r.Direct {
		fmt.Fprintf(w, "    %-25s → %s\n", p.Field, p.Column)
	}

	fmt.Fprintln(w, "\n  Metadata overflow fields:")
	for _, p := range r.Overflow {
		fmt.Fprintf(w, "    %-25s → %s.%s\n", p.Field, p.Column, p.Field)
	}

	fmt.Fprintln(w, "\nPASS: Schema mapping validated")
}

// String renders the report.
func (r *Result) String() string {
	var b strings.Builder
	r.Report(&b)
	return b.String()
}

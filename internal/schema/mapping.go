// Package schema declares how DealListing records land in the
// business_listings table and checks that declaration against the live table.
package schema

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Table is the destination table for DealListing records.
const Table = "business_listings"

// MetadataColumn is the jsonb catch-all that absorbs overflow fields.
const MetadataColumn = "metadata"

// StructuralColumns exist on every business_listings row regardless of mapping.
var StructuralColumns = []string{MetadataColumn, "embedding", "listing_id", "tags"}

var (
	ErrEmptyMap       = errors.New("direct map is empty")
	ErrDuplicateField = errors.New("duplicate field")
	ErrOverlap        = errors.New("field is both direct-mapped and overflow")
)

// FieldPair pairs a record field with the column it lands in.
type FieldPair struct {
	Field  string `json:"field"`
	Column string `json:"column"`
}

// DirectMap is an ordered field → column mapping.
type DirectMap []FieldPair

// DefaultDirectMap returns the DealListing → business_listings mapping.
func DefaultDirectMap() DirectMap {
	return DirectMap{
		{Field: "business_name", Column: "company_name"},
		{Field: "asking_price", Column: "asking_price"},
		{Field: "annual_revenue", Column: "revenue_estimate"},
		{Field: "arr", Column: "annual_recurring_revenue"},
		{Field: "net_profit", Column: "profit_estimate"},
		{Field: "location", Column: "location"},
		{Field: "listing_url", Column: "url"},
		{Field: "source_marketplace", Column: "source_id"},
	}
}

// Columns returns the destination columns in order, duplicates included.
func (m DirectMap) Columns() []string {
	out := make([]string, len(m))
	for i, p := range m {
		out[i] = p.Column
	}
	return out
}

// UnmarshalYAML decodes a YAML mapping node, keeping key order.
func (m *DirectMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: direct map must be a mapping", node.Line)
	}
	out := make(DirectMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: direct map entries must be scalar", k.Line)
		}
		out = append(out, FieldPair{Field: k.Value, Column: v.Value})
	}
	*m = out
	return nil
}

// OverflowFields lists DealListing fields stored under metadata.<field>.
type OverflowFields []string

// DefaultOverflowFields returns the DealListing fields without a dedicated column.
func DefaultOverflowFields() OverflowFields {
	return OverflowFields{
		"mrr",
		"business_model", // also feeds category
		"vertical",
		"tech_stack",
		"date_founded",
		"churn_rate",
		"customer_count",
		"growth_trend",
	}
}

// Mapping bundles both halves of the record layout.
type Mapping struct {
	Direct   DirectMap      `yaml:"direct" json:"direct"`
	Overflow OverflowFields `yaml:"overflow" json:"overflow"`
}

// DefaultMapping returns the built-in DealListing layout.
func DefaultMapping() Mapping {
	return Mapping{Direct: DefaultDirectMap(), Overflow: DefaultOverflowFields()}
}

// Check verifies the mapping invariants: a non-empty direct map, unique
// field names on both sides and no field in both.
func (m Mapping) Check() error {
	if len(m.Direct) == 0 {
		return ErrEmptyMap
	}
	direct := make(map[string]bool, len(m.Direct))
	for _, p := range m.Direct {
		if direct[p.Field] {
			return fmt.Errorf("%w: %q in direct map", ErrDuplicateField, p.Field)
		}
		direct[p.Field] = true
	}
	seen := make(map[string]bool, len(m.Overflow))
	for _, f := range m.Overflow {
		if direct[f] {
			return fmt.Errorf("%w: %q", ErrOverlap, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: %q in overflow list", ErrDuplicateField, f)
		}
		seen[f] = true
	}
	return nil
}

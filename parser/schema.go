package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/hyppado-ingest/models"
)

// Field maps one record field to the header aliases it may appear under and
// the coercion that assigns a cell to the row builder T.
type Field[T any] struct {
	Name     string
	Headers  []string
	Required bool
	Set      func(dst *T, cell string)
}

// Schema is the column table for one record kind.
type Schema[T any] struct {
	Kind   models.RecordKind
	Fields []Field[T]
}

// Binding is a schema resolved against a concrete header row.
type Binding[T any] struct {
	schema  *Schema[T]
	columns []int // column index per field, -1 when absent
}

// MissingColumnsError reports required fields absent from a header row.
type MissingColumnsError struct {
	Kind   models.RecordKind
	Fields []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s export is missing required columns: %s", e.Kind, strings.Join(e.Fields, ", "))
}

// Bind matches header cells to fields by folded alias so column order and
// header spelling ("Receita", "Revenue(R$)") do not matter. Each column is
// claimed by at most one field, in schema order.
func (s *Schema[T]) Bind(header models.RawRow) (Binding[T], error) {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		folded := FoldHeader(cell)
		if folded == "" {
			continue
		}
		if _, dup := positions[folded]; !dup {
			positions[folded] = i
		}
	}

	claimed := make(map[int]bool, len(header))
	columns := make([]int, len(s.Fields))
	var missing []string
	for fi, field := range s.Fields {
		columns[fi] = -1
		for _, alias := range field.Headers {
			idx, ok := positions[FoldHeader(alias)]
			if ok && !claimed[idx] {
				columns[fi] = idx
				claimed[idx] = true
				break
			}
		}
		if columns[fi] < 0 && field.Required {
			missing = append(missing, field.Name)
		}
	}

	if len(missing) > 0 {
		return Binding[T]{}, &MissingColumnsError{Kind: s.Kind, Fields: missing}
	}
	return Binding[T]{schema: s, columns: columns}, nil
}

// Apply assigns every bound cell of row to dst.
func (b Binding[T]) Apply(dst *T, row models.RawRow) {
	for fi, field := range b.schema.Fields {
		idx := b.columns[fi]
		if idx < 0 || field.Set == nil {
			continue
		}
		cell := ""
		if idx < len(row) {
			cell = row[idx]
		}
		field.Set(dst, cell)
	}
}

// Bound lists the names of fields found in the header.
func (b Binding[T]) Bound() []string {
	var names []string
	for fi, field := range b.schema.Fields {
		if b.columns[fi] >= 0 {
			names = append(names, field.Name)
		}
	}
	return names
}

// Validate checks the table itself: every field needs aliases and no alias
// may be claimed by two fields.
func (s *Schema[T]) Validate() error {
	seen := make(map[string]string)
	for _, field := range s.Fields {
		if len(field.Headers) == 0 {
			return fmt.Errorf("%s schema: field %s has no headers", s.Kind, field.Name)
		}
		if field.Set == nil {
			return fmt.Errorf("%s schema: field %s has no setter", s.Kind, field.Name)
		}
		for _, alias := range field.Headers {
			folded := FoldHeader(alias)
			if owner, ok := seen[folded]; ok {
				return fmt.Errorf("%s schema: header %q used by %s and %s", s.Kind, alias, owner, field.Name)
			}
			seen[folded] = field.Name
		}
	}
	return nil
}

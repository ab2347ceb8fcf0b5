// Package payload models the loosely shaped data returned by market-data
// providers as a small tagged variant, so it can be rendered or serialized
// without reflection on arbitrary maps.
package payload

import (
	"encoding/json"
	"math"
	"time"

	"github.com/mauv0809/stock-ratios/internal/models"
)

// Kind tags the shape held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindTimestamp
	KindSequence
	KindMapping
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTimestamp:
		return "timestamp"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindTable:
		return "table"
	}
	return "null"
}

// Value is one node of a provider payload. Only the field matching Kind is set.
type Value struct {
	Kind   Kind
	Scalar any // string, float64 or bool
	Time   time.Time
	Items  []Value
	Fields []Field
	Table  *Table
}

// Field is one entry of a mapping. Mappings keep their key order.
type Field struct {
	Key   string
	Value Value
}

// Table is a labelled grid: one row per label, one cell per column.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row is a labelled table row.
type Row struct {
	Label string
	Cells []Value
}

func Null() Value { return Value{Kind: KindNull} }

func Scalar(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{Kind: KindScalar, Scalar: v}
}

func Timestamp(t time.Time) Value { return Value{Kind: KindTimestamp, Time: t} }

func Sequence(items ...Value) Value { return Value{Kind: KindSequence, Items: items} }

func Mapping(fields ...Field) Value { return Value{Kind: KindMapping, Fields: fields} }

func TableOf(t *Table) Value {
	if t == nil {
		return Null()
	}
	return Value{Kind: KindTable, Table: t}
}

// Get returns the mapping field named key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// IsEmpty reports whether the value carries no data at all.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindSequence:
		return len(v.Items) == 0
	case KindMapping:
		return len(v.Fields) == 0
	case KindTable:
		return len(v.Table.Rows) == 0
	}
	return false
}

// FromStatement renders a statement as a table, periods newest first as columns.
func FromStatement(s models.Statement) Value {
	if len(s) == 0 {
		return Null()
	}
	periods := s.Periods()
	t := &Table{Columns: periods}
	for _, label := range s.Labels() {
		row := Row{Label: label, Cells: make([]Value, len(periods))}
		for i, p := range periods {
			if v := s[label][p]; v != nil {
				row.Cells[i] = Scalar(*v)
			} else {
				row.Cells[i] = Null()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return TableOf(t)
}

// Interface converts the value back into plain Go values suitable for encoding/json.
// Tables become {"columns": [...], "rows": {label: [...]}}.
func (v Value) Interface() any {
	switch v.Kind {
	case KindScalar:
		if f, ok := v.Scalar.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			return nil
		}
		return v.Scalar
	case KindTimestamp:
		return v.Time.Format(time.RFC3339)
	case KindSequence:
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Interface()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Key] = f.Value.Interface()
		}
		return out
	case KindTable:
		rows := make(map[string]any, len(v.Table.Rows))
		for _, r := range v.Table.Rows {
			cells := make([]any, len(r.Cells))
			for i, c := range r.Cells {
				cells[i] = c.Interface()
			}
			rows[r.Label] = cells
		}
		return map[string]any{
			"columns": v.Table.Columns,
			"rows":    rows,
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

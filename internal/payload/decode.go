package payload

import (
	"sort"
	"strconv"
	"time"
)

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FromJSON builds a Value from a decoded JSON tree (the result of unmarshalling
// into any). Objects become mappings with sorted keys, date strings become
// timestamps, and arrays of objects sharing keys become tables.
// Yahoo style {"raw": x, "fmt": "..."} wrappers collapse to their raw value.
func FromJSON(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case bool, float64:
		return Scalar(v)
	case int:
		return Scalar(float64(v))
	case int64:
		return Scalar(float64(v))
	case string:
		if t, ok := parseTimestamp(v); ok {
			return Timestamp(t)
		}
		return Scalar(v)
	case map[string]any:
		if inner, ok := unwrapFormatted(v); ok {
			return FromJSON(inner)
		}
		return fromObject(v)
	case []any:
		if t := tableFromRecords(v); t != nil {
			return TableOf(t)
		}
		items := make([]Value, 0, len(v))
		for _, it := range v {
			items = append(items, FromJSON(it))
		}
		return Sequence(items...)
	}
	return Null()
}

func fromObject(m map[string]any) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: FromJSON(m[k])})
	}
	return Mapping(fields...)
}

// unwrapFormatted detects {"raw": ..., "fmt": ...} and {} (an empty
// formatted value) objects.
func unwrapFormatted(m map[string]any) (any, bool) {
	if len(m) == 0 {
		return nil, false
	}
	raw, hasRaw := m["raw"]
	if !hasRaw {
		return nil, false
	}
	for k := range m {
		if k != "raw" && k != "fmt" && k != "longFmt" {
			return nil, false
		}
	}
	return raw, true
}

// tableFromRecords turns a non-empty array of flat objects into a table with
// one row per record and one column per key. Records containing nested
// objects or arrays stay a sequence.
func tableFromRecords(items []any) *Table {
	if len(items) == 0 {
		return nil
	}
	colSet := make(map[string]struct{})
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil
		}
		for k, v := range obj {
			switch vv := v.(type) {
			case []any:
				return nil
			case map[string]any:
				if _, ok := unwrapFormatted(vv); !ok {
					return nil
				}
			}
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := &Table{Columns: cols}
	for i, it := range items {
		obj := it.(map[string]any)
		row := Row{Label: strconv.Itoa(i), Cells: make([]Value, len(cols))}
		for j, c := range cols {
			if v, ok := obj[c]; ok {
				row.Cells[j] = FromJSON(v)
			} else {
				row.Cells[j] = Null()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02") {
		return time.Time{}, false
	}
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

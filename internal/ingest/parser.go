package ingest

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/stock-ratios/internal/models"
)

// acronyms keeps well-known abbreviations upper-cased in generated labels.
var acronyms = map[string]string{
	"Ebit":   "EBIT",
	"Ebitda": "EBITDA",
	"Eps":    "EPS",
	"Ppe":    "PPE",
	"Esg":    "ESG",
}

// labelFromKey turns a provider's camelCase line-item key into the
// human-readable label used by the ratio lookups:
// "totalCurrentAssets" -> "Total Current Assets".
func labelFromKey(key string) string {
	var words []string
	var cur []rune
	runes := []rune(key)
	for i, r := range runes {
		if r == '_' || r == ' ' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = cur[:0]
			}
			continue
		}
		boundary := unicode.IsUpper(r) && len(cur) > 0 &&
			(!unicode.IsUpper(cur[len(cur)-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1])))
		if boundary {
			words = append(words, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}

	for i, w := range words {
		r, n := utf8.DecodeRuneInString(w)
		w = string(unicode.ToUpper(r)) + w[n:]
		if a, ok := acronyms[w]; ok {
			w = a
		}
		words[i] = w
	}
	return strings.Join(words, " ")
}

// numberFrom extracts a number from a decoded JSON value. Providers send
// plain numbers, numeric strings, or Yahoo's {"raw": n, "fmt": "..."} wrappers.
func numberFrom(v any) *float64 {
	switch vv := v.(type) {
	case float64:
		return &vv
	case int:
		f := float64(vv)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(vv, ",", ""))
		if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "null") {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	case map[string]any:
		if raw, ok := vv["raw"]; ok {
			return numberFrom(raw)
		}
	}
	return nil
}

// decimalFrom is numberFrom for snapshot values.
func decimalFrom(v any) *decimal.Decimal {
	switch vv := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(vv))
		if err != nil {
			return nil
		}
		return &d
	case map[string]any:
		if raw, ok := vv["raw"]; ok {
			return decimalFrom(raw)
		}
	}
	f := numberFrom(v)
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

// getString safely extracts a string field.
func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// getMap safely extracts a nested object.
func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

// getRecords safely extracts an array of objects.
func getRecords(m map[string]any, key string) []map[string]any {
	if m == nil {
		return nil
	}
	items, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if rec, ok := it.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// periodFrom normalizes a record date to YYYY-MM-DD. It accepts ISO strings,
// Yahoo {"raw": epoch, "fmt": "2024-09-28"} objects and bare epochs.
func periodFrom(v any) string {
	switch vv := v.(type) {
	case string:
		if len(vv) >= 10 {
			if t, err := time.Parse("2006-01-02", vv[:10]); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return vv
	case float64:
		return time.Unix(int64(vv), 0).UTC().Format("2006-01-02")
	case map[string]any:
		if f, ok := vv["fmt"].(string); ok && f != "" {
			return periodFrom(f)
		}
		if raw, ok := vv["raw"]; ok {
			return periodFrom(raw)
		}
	}
	return ""
}

// statementFromRecords builds a Statement from per-period records keyed by
// camelCase line items. dateKey names the field holding the period; keys in
// skip are metadata, not line items.
func statementFromRecords(records []map[string]any, dateKey string, skip ...string) models.Statement {
	skipSet := map[string]struct{}{dateKey: {}}
	for _, k := range skip {
		skipSet[k] = struct{}{}
	}

	s := models.Statement{}
	for _, rec := range records {
		period := periodFrom(rec[dateKey])
		if period == "" {
			continue // Skip records without a period
		}
		for key, raw := range rec {
			if _, ok := skipSet[key]; ok {
				continue
			}
			s.Set(labelFromKey(key), period, numberFrom(raw))
		}
	}
	return s
}

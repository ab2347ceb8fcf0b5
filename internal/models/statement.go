package models

import (
	"sort"
	"strings"
)

// Statement maps a line-item label to its values by reporting period.
// Periods are ISO dates (YYYY-MM-DD) so they sort chronologically as strings.
// A nil value means the provider returned the line item without a number.
type Statement map[string]map[string]*float64

// Set records a value for label in period.
func (s Statement) Set(label, period string, v *float64) {
	row, ok := s[label]
	if !ok {
		row = make(map[string]*float64)
		s[label] = row
	}
	row[period] = v
}

// Periods returns every period in the statement, most recent first.
func (s Statement) Periods() []string {
	seen := make(map[string]struct{})
	for _, row := range s {
		for p := range row {
			seen[p] = struct{}{}
		}
	}
	periods := make([]string, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(periods)))
	return periods
}

// Latest returns the label's value in the most recent period of the statement.
// It reports false when the label is absent or has no number in that period.
func (s Statement) Latest(label string) (float64, bool) {
	row, ok := s[label]
	if !ok {
		return 0, false
	}
	periods := s.Periods()
	if len(periods) == 0 {
		return 0, false
	}
	v := row[periods[0]]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Labels returns the statement's line-item labels sorted alphabetically.
func (s Statement) Labels() []string {
	labels := make([]string, 0, len(s))
	for l := range s {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Float returns a pointer to v, for building statements.
func Float(v float64) *float64 {
	return &v
}

// ParseTickers splits a comma-separated list, trimming whitespace and dropping
// empty entries. When upper is set the symbols are upper-cased.
func ParseTickers(input string, upper bool) []string {
	var tickers []string
	for _, part := range strings.Split(input, ",") {
		t := strings.TrimSpace(part)
		if t == "" {
			continue
		}
		if upper {
			t = strings.ToUpper(t)
		}
		tickers = append(tickers, t)
	}
	return tickers
}

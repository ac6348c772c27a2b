package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// validColumn matches the column names a RunFilter may interpolate.
var validColumn = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RunFilter selects recorded runs. Empty fields match every run.
type RunFilter struct {
	Input       string
	MCU         string
	Fingerprint string
	Template    string
	Layout      string

	// Limit caps the number of runs; zero or less means no limit.
	Limit int

	// OldestFirst orders by ascending seq instead of newest first.
	OldestFirst bool
}

// equals is one "column = ?" predicate.
type equals struct {
	column string
	value  string
}

func (f RunFilter) predicates() []equals {
	var out []equals
	add := func(column, value string) {
		if value != "" {
			out = append(out, equals{column, value})
		}
	}
	add("input", f.Input)
	add("mcu", f.MCU)
	add("fingerprint", f.Fingerprint)
	add("template", f.Template)
	add("layout", f.Layout)
	// Column order fixes the SQL text for a given set of fields.
	sort.Slice(out, func(i, j int) bool { return out[i].column < out[j].column })
	return out
}

// compile converts f to parameterized SQL. Values are always bound, and
// every query orders by seq with id as the tiebreaker.
func (f RunFilter) compile() (string, []any, error) {
	var (
		where  []string
		params []any
	)
	for _, p := range f.predicates() {
		if !validColumn.MatchString(p.column) {
			return "", nil, fmt.Errorf("invalid column %q", p.column)
		}
		where = append(where, p.column+" = ?")
		params = append(params, p.value)
	}

	var b strings.Builder
	b.WriteString("SELECT id, seq, input, mcu, fingerprint, template, layout, files, generator_version FROM generation_runs")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if f.OldestFirst {
		b.WriteString(" ORDER BY seq ASC, id COLLATE BINARY ASC")
	} else {
		b.WriteString(" ORDER BY seq DESC, id COLLATE BINARY ASC")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(" LIMIT ?")
	params = append(params, limit)
	return b.String(), params, nil
}

// FindRuns returns the runs matching f.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	query, params, err := f.compile()
	if err != nil {
		return nil, fmt.Errorf("compile run filter: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return collectRuns(rows)
}

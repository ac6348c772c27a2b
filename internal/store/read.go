package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/ir"
)

// PinTable loads the indexed pin table for mcu. An empty vendor matches
// every vendor; when two vendors index the same row the one sorting last
// wins. It fails with UNKNOWN_MCU when no rows exist.
func (s *Store) PinTable(ctx context.Context, vendor, mcu string) (*afdb.PinTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pin, signal, af
		FROM af_entries
		WHERE mcu = ? AND (? = '' OR vendor = ?)
		ORDER BY vendor COLLATE BINARY ASC, pin COLLATE BINARY ASC, signal COLLATE BINARY ASC
	`, mcu, vendor, vendor)
	if err != nil {
		return nil, fmt.Errorf("query af entries: %w", err)
	}
	defer rows.Close()

	var entries []afdb.Entry
	for rows.Next() {
		var e afdb.Entry
		var af int
		if err := rows.Scan(&e.Pin, &e.Signal, &af); err != nil {
			return nil, fmt.Errorf("scan af entry: %w", err)
		}
		e.AF = uint8(af)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate af entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, ir.NewUnknownMCU(mcu)
	}
	return afdb.NewPinTable(entries), nil
}

// Resolver returns an AF resolver for mcu backed by the index. It resolves
// exactly like a resolver built from the archive the rows came from.
func (s *Store) Resolver(ctx context.Context, vendor, mcu string) (*afdb.MCUResolver, error) {
	t, err := s.PinTable(ctx, vendor, mcu)
	if err != nil {
		return nil, err
	}
	return afdb.NewTableResolver(mcu, t), nil
}

// MCUs lists the indexed parts, sorted. An empty vendor lists all vendors.
//
// Returns an empty slice (not nil) when nothing is indexed.
func (s *Store) MCUs(ctx context.Context, vendor string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT mcu
		FROM af_entries
		WHERE ? = '' OR vendor = ?
		ORDER BY mcu COLLATE BINARY ASC
	`, vendor, vendor)
	if err != nil {
		return nil, fmt.Errorf("query mcus: %w", err)
	}
	defer rows.Close()

	mcus := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan mcu: %w", err)
		}
		mcus = append(mcus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mcus: %w", err)
	}
	return mcus, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.FindRuns(ctx, RunFilter{Limit: limit})
}

// RunsByFingerprint returns every run that generated from an IR with the
// given fingerprint, oldest first.
func (s *Store) RunsByFingerprint(ctx context.Context, fingerprint string) ([]Run, error) {
	return s.FindRuns(ctx, RunFilter{Fingerprint: fingerprint, OldestFirst: true})
}

// collectRuns drains rows into runs and closes them. Returns an empty slice
// (not nil) when there are no rows.
func collectRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var files string
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.Input, &r.MCU, &r.Fingerprint,
			&r.Template, &r.Layout, &files, &r.GeneratorVersion,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		f, err := unmarshalFiles(files)
		if err != nil {
			return nil, err
		}
		r.Files = f
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

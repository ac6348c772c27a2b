package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/bspgen/internal/afdb"
	"github.com/roach88/bspgen/internal/ir"
)

// Run is one recorded generate invocation.
type Run struct {
	ID               string   `json:"id"`
	Seq              int64    `json:"seq"`
	Input            string   `json:"input"`
	MCU              string   `json:"mcu"`
	Fingerprint      string   `json:"fingerprint"`
	Template         string   `json:"template"`
	Layout           string   `json:"layout"`
	Files            []string `json:"files"`
	GeneratorVersion string   `json:"generator_version"`
}

// ImportArchive copies every pin table in a into af_entries under vendor and
// returns the number of rows written. Existing rows for the same vendor, MCU,
// pin and signal are overwritten. The import is a single transaction.
func (s *Store) ImportArchive(ctx context.Context, vendor string, a *afdb.Archive) (int, error) {
	mcus, err := a.MCUs()
	if err != nil {
		return 0, fmt.Errorf("import archive: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import archive: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, mcu := range mcus {
		t, err := a.PinTable(mcu)
		if err != nil {
			return 0, fmt.Errorf("import archive: %w", err)
		}
		n, err := insertEntries(ctx, tx, vendor, mcu, t.Entries())
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import archive: %w", err)
	}
	return total, nil
}

// ImportTable writes one MCU's pin table under vendor.
func (s *Store) ImportTable(ctx context.Context, vendor, mcu string, t *afdb.PinTable) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import table: %w", err)
	}
	defer tx.Rollback()

	n, err := insertEntries(ctx, tx, vendor, mcu, t.Entries())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import table: %w", err)
	}
	return n, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, vendor, mcu string, entries []afdb.Entry) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO af_entries (vendor, mcu, pin, signal, af)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(vendor, mcu, pin, signal) DO UPDATE SET af = excluded.af
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare af insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, vendor, mcu, e.Pin, e.Signal, int(e.AF)); err != nil {
			return 0, fmt.Errorf("insert af entry %s/%s %s %s: %w", vendor, mcu, e.Pin, e.Signal, err)
		}
	}
	return len(entries), nil
}

// RecordRun appends run to the history. A missing ID is filled from the
// store's generator; Seq is always assigned as one past the current maximum.
// The stored run is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.GeneratorVersion == "" {
		run.GeneratorVersion = ir.GeneratorVersion
	}
	files, err := marshalFiles(run.Files)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM generation_runs`,
	).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("record run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generation_runs
		(id, seq, input, mcu, fingerprint, template, layout, files, generator_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Input,
		run.MCU,
		run.Fingerprint,
		run.Template,
		run.Layout,
		files,
		run.GeneratorVersion,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.Files == nil {
		run.Files = []string{}
	}
	return run, nil
}

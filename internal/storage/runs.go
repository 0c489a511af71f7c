/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rendertable/internal/catalog"
	"rendertable/internal/diag"
	"rendertable/internal/domain"
)

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Item kinds stored in run_items.
const (
	KindImage     = "image"
	KindAnimation = "animation"
)

// RunRecord is a stored run. Items and Diagnostics are only filled by Get.
type RunRecord struct {
	ID            string
	Digest        string
	Source        string
	Dialect       string
	Version       string
	SceneName     string
	StartedAt     time.Time
	Lines         int
	Succeeded     bool
	Summary       domain.Summary
	PercentReused int
	ErrorCount    int
	WarningCount  int
	Images        []domain.RenderItem
	Animations    []domain.RenderItem
	Diagnostics   []diag.Entry
}

// Record stores a finished run, successful or not, in one transaction.
func (h *History) Record(ctx context.Context, run *catalog.Run, source string) error {
	if run == nil {
		return errors.New("nil run")
	}
	errs := run.Diagnostics.Errors()
	warns := run.Diagnostics.Warnings()

	var sum domain.Summary
	pct := 0
	if run.Catalog != nil {
		sum = run.Catalog.Summary
		pct = run.Catalog.PercentReused
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, digest, source, dialect, version, scene_name, started_at, lines, succeeded,
		 unique_count, total_count, reused_count, percent_reused, error_count, warning_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Digest, source, string(run.Dialect), run.Version, run.SceneName,
		run.StartedAt.UTC().Format(timeLayout), run.Lines, run.Succeeded(),
		sum.Unique, sum.Total, sum.Reused, pct, len(errs), len(warns))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if run.Catalog != nil {
		if err := insertItems(ctx, tx, run.ID, KindImage, run.Catalog.Images); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, run.ID, KindAnimation, run.Catalog.Animations); err != nil {
			return err
		}
	}

	pos := 0
	for _, group := range [][]diag.Entry{errs, warns} {
		for _, e := range group {
			if _, err := tx.ExecContext(ctx, `INSERT INTO run_diagnostics (run_id, position, severity, line, message) VALUES (?, ?, ?, ?, ?)`,
				run.ID, pos, e.Severity.String(), e.Line, e.Message); err != nil {
				return fmt.Errorf("insert diagnostic: %w", err)
			}
			pos++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	h.log.Debug("run recorded", slog.String("run", run.ID), slog.Bool("succeeded", run.Succeeded()))
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, runID, kind string, items []domain.RenderItem) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_items (run_id, kind, position, identifier, description, origin_line, refs) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()
	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, runID, kind, i, it.Identifier, it.Description, it.OriginLine, it.ReferenceCount); err != nil {
			return fmt.Errorf("insert %s item: %w", kind, err)
		}
	}
	return nil
}

const runColumns = `id, digest, COALESCE(source, ''), dialect, COALESCE(version, ''), COALESCE(scene_name, ''),
	started_at, lines, succeeded, unique_count, total_count, reused_count, percent_reused, error_count, warning_count`

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(s rowScanner) (RunRecord, error) {
	var r RunRecord
	var started string
	if err := s.Scan(&r.ID, &r.Digest, &r.Source, &r.Dialect, &r.Version, &r.SceneName,
		&started, &r.Lines, &r.Succeeded, &r.Summary.Unique, &r.Summary.Total, &r.Summary.Reused,
		&r.PercentReused, &r.ErrorCount, &r.WarningCount); err != nil {
		return r, err
	}
	if t, err := time.Parse(timeLayout, started); err == nil {
		r.StartedAt = t
	}
	return r, nil
}

// Recent lists the newest runs first. A non-positive limit means 20.
func (h *History) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get loads one run with its items and diagnostics.
func (h *History) Get(ctx context.Context, id string) (RunRecord, error) {
	r, err := scanRun(h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("read run: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, `SELECT kind, identifier, description, origin_line, refs FROM run_items WHERE run_id=? ORDER BY kind, position`, id)
	if err != nil {
		return r, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var it domain.RenderItem
		if err := rows.Scan(&kind, &it.Identifier, &it.Description, &it.OriginLine, &it.ReferenceCount); err != nil {
			return r, fmt.Errorf("scan item: %w", err)
		}
		if kind == KindAnimation {
			r.Animations = append(r.Animations, it)
		} else {
			r.Images = append(r.Images, it)
		}
	}
	if err := rows.Err(); err != nil {
		return r, err
	}

	drows, err := h.db.QueryContext(ctx, `SELECT severity, line, message FROM run_diagnostics WHERE run_id=? ORDER BY position`, id)
	if err != nil {
		return r, fmt.Errorf("query diagnostics: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var sev string
		var e diag.Entry
		if err := drows.Scan(&sev, &e.Line, &e.Message); err != nil {
			return r, fmt.Errorf("scan diagnostic: %w", err)
		}
		if sev == diag.Error.String() {
			e.Severity = diag.Error
		}
		r.Diagnostics = append(r.Diagnostics, e)
	}
	return r, drows.Err()
}

// LastSuccessByDigest returns the newest successful run of the same
// transcript text.
func (h *History) LastSuccessByDigest(ctx context.Context, digest string) (RunRecord, bool, error) {
	r, err := scanRun(h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE digest=? AND succeeded=1 ORDER BY started_at DESC, rowid DESC LIMIT 1`, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("read run: %w", err)
	}
	return r, true, nil
}

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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rendertable/internal/catalog"
	"rendertable/internal/diag"
	"rendertable/internal/transcript"
)

func build(t *testing.T, d transcript.Dialect, lines ...string) *catalog.Run {
	t.Helper()
	run, _ := catalog.Build(lines, catalog.Options{Dialect: d, SceneName: "Pool", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	return run
}

func openHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndGetSuccessfulRun(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()

	run := build(t, transcript.DialectDirective, "-sid 7", "-image foo bar", "-image foo bar", "-image baz", "ANIMATION", "wave")
	if err := h.Record(ctx, run, "7) Pool.txt"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := h.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Succeeded || got.Source != "7) Pool.txt" || got.Summary != run.Catalog.Summary || got.PercentReused != 33 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if diff := cmp.Diff(run.Catalog.Images, got.Images); diff != "" {
		t.Fatalf("images (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(run.Catalog.Animations, got.Animations); diff != "" {
		t.Fatalf("animations (-want +got):\n%s", diff)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Fatalf("started_at %v != %v", got.StartedAt, run.StartedAt)
	}
}

func TestRecordFailedRunKeepsDiagnostics(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()

	run := build(t, transcript.DialectScene, "SHOW ab1_01 kitchen", "SHOW ab1_01 garden", "SHOW ab1_02")
	if err := h.Record(ctx, run, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := h.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Succeeded || got.ErrorCount != 1 || got.WarningCount != 1 || len(got.Images) != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Diagnostics) != 2 || got.Diagnostics[0].Severity != diag.Error || got.Diagnostics[1].Severity != diag.Warning {
		t.Fatalf("unexpected diagnostics: %+v", got.Diagnostics)
	}
	if got.Diagnostics[0].Line != 2 {
		t.Fatalf("error line = %d", got.Diagnostics[0].Line)
	}
}

func TestRecentAndDigestLookup(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()

	first := build(t, transcript.DialectDirective, "-sid 1", "-image a b")
	failed := build(t, transcript.DialectDirective, "-sid")
	second := build(t, transcript.DialectDirective, "-sid 1", "-image a b")
	second.StartedAt = first.StartedAt.Add(time.Second)
	failed.StartedAt = first.StartedAt.Add(2 * time.Second)
	for _, r := range []*catalog.Run{first, second, failed} {
		if err := h.Record(ctx, r, ""); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := h.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var ids []string
	for _, r := range recent {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{failed.ID, second.ID, first.ID}, ids); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}

	last, ok, err := h.LastSuccessByDigest(ctx, first.Digest)
	if err != nil || !ok || last.ID != second.ID {
		t.Fatalf("LastSuccessByDigest = %+v %v %v", last.ID, ok, err)
	}
	if _, ok, _ := h.LastSuccessByDigest(ctx, failed.Digest); ok {
		t.Fatalf("failed runs must not match")
	}
	if _, err := h.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestMigrationUpgradesV1 opens a database created with the version 1 schema.
func TestMigrationUpgradesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.ToSlash(path)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version VALUES(1, 1, 'test', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1: %v", err)
		}
	}
	_ = db.Close()

	h, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()
	v, err := h.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema = %d, %v", v, err)
	}
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name='run_diagnostics'`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("run_diagnostics missing: n=%d err=%v", n, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpenOrRecoverMovesCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.sqlite")
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE, NOT EVEN CLOSE TO A DATABASE HEADER"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	h, recovered, err := OpenOrRecover(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenOrRecover: %v", err)
	}
	defer h.Close()
	if !recovered {
		t.Fatalf("expected recovery")
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) != 1 {
		t.Fatalf("expected one backup, got %v", matches)
	}
	if v, err := h.SchemaVersion(context.Background()); err != nil || v != schemaVersion {
		t.Fatalf("fresh history schema = %d, %v", v, err)
	}
}

func TestOpenOrRecoverKeepsHealthyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	h, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()
	h, recovered, err := OpenOrRecover(context.Background(), path)
	if err != nil || recovered {
		t.Fatalf("OpenOrRecover = %v, %v", recovered, err)
	}
	_ = h.Close()
}

func TestOpenOrRecoverLeavesFileOnNonCorruptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	h, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, recovered, err := OpenOrRecover(ctx, path); err == nil || recovered {
		t.Fatalf("expected plain error without recovery, got recovered=%v err=%v", recovered, err)
	}
	if matches, _ := filepath.Glob(path + ".corrupt-*"); len(matches) != 0 {
		t.Fatalf("healthy history moved aside: %v", matches)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("history file gone: %v", err)
	}
}

func TestMoveAsideKeepsSidecars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.sqlite")
	for _, name := range []string{path, path + "-wal"} {
		if err := os.WriteFile(name, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	bak := path + ".corrupt-test"
	if err := moveAside(path, bak); err != nil {
		t.Fatalf("moveAside: %v", err)
	}
	for _, name := range []string{bak, bak + "-wal"} {
		if _, err := os.Stat(name); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	for _, name := range []string{path, path + "-wal", bak + "-shm"} {
		if _, err := os.Stat(name); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s should not exist: %v", name, err)
		}
	}
}

func TestIsCorrupt(t *testing.T) {
	if !isCorrupt(fmt.Errorf("open: %w", errQuickCheck)) {
		t.Fatalf("quick_check failure must count as corruption")
	}
	for _, err := range []error{context.DeadlineExceeded, errors.New("database is locked"), nil} {
		if isCorrupt(err) {
			t.Fatalf("%v must not count as corruption", err)
		}
	}
}

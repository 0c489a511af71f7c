/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend publishes successful runs to a shared PostgreSQL database
// so several workstations can look up the same render tables.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"rendertable/internal/catalog"
	"rendertable/internal/domain"
	applog "rendertable/internal/log"
)

// ErrNotPublishable is returned for runs without a catalog.
var ErrNotPublishable = errors.New("run has no catalog to publish")

// Options configures a Publisher.
type Options struct {
	DSN      string
	Password string // overrides the DSN password when set
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Publisher writes runs into PostgreSQL.
type Publisher struct {
	db      *sql.DB
	timeout time.Duration
	log     *slog.Logger
}

// Open connects, pings and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Publisher, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("backend dsn is empty")
	}
	cfg, err := pgx.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.Password != "" {
		cfg.Password = opts.Password
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("backend")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	db := stdlib.OpenDB(*cfg)
	p := &Publisher{db: db, timeout: timeout, log: l}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(cctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(cctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("backend connected", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return p, nil
}

// Close releases the connection pool.
func (p *Publisher) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Publish stores run and its items. Publishing the same run id twice
// replaces the earlier rows.
func (p *Publisher) Publish(ctx context.Context, run *catalog.Run, source string) error {
	if !run.Succeeded() {
		return ErrNotPublishable
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := run.Catalog
	_, err = tx.ExecContext(ctx, `INSERT INTO render_runs
		(id, digest, source, dialect, version, scene_name, started_at, lines,
		 unique_count, total_count, reused_count, percent_reused)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			digest = EXCLUDED.digest, source = EXCLUDED.source, dialect = EXCLUDED.dialect,
			version = EXCLUDED.version, scene_name = EXCLUDED.scene_name,
			started_at = EXCLUDED.started_at, lines = EXCLUDED.lines,
			unique_count = EXCLUDED.unique_count, total_count = EXCLUDED.total_count,
			reused_count = EXCLUDED.reused_count, percent_reused = EXCLUDED.percent_reused,
			published_at = now()`,
		run.ID, run.Digest, source, string(run.Dialect), c.Version, c.SceneName, run.StartedAt, run.Lines,
		c.Summary.Unique, c.Summary.Total, c.Summary.Reused, c.PercentReused)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM render_items WHERE run_id = $1`, run.ID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	if err := insertItems(ctx, tx, run.ID, "image", c.Images); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, run.ID, "animation", c.Animations); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.log.Info("run published", slog.String("run", run.ID), slog.Int("images", len(c.Images)), slog.Int("animations", len(c.Animations)))
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, runID, kind string, items []domain.RenderItem) error {
	for i, it := range items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO render_items
			(run_id, kind, position, identifier, description, origin_line, reference_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, kind, i, it.Identifier, it.Description, it.OriginLine, it.ReferenceCount); err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, it.Identifier, err)
		}
	}
	return nil
}

// Match is one published item found by Search.
type Match struct {
	RunID          string
	SceneName      string
	Version        string
	Identifier     string
	Description    string
	ReferenceCount int
}

// Search finds published items whose description matches q using PostgreSQL
// full text search, newest runs first.
func (p *Publisher) Search(ctx context.Context, q string, limit int) ([]Match, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	rows, err := p.db.QueryContext(ctx, `SELECT r.id, r.scene_name, r.version, i.identifier, i.description, i.reference_count
		FROM render_items i JOIN render_runs r ON r.id = i.run_id
		WHERE to_tsvector('simple', i.description) @@ plainto_tsquery('simple', $1)
		ORDER BY r.started_at DESC, i.kind, i.position
		LIMIT $2`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.RunID, &m.SceneName, &m.Version, &m.Identifier, &m.Description, &m.ReferenceCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

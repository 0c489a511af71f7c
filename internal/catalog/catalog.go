/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package catalog runs a transcript through the parser, gates the run on
// its diagnostics and orders the surviving items into a render catalog.
package catalog

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"rendertable/internal/diag"
	"rendertable/internal/domain"
	applog "rendertable/internal/log"
	"rendertable/internal/natural"
	"rendertable/internal/transcript"
)

// Options configures a catalog build.
type Options struct {
	Dialect          transcript.Dialect
	IdentifierPrefix string
	SceneName        string
	Logger           *slog.Logger
}

// Catalog is the ordered output handed to the report assembler.
type Catalog struct {
	Version       string              `json:"version" yaml:"version"`
	SceneName     string              `json:"sceneName" yaml:"scene_name"`
	Notes         []string            `json:"notes" yaml:"notes"`
	Images        []domain.RenderItem `json:"images" yaml:"images"`
	Animations    []domain.RenderItem `json:"animations" yaml:"animations"`
	Summary       domain.Summary      `json:"summary" yaml:"summary"`
	PercentReused int                 `json:"percentReused" yaml:"percent_reused"`
}

// Title returns the report heading, e.g. "7) Kitchen Render Table".
func (c *Catalog) Title() string {
	return strings.TrimSpace(fmt.Sprintf("%s) %s Render Table", c.Version, c.SceneName))
}

// Run describes one build. Catalog is nil unless the run succeeded.
type Run struct {
	ID          string
	Digest      string // BLAKE3 of the transcript text, hex
	Dialect     transcript.Dialect
	Version     string
	SceneName   string
	StartedAt   time.Time
	Lines       int
	Diagnostics *diag.Log
	Catalog     *Catalog
}

// Succeeded reports whether the run produced a catalog.
func (r *Run) Succeeded() bool { return r != nil && r.Catalog != nil }

// BuildReader reads the whole transcript from rd and builds it.
func BuildReader(rd io.Reader, opts Options) (*Run, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	p := newParser(opts)
	res, err := p.ParseReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return finish(res, digest(data), opts)
}

// Build runs the given lines. The returned Run is always non-nil; the error
// is a *diag.RunError when the transcript has diagnostics, or wraps
// domain.ErrDegenerateInput when nothing was referenced at all.
func Build(lines []string, opts Options) (*Run, error) {
	res := newParser(opts).Parse(lines)
	return finish(res, digest([]byte(strings.Join(lines, "\n"))), opts)
}

func newParser(opts Options) *transcript.Parser {
	return transcript.New(transcript.Options{
		Dialect:          opts.Dialect,
		IdentifierPrefix: opts.IdentifierPrefix,
		Logger:           opts.Logger,
	})
}

func digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func finish(res *transcript.Result, sum string, opts Options) (*Run, error) {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("catalog")
	}
	run := &Run{
		ID:          uuid.NewString(),
		Digest:      sum,
		Dialect:     res.Dialect,
		Version:     res.Version,
		SceneName:   opts.SceneName,
		StartedAt:   time.Now().UTC(),
		Lines:       res.Lines,
		Diagnostics: res.Diagnostics,
	}
	l = applog.WithOperation(l, "build").With(slog.String("run", run.ID))

	if err := res.Diagnostics.Err(); err != nil {
		l.Warn("transcript rejected",
			slog.Int("errors", len(res.Diagnostics.Errors())),
			slog.Int("warnings", len(res.Diagnostics.Warnings())))
		return run, err
	}

	c := &Catalog{
		Version:    res.Version,
		SceneName:  opts.SceneName,
		Notes:      res.Notes,
		Images:     res.Images.Items(),
		Animations: res.Animations.Items(),
	}
	c.Summary = domain.Summarize(c.Images)

	pct, err := c.Summary.PercentReused()
	if err != nil {
		l.Warn("empty catalog", slog.Any("err", err))
		return run, fmt.Errorf("build catalog: %w", err)
	}
	c.PercentReused = pct

	order(l, "images", c.Images)
	order(l, "animations", c.Animations)

	run.Catalog = c
	l.Info("catalog built",
		slog.Int("unique", c.Summary.Unique),
		slog.Int("total", c.Summary.Total),
		slog.Int("reused", c.Summary.Reused),
		slog.Int("animations", len(c.Animations)))
	return run, nil
}

// order sorts items by identifier. An ordering that never settles is
// accepted as is.
func order(l *slog.Logger, what string, items []domain.RenderItem) {
	swaps, err := natural.ExchangeSort(items, func(it domain.RenderItem) string { return it.Identifier })
	if errors.Is(err, natural.ErrNoFixedPoint) {
		l.Warn("ordering did not settle", slog.String("list", what), slog.Int("swaps", swaps))
		return
	}
	l.Debug("ordered", slog.String("list", what), slog.Int("swaps", swaps))
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transcript turns a line-oriented production transcript into
// render items, notes and diagnostics in a single pass.
//
// Supported syntax:
//   - "-sid <version>" sets the version used for generated identifiers.
//   - "-location", "-outfit", "-time", "-prop" append "<Label>: <rest>" notes.
//   - "-image [slot] <description...>" declares a still image (directive dialect).
//   - "ANIMATION" opens an animation block; following lines form its
//     description until a blank line or end of input (directive dialect).
//   - "SHOW <identifier> [description...]" or "SCENE ..." shows an image by
//     explicit identifier (scene dialect).
//
// Every other line is ignored. Malformed lines become diagnostics; the scan
// never stops early.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"rendertable/internal/diag"
	"rendertable/internal/domain"
	applog "rendertable/internal/log"
	"rendertable/internal/registry"
)

// Options configures a Parser.
type Options struct {
	Dialect          Dialect
	IdentifierPrefix string
	Logger           *slog.Logger
}

// Result holds everything one run produced. It is owned by the caller once
// Parse returns.
type Result struct {
	Dialect     Dialect
	Version     string
	Notes       []string
	Images      *registry.Registry
	Animations  *registry.Registry
	Diagnostics *diag.Log
	Lines       int
}

// Parser classifies transcript lines. A Parser may be reused; every call to
// Parse starts from fresh state.
type Parser struct {
	opts   Options
	policy registry.Policy
	log    *slog.Logger

	// per-run state
	res             *Result
	pending         *domain.RenderItem
	pendingLines    []string
	expectedVersion string
	warnedNoVersion bool
}

// New returns a parser for the given options. Unset fields fall back to the
// directive dialect and DefaultIdentifierPrefix.
func New(opts Options) *Parser {
	if opts.Dialect == "" {
		opts.Dialect = DialectDirective
	}
	if opts.IdentifierPrefix == "" {
		opts.IdentifierPrefix = DefaultIdentifierPrefix
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("transcript")
	}
	var policy registry.Policy = registry.DedupByDescription{}
	if opts.Dialect == DialectScene {
		policy = registry.ByIdentifier{}
	}
	return &Parser{opts: opts, policy: policy, log: l.With(slog.String("dialect", string(opts.Dialect)))}
}

// Parse runs with the given options over lines.
func Parse(lines []string, opts Options) *Result {
	return New(opts).Parse(lines)
}

// ParseReader splits r into lines and parses them. Only read failures are
// returned as errors; transcript problems end up in Result.Diagnostics.
func (p *Parser) ParseReader(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return p.Parse(lines), nil
}

// Parse classifies every line and returns the run result.
func (p *Parser) Parse(lines []string) *Result {
	p.reset()
	l := applog.WithOperation(p.log, "parse")

	for i, raw := range lines {
		p.classify(i+1, strings.TrimSpace(raw))
	}
	if p.pending != nil {
		// End of input closes an open animation block.
		p.closeAnimation(len(lines))
	}
	p.res.Lines = len(lines)
	if p.res.Version == "" {
		p.res.Version = p.expectedVersion
	}

	l.Info("transcript parsed",
		slog.Int("lines", len(lines)),
		slog.Int("images", p.res.Images.Len()),
		slog.Int("animations", p.res.Animations.Len()),
		slog.Int("notes", len(p.res.Notes)),
		slog.Bool("clean", p.res.Diagnostics.IsClean()),
	)
	return p.res
}

func (p *Parser) reset() {
	p.res = &Result{
		Dialect:     p.opts.Dialect,
		Notes:       []string{},
		Images:      registry.New(),
		Animations:  registry.New(),
		Diagnostics: diag.New(),
	}
	p.pending = nil
	p.pendingLines = nil
	p.expectedVersion = ""
	p.warnedNoVersion = false
}

// classify handles one trimmed line. Categories are tested in a fixed
// order: open animation block, directive, ignored.
func (p *Parser) classify(lineNo int, line string) {
	if p.pending != nil {
		if line == "" {
			p.closeAnimation(lineNo)
			return
		}
		p.pendingLines = append(p.pendingLines, line)
		return
	}
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	tok := strings.TrimSuffix(fields[0], ":")
	rest := strings.TrimSpace(line[len(fields[0]):])

	if label, ok := noteLabels[tok]; ok {
		p.res.Notes = append(p.res.Notes, fmt.Sprintf("%s: %s", label, rest))
		p.log.Debug("note", slog.Int("line", lineNo), slog.String("label", label))
		return
	}

	switch tok {
	case tokVersion:
		p.setVersion(lineNo, fields)
	case tokImage:
		if p.opts.Dialect == DialectDirective {
			p.image(lineNo, fields)
		}
	case tokAnimation:
		if p.opts.Dialect == DialectDirective {
			p.openAnimation(lineNo)
		}
	case tokShow, tokScene:
		if p.opts.Dialect == DialectScene {
			p.show(lineNo, fields)
		}
	}
}

func (p *Parser) setVersion(lineNo int, fields []string) {
	if len(fields) < 2 {
		p.res.Diagnostics.Errorf(lineNo, "version tag %s has no value", tokVersion)
		return
	}
	p.res.Version = fields[len(fields)-1]
	p.log.Debug("version", slog.Int("line", lineNo), slog.String("version", p.res.Version))
}

// requireVersion warns once when an item is generated before any version tag.
func (p *Parser) requireVersion(lineNo int) {
	if p.res.Version != "" || p.warnedNoVersion {
		return
	}
	p.warnedNoVersion = true
	p.res.Diagnostics.Warnf(lineNo, "item declared before a %s version tag", tokVersion)
}

func (p *Parser) generatedID(count int, suffix string) string {
	return fmt.Sprintf("%s%s_%02d%s", p.opts.IdentifierPrefix, p.res.Version, count+1, suffix)
}

func (p *Parser) image(lineNo int, fields []string) {
	p.requireVersion(lineNo)
	// The first argument is a slot label when more words follow it.
	var desc string
	switch {
	case len(fields) > 2:
		desc = normalizeDescription(strings.Join(fields[2:], " "))
	case len(fields) == 2:
		desc = normalizeDescription(fields[1])
	}
	if desc == "" {
		p.res.Diagnostics.Warnf(lineNo, "image directive has no description")
		return
	}
	it := domain.NewRenderItem(p.generatedID(p.res.Images.Len(), ""), desc, lineNo)
	o := p.policy.Commit(p.res.Images, it)
	p.log.Debug("image", slog.Int("line", lineNo), slog.String("id", o.Item.Identifier), slog.String("outcome", o.Kind.String()))
}

func (p *Parser) openAnimation(lineNo int) {
	p.requireVersion(lineNo)
	it := domain.NewRenderItem(p.generatedID(p.res.Animations.Len(), "_anim"), "", lineNo)
	p.pending = &it
	p.pendingLines = p.pendingLines[:0]
}

func (p *Parser) closeAnimation(lineNo int) {
	it := *p.pending
	p.pending = nil
	// Block lines are kept verbatim; only surrounding whitespace is dropped.
	it.Description = strings.TrimSpace(strings.Join(p.pendingLines, "\n"))
	p.pendingLines = nil
	if it.Description == "" {
		p.res.Diagnostics.Warnf(it.OriginLine, "animation block has no description")
		return
	}
	o := p.policy.Commit(p.res.Animations, it)
	p.log.Debug("animation", slog.Int("line", it.OriginLine), slog.Int("closed_at", lineNo),
		slog.String("id", o.Item.Identifier), slog.String("outcome", o.Kind.String()))
}

// show handles a scene dialect line: SHOW <identifier> [description...].
func (p *Parser) show(lineNo int, fields []string) {
	d := p.res.Diagnostics
	if len(fields) < 2 {
		d.Errorf(lineNo, "%s line has no identifier", fields[0])
		return
	}
	id := fields[1]
	if strings.EqualFold(id, BlankIdentifier) {
		return
	}
	if utf8.RuneCountInString(id) < versionPrefixLen {
		d.Errorf(lineNo, "identifier %q is shorter than its %d-character version prefix", id, versionPrefixLen)
		return
	}

	prefix := string([]rune(id)[:versionPrefixLen])
	ok := true
	if p.expectedVersion == "" {
		p.expectedVersion = prefix
	} else if !strings.EqualFold(prefix, p.expectedVersion) {
		d.Errorf(lineNo, "identifier %q does not match version %q", id, p.expectedVersion)
		ok = false
	}
	if strings.HasSuffix(id, "_") {
		d.Errorf(lineNo, "identifier %q has incomplete numbering", id)
		ok = false
	}
	if !ok {
		return
	}

	desc := normalizeDescription(strings.Join(fields[2:], " "))
	o := p.policy.Commit(p.res.Images, domain.NewRenderItem(id, desc, lineNo))
	switch o.Kind {
	case registry.MissingDescription:
		d.Warnf(lineNo, "missing description for %q", id)
	case registry.Conflict:
		d.Errorf(lineNo, "identifier %q redefined with a different description (first defined at line %d)", id, o.Item.OriginLine)
	}
	p.log.Debug("show", slog.Int("line", lineNo), slog.String("id", id), slog.String("outcome", o.Kind.String()))
}

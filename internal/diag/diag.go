/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package diag collects the errors and warnings found while scanning a
// transcript. A Log belongs to exactly one parse run.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic entry.
type Severity int

const (
	// Warning is recoverable; a run with warnings still fails the gate but
	// points at data the author should fill in.
	Warning Severity = iota
	// Error blocks catalog production.
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Headers used when the log is rendered as text.
const (
	ErrorHeader   = "ERRORS FOUND IN TRANSCRIPT. FIX THEM AND TRY AGAIN:"
	WarningHeader = "WARNINGS:"
)

// Entry is one diagnostic. Line is 1-based; 0 means the entry is not tied
// to a specific line.
type Entry struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (e Entry) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Log is an append-only diagnostics log. The zero value is ready to use.
type Log struct {
	errors   []Entry
	warnings []Entry
}

// New returns an empty log.
func New() *Log { return &Log{} }

// Errorf appends an error for the given line.
func (l *Log) Errorf(line int, format string, args ...any) {
	l.errors = append(l.errors, Entry{Severity: Error, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning for the given line.
func (l *Log) Warnf(line int, format string, args ...any) {
	l.warnings = append(l.warnings, Entry{Severity: Warning, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (l *Log) HasErrors() bool   { return len(l.errors) > 0 }
func (l *Log) HasWarnings() bool { return len(l.warnings) > 0 }

// IsClean reports whether the log holds neither errors nor warnings.
func (l *Log) IsClean() bool { return !l.HasErrors() && !l.HasWarnings() }

// Errors returns a copy of the error entries in the order they were added.
func (l *Log) Errors() []Entry { return append([]Entry(nil), l.errors...) }

// Warnings returns a copy of the warning entries in the order they were added.
func (l *Log) Warnings() []Entry { return append([]Entry(nil), l.warnings...) }

// Text renders all entries as multi-line text: the error section first,
// then the warning section. Empty sections are omitted.
func (l *Log) Text() string {
	var b strings.Builder
	writeSection(&b, ErrorHeader, l.errors)
	writeSection(&b, WarningHeader, l.warnings)
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, header string, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString(header)
	b.WriteByte('\n')
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
}

// Err returns nil for a clean log, otherwise a *RunError carrying a
// snapshot of all entries.
func (l *Log) Err() error {
	if l.IsClean() {
		return nil
	}
	return &RunError{Errors: l.Errors(), Warnings: l.Warnings(), text: l.Text()}
}

// RunError is returned when a parse run ends with diagnostics.
type RunError struct {
	Errors   []Entry
	Warnings []Entry
	text     string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("transcript has %d error(s) and %d warning(s)", len(e.Errors), len(e.Warnings))
}

// Text returns the full diagnostics text, not just the first entry.
func (e *RunError) Text() string { return e.text }

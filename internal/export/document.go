/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns a finished catalog into the render table document
// handed to the report assembler, in JSON or YAML.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rendertable/internal/catalog"
	"rendertable/internal/domain"
	"rendertable/internal/version"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// TableHeadings are the column headings of both render tables.
var TableHeadings = []string{"Scene", "Description", "Occurrences"}

// Row is one render table row.
type Row struct {
	Scene       string `json:"scene" yaml:"scene"`
	Description string `json:"description" yaml:"description"`
	Occurrences int    `json:"occurrences" yaml:"occurrences"`
}

// Counts are the figures printed above the image table.
type Counts struct {
	Unique        int `json:"unique" yaml:"unique"`
	Total         int `json:"total" yaml:"total"`
	Reused        int `json:"reused" yaml:"reused"`
	PercentReused int `json:"percentReused" yaml:"percent_reused"`
}

// Document is the render table hand-off.
type Document struct {
	Title       string    `json:"title" yaml:"title"`
	Version     string    `json:"version" yaml:"version"`
	SceneName   string    `json:"sceneName" yaml:"scene_name"`
	Notes       []string  `json:"notes" yaml:"notes"`
	Counts      Counts    `json:"counts" yaml:"counts"`
	Headings    []string  `json:"headings" yaml:"headings"`
	Images      []Row     `json:"images" yaml:"images"`
	Animations  []Row     `json:"animations" yaml:"animations"`
	RunID       string    `json:"runId" yaml:"run_id"`
	Digest      string    `json:"digest" yaml:"digest"`
	Generator   string    `json:"generator" yaml:"generator"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generated_at"`
}

// ErrNoCatalog is returned for runs that did not produce a catalog.
var ErrNoCatalog = errors.New("run has no catalog")

// NewDocument builds the hand-off document for a successful run.
func NewDocument(run *catalog.Run) (*Document, error) {
	if !run.Succeeded() {
		return nil, ErrNoCatalog
	}
	c := run.Catalog
	return &Document{
		Title:     c.Title(),
		Version:   c.Version,
		SceneName: c.SceneName,
		Notes:     append([]string{}, c.Notes...),
		Counts: Counts{
			Unique:        c.Summary.Unique,
			Total:         c.Summary.Total,
			Reused:        c.Summary.Reused,
			PercentReused: c.PercentReused,
		},
		Headings:    append([]string(nil), TableHeadings...),
		Images:      rows(c.Images),
		Animations:  rows(c.Animations),
		RunID:       run.ID,
		Digest:      run.Digest,
		Generator:   "rendertable " + version.String(),
		GeneratedAt: run.StartedAt,
	}, nil
}

func rows(items []domain.RenderItem) []Row {
	out := make([]Row, 0, len(items))
	for _, it := range items {
		out = append(out, Row{Scene: it.Identifier, Description: it.Description, Occurrences: it.ReferenceCount})
	}
	return out
}

// Encode renders the document in the given format.
func (d *Document) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteFile encodes the document and writes it to path atomically: the
// bytes go to a temp file in the same directory which is then renamed.
func WriteFile(path string, d *Document, f Format) error {
	data, err := d.Encode(f)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rendertable-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

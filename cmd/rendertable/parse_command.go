/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rendertable/internal/catalog"
	"rendertable/internal/domain"
	"rendertable/internal/export"
	applog "rendertable/internal/log"
	"rendertable/internal/transcript"
)

type parseFlags struct {
	dialect   string
	prefix    string
	scene     string
	format    string
	out       string
	write     bool
	noHistory bool
	publish   bool
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var f parseFlags

	cmd := &cobra.Command{
		Use:   "parse <transcript>",
		Short: "Build the render table for a transcript (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, ctx, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.dialect, "dialect", "d", "", "Transcript dialect: directive or scene (default from config)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Prefix for generated identifiers (default from config)")
	cmd.Flags().StringVar(&f.scene, "scene", "", "Scene name for the report title (default derived from the file name)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: table, json or yaml (default from config)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the render table document to this file")
	cmd.Flags().BoolVarP(&f.write, "write", "w", false, "Write the render table document next to the transcript")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "Do not record this run in the local history")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Publish the catalog to the configured backend")
	return cmd
}

func runParse(cmd *cobra.Command, ctx *commandContext, path string, f parseFlags) error {
	cfg := ctx.config
	l := applog.WithOperation(applog.WithComponent("cli"), "parse")

	dialect, err := transcript.ParseDialect(firstNonEmpty(f.dialect, cfg.Parser.Dialect))
	if err != nil {
		return err
	}
	format := strings.ToLower(firstNonEmpty(f.format, cfg.Output.Format))
	if format != "table" {
		if _, err := export.ParseFormat(format); err != nil {
			return err
		}
	}

	opts := catalog.Options{
		Dialect:          dialect,
		IdentifierPrefix: firstNonEmpty(f.prefix, cfg.Parser.IdentifierPrefix),
		SceneName:        f.scene,
	}
	var in io.Reader
	source := path
	if path == "-" {
		in = cmd.InOrStdin()
		source = ""
	} else {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer func() { _ = file.Close() }()
		in = file
		if opts.SceneName == "" {
			opts.SceneName = catalog.SceneNameFromPath(path)
		}
	}

	run, buildErr := catalog.BuildReader(in, opts)
	if run == nil {
		return buildErr
	}
	runCtx := applog.ContextWithRun(cmd.Context(), run.ID)
	if cfg.Storage.Enabled && !f.noHistory {
		recordRun(runCtx, ctx, l, run, source)
	}
	if buildErr != nil {
		if errors.Is(buildErr, domain.ErrDegenerateInput) {
			return fmt.Errorf("%s: no images referenced", displayName(path))
		}
		return buildErr
	}

	doc, err := export.NewDocument(run)
	if err != nil {
		return err
	}
	if err := emit(cmd, doc, format); err != nil {
		return err
	}

	if target, ff := outputTarget(path, f, format); target != "" {
		if err := export.WriteFile(target, doc, ff); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
	}

	if f.publish {
		pub, err := ctx.openPublisher(runCtx)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		if err := pub.Publish(runCtx, run, source); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Published run %s\n", run.ID)
	}
	return nil
}

// recordRun stores the run in the local history. History failures are
// logged and never fail the command.
func recordRun(ctx context.Context, cc *commandContext, l *slog.Logger, run *catalog.Run, source string) {
	h, err := cc.openHistory(ctx)
	if err != nil {
		l.Warn("history unavailable", slog.Any("err", err))
		return
	}
	defer func() { _ = h.Close() }()
	if prev, ok, err := h.LastSuccessByDigest(ctx, run.Digest); err == nil && ok {
		l.Info("transcript unchanged since earlier run", slog.String("previous", prev.ID), slog.Time("at", prev.StartedAt))
	}
	if err := h.Record(ctx, run, source); err != nil {
		l.Warn("history record failed", slog.Any("err", err))
	}
}

// outputTarget resolves where the document is written and in which format.
// The table format writes JSON files; --out may pick the format by extension.
func outputTarget(path string, f parseFlags, format string) (string, export.Format) {
	ff := export.FormatJSON
	if format != "table" {
		ff = export.Format(format)
	}
	switch {
	case f.out != "":
		if byExt, err := export.ParseFormat(filepath.Ext(f.out)); err == nil {
			ff = byExt
		}
		return f.out, ff
	case f.write && path != "-":
		return catalog.OutputPath(path, ff.Ext()), ff
	default:
		return "", ff
	}
}

func emit(cmd *cobra.Command, doc *export.Document, format string) error {
	if format != "table" {
		data, err := doc.Encode(export.Format(format))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, doc.Title)
	fmt.Fprintf(out, "Unique: %d  Total: %d  Reused: %d  Reused%%: %d\n",
		doc.Counts.Unique, doc.Counts.Total, doc.Counts.Reused, doc.Counts.PercentReused)
	for _, n := range doc.Notes {
		fmt.Fprintf(out, "Note: %s\n", n)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Images")
	fmt.Fprintln(out, renderTable(doc.Headings, tableRows(doc.Images), []columnAlignment{alignLeft, alignLeft, alignRight}))
	if len(doc.Animations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Animations")
		fmt.Fprintln(out, renderTable(doc.Headings, tableRows(doc.Animations), []columnAlignment{alignLeft, alignLeft, alignRight}))
	}
	return nil
}

func tableRows(rows []export.Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Scene, r.Description, strconv.Itoa(r.Occurrences)})
	}
	return out
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

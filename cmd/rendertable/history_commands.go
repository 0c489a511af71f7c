/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rendertable/internal/domain"
	"rendertable/internal/storage"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			runs, err := h.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, historyJSON(runs))
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.StartedAt.Local().Format(time.DateTime),
					r.SceneName,
					r.Version,
					r.Dialect,
					runStatus(r),
					strconv.Itoa(r.Summary.Total),
					strconv.Itoa(r.PercentReused),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Started", "Scene", "Version", "Dialect", "Status", "Images", "Reused%"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run with its items and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			rec, err := h.Get(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:        %s\n", rec.ID)
			fmt.Fprintf(out, "Started:    %s\n", rec.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Source:     %s\n", rec.Source)
			fmt.Fprintf(out, "Scene:      %s\n", rec.SceneName)
			fmt.Fprintf(out, "Version:    %s\n", rec.Version)
			fmt.Fprintf(out, "Dialect:    %s\n", rec.Dialect)
			fmt.Fprintf(out, "Lines:      %d\n", rec.Lines)
			fmt.Fprintf(out, "Succeeded:  %s\n", yesNo(rec.Succeeded))
			fmt.Fprintf(out, "Digest:     %s\n", rec.Digest)
			if rec.Succeeded {
				fmt.Fprintf(out, "Unique: %d  Total: %d  Reused: %d  Reused%%: %d\n",
					rec.Summary.Unique, rec.Summary.Total, rec.Summary.Reused, rec.PercentReused)
			}
			if len(rec.Images) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Scene", "Description", "Occurrences", "Line"}, itemRows(rec.Images),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			}
			if len(rec.Animations) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Animation", "Description", "Occurrences", "Line"}, itemRows(rec.Animations),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			}
			if len(rec.Diagnostics) > 0 {
				rows := make([][]string, 0, len(rec.Diagnostics))
				for _, d := range rec.Diagnostics {
					rows = append(rows, []string{d.Severity.String(), strconv.Itoa(d.Line), d.Message})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Severity", "Line", "Message"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func runStatus(r storage.RunRecord) string {
	if r.Succeeded {
		return "ok"
	}
	return fmt.Sprintf("failed (%d errors, %d warnings)", r.ErrorCount, r.WarningCount)
}

func itemRows(items []domain.RenderItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.Identifier, it.Description, strconv.Itoa(it.ReferenceCount), strconv.Itoa(it.OriginLine)})
	}
	return rows
}

type historyEntry struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"startedAt"`
	Source        string    `json:"source,omitempty"`
	SceneName     string    `json:"sceneName"`
	Version       string    `json:"version"`
	Dialect       string    `json:"dialect"`
	Succeeded     bool      `json:"succeeded"`
	Total         int       `json:"total"`
	PercentReused int       `json:"percentReused"`
	Errors        int       `json:"errors"`
	Warnings      int       `json:"warnings"`
}

func historyJSON(runs []storage.RunRecord) []historyEntry {
	out := make([]historyEntry, 0, len(runs))
	for _, r := range runs {
		out = append(out, historyEntry{
			ID: r.ID, StartedAt: r.StartedAt, Source: r.Source, SceneName: r.SceneName,
			Version: r.Version, Dialect: r.Dialect, Succeeded: r.Succeeded,
			Total: r.Summary.Total, PercentReused: r.PercentReused,
			Errors: r.ErrorCount, Warnings: r.WarningCount,
		})
	}
	return out
}

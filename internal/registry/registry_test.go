/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package registry

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"rendertable/internal/domain"
)

func TestDedupByDescriptionCountsRepeats(t *testing.T) {
	r := New()
	var p DedupByDescription

	o := p.Commit(r, domain.NewRenderItem("ep2s7_01", "Kitchen wide", 2))
	if o.Kind != Inserted {
		t.Fatalf("first commit: %v", o.Kind)
	}
	o = p.Commit(r, domain.NewRenderItem("ep2s7_02", "  kitchen WIDE ", 5))
	if o.Kind != Incremented {
		t.Fatalf("second commit: %v", o.Kind)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one record, got %d", r.Len())
	}
	want := domain.RenderItem{Identifier: "ep2s7_01", Description: "Kitchen wide", OriginLine: 2, ReferenceCount: 2}
	if diff := cmp.Diff(want, r.Items()[0]); diff != "" {
		t.Fatalf("stored item mismatch (-want +got):\n%s", diff)
	}
	if r.Total() != 2 {
		t.Fatalf("total = %d", r.Total())
	}
}

func TestByIdentifierConflictKeepsCount(t *testing.T) {
	r := New()
	var p ByIdentifier

	if o := p.Commit(r, domain.NewRenderItem("X", "foo", 1)); o.Kind != Inserted {
		t.Fatalf("insert: %v", o.Kind)
	}
	o := p.Commit(r, domain.NewRenderItem("X", "bar", 2))
	if o.Kind != Conflict {
		t.Fatalf("expected conflict, got %v", o.Kind)
	}
	if o.Item.OriginLine != 1 {
		t.Fatalf("conflict should carry stored origin line, got %d", o.Item.OriginLine)
	}
	it, _ := r.Lookup("X")
	if it.ReferenceCount != 1 || it.Description != "foo" {
		t.Fatalf("stored item changed: %+v", it)
	}
}

func TestByIdentifierOutcomes(t *testing.T) {
	r := New()
	var p ByIdentifier

	steps := []struct {
		id, desc string
		want     OutcomeKind
	}{
		{"A", "", MissingDescription},
		{"A", "desk", Inserted},
		{"A", "", Incremented},
		{"A", "DESK", Restated},
		{"B", "door", Inserted},
		{"A", "", Incremented},
	}
	for i, s := range steps {
		if got := p.Commit(r, domain.NewRenderItem(s.id, s.desc, i+1)).Kind; got != s.want {
			t.Fatalf("step %d (%s %q): got %v want %v", i, s.id, s.desc, got, s.want)
		}
	}
	a, _ := r.Lookup("A")
	if a.ReferenceCount != 3 || a.OriginLine != 2 {
		t.Fatalf("unexpected A: %+v", a)
	}
	if r.Len() != 2 || r.Total() != 4 {
		t.Fatalf("len=%d total=%d", r.Len(), r.Total())
	}
}

func TestItemsIsACopyAndResetClears(t *testing.T) {
	r := New()
	DedupByDescription{}.Commit(r, domain.NewRenderItem("a", "x", 1))
	items := r.Items()
	items[0].ReferenceCount = 99
	if r.Total() != 1 {
		t.Fatalf("registry mutated through Items copy")
	}
	r.Reset()
	if r.Len() != 0 || r.Total() != 0 {
		t.Fatalf("reset left data behind")
	}
	if _, ok := r.Lookup(NormalizeDescription("x")); ok {
		t.Fatalf("reset left index entries")
	}
}

func TestOutcomeKindString(t *testing.T) {
	if Conflict.String() != "conflict" || OutcomeKind(42).String() != "unknown" {
		t.Fatalf("unexpected names")
	}
}

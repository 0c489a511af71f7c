/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSummarizeCounts(t *testing.T) {
	items := []RenderItem{
		{Identifier: "A", ReferenceCount: 3},
		{Identifier: "B", ReferenceCount: 1},
		{Identifier: "C", ReferenceCount: 2},
	}
	s := Summarize(items)
	if s.Unique != 3 || s.Total != 6 || s.Reused != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	p, err := s.PercentReused()
	if err != nil {
		t.Fatalf("percent: %v", err)
	}
	if p != 50 {
		t.Fatalf("percent = %d, want 50", p)
	}
}

func TestPercentReusedFloors(t *testing.T) {
	s := Summary{Unique: 2, Total: 3, Reused: 1}
	if p, _ := s.PercentReused(); p != 33 {
		t.Fatalf("percent = %d, want 33", p)
	}
}

func TestPercentReusedZeroTotal(t *testing.T) {
	_, err := Summarize(nil).PercentReused()
	if !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("expected ErrDegenerateInput, got %v", err)
	}
}

func TestRenderItemJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(NewRenderItem("ep2s7_01", "kitchen", 4))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"identifier":"ep2s7_01","description":"kitchen","originLine":4,"referenceCount":1}`
	if string(b) != want {
		t.Fatalf("json = %s\nwant %s", b, want)
	}
	if NewRenderItem("x", "", 1).Reuses() != 0 {
		t.Fatalf("fresh item should have no reuses")
	}
}

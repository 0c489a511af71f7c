/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "errors"

// This file defines the data model shared by the transcript parser, the
// registries and the render table hand-off.

// RenderItem is one unit of render work: a still image or an animation.
// Identifier is stable once assigned; ReferenceCount is at least 1 and grows
// each time the same item is referenced again by the transcript.
type RenderItem struct {
	Identifier     string `json:"identifier" yaml:"identifier"`
	Description    string `json:"description" yaml:"description"`
	OriginLine     int    `json:"originLine" yaml:"origin_line"` // 1-based line of first occurrence
	ReferenceCount int    `json:"referenceCount" yaml:"reference_count"`
}

// NewRenderItem returns an item referenced once.
func NewRenderItem(id, desc string, line int) RenderItem {
	return RenderItem{Identifier: id, Description: desc, OriginLine: line, ReferenceCount: 1}
}

// Reuses is the number of references beyond the first.
func (r RenderItem) Reuses() int {
	if r.ReferenceCount < 1 {
		return 0
	}
	return r.ReferenceCount - 1
}

// ErrDegenerateInput reports a catalog whose total reference count is zero,
// for which no reuse percentage exists.
var ErrDegenerateInput = errors.New("degenerate input: total render count is zero")

// Summary holds the render counts reported next to the image table.
type Summary struct {
	Unique int `json:"unique" yaml:"unique"`
	Total  int `json:"total" yaml:"total"`
	Reused int `json:"reused" yaml:"reused"`
}

// Summarize counts unique items, total references and reuses.
func Summarize(items []RenderItem) Summary {
	s := Summary{Unique: len(items)}
	for _, it := range items {
		s.Total += it.ReferenceCount
		s.Reused += it.Reuses()
	}
	return s
}

// PercentReused returns floor(100*Reused/Total). A zero total yields
// ErrDegenerateInput instead of dividing.
func (s Summary) PercentReused() (int, error) {
	if s.Total <= 0 {
		return 0, ErrDegenerateInput
	}
	return 100 * s.Reused / s.Total, nil
}

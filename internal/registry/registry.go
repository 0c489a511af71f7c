/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package registry stores render items keyed for deduplication and applies
// the commit policies used by the transcript dialects.
//
// Items are held by value in an indexable slice; a key maps to the slot of
// its item and reference counting mutates the slot through that key.
package registry

import (
	"strings"

	"golang.org/x/text/cases"

	"rendertable/internal/domain"
)

// Registry is a keyed collection of render items. The zero value is not
// usable; call New.
type Registry struct {
	items []domain.RenderItem
	index map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: map[string]int{}}
}

// Len returns the number of distinct items.
func (r *Registry) Len() int { return len(r.items) }

// Lookup returns the item stored under key.
func (r *Registry) Lookup(key string) (domain.RenderItem, bool) {
	i, ok := r.index[key]
	if !ok {
		return domain.RenderItem{}, false
	}
	return r.items[i], true
}

// Items materializes the stored items in insertion order. The returned slice
// is a copy and may be reordered freely.
func (r *Registry) Items() []domain.RenderItem {
	return append([]domain.RenderItem(nil), r.items...)
}

// Total returns the sum of all reference counts.
func (r *Registry) Total() int {
	n := 0
	for _, it := range r.items {
		n += it.ReferenceCount
	}
	return n
}

// Reset drops every item so the registry can serve a new run.
func (r *Registry) Reset() {
	r.items = r.items[:0]
	clear(r.index)
}

func (r *Registry) insert(key string, it domain.RenderItem) domain.RenderItem {
	r.index[key] = len(r.items)
	r.items = append(r.items, it)
	return it
}

func (r *Registry) increment(key string) domain.RenderItem {
	i := r.index[key]
	r.items[i].ReferenceCount++
	return r.items[i]
}

// NormalizeDescription returns the dedup key for a description: trimmed and
// case-folded.
func NormalizeDescription(desc string) string {
	return cases.Fold().String(strings.TrimSpace(desc))
}

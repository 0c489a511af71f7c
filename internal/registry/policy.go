/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package registry

import (
	"strings"

	"rendertable/internal/domain"
)

// OutcomeKind tells the caller what a commit did. Policies never format
// diagnostics themselves; the parser maps outcomes to messages.
type OutcomeKind int

const (
	// Inserted means a new item was stored with a reference count of 1.
	Inserted OutcomeKind = iota
	// Incremented means an existing item gained one reference.
	Incremented
	// Restated means an identifier was repeated with the same description;
	// nothing changed.
	Restated
	// MissingDescription means a new identifier arrived without a
	// description; nothing was stored.
	MissingDescription
	// Conflict means a known identifier arrived with a different
	// description; the stored item is unchanged.
	Conflict
)

func (k OutcomeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Incremented:
		return "incremented"
	case Restated:
		return "restated"
	case MissingDescription:
		return "missing_description"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Outcome is the result of a commit. Item is the stored item after the
// commit (for Conflict and Restated, the previously stored item; for
// MissingDescription, the submitted one).
type Outcome struct {
	Kind OutcomeKind
	Item domain.RenderItem
}

// Policy decides how a candidate item enters a registry.
type Policy interface {
	Name() string
	Commit(r *Registry, candidate domain.RenderItem) Outcome
}

// DedupByDescription keys items by their normalized description. A repeated
// description increments the stored item and discards the candidate's
// identifier and line.
type DedupByDescription struct{}

func (DedupByDescription) Name() string { return "dedup_by_description" }

func (DedupByDescription) Commit(r *Registry, c domain.RenderItem) Outcome {
	key := NormalizeDescription(c.Description)
	if _, ok := r.index[key]; ok {
		return Outcome{Kind: Incremented, Item: r.increment(key)}
	}
	c.ReferenceCount = 1
	return Outcome{Kind: Inserted, Item: r.insert(key, c)}
}

// ByIdentifier keys items by their raw identifier and detects conflicting
// descriptions. An empty description on a known identifier is a reuse.
type ByIdentifier struct{}

func (ByIdentifier) Name() string { return "by_identifier" }

func (ByIdentifier) Commit(r *Registry, c domain.RenderItem) Outcome {
	key := c.Identifier
	empty := strings.TrimSpace(c.Description) == ""
	stored, ok := r.Lookup(key)
	switch {
	case !ok && empty:
		return Outcome{Kind: MissingDescription, Item: c}
	case !ok:
		c.ReferenceCount = 1
		return Outcome{Kind: Inserted, Item: r.insert(key, c)}
	case empty:
		return Outcome{Kind: Incremented, Item: r.increment(key)}
	case NormalizeDescription(stored.Description) != NormalizeDescription(c.Description):
		return Outcome{Kind: Conflict, Item: stored}
	default:
		return Outcome{Kind: Restated, Item: stored}
	}
}

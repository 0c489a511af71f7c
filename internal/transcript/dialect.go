/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transcript

import (
	"fmt"
	"strings"
)

// Dialect selects how item lines are recognised and committed.
type Dialect string

const (
	// DialectDirective uses "-image" and "ANIMATION" directives and
	// deduplicates items by description.
	DialectDirective Dialect = "directive"
	// DialectScene uses "SHOW"/"SCENE" lines carrying explicit identifiers
	// and detects conflicting descriptions per identifier.
	DialectScene Dialect = "scene"
)

// ParseDialect maps a configuration value to a Dialect. An empty value
// selects the directive dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DialectDirective):
		return DialectDirective, nil
	case string(DialectScene), "show":
		return DialectScene, nil
	default:
		return "", fmt.Errorf("unknown transcript dialect %q (want %q or %q)", s, DialectDirective, DialectScene)
	}
}

// DefaultIdentifierPrefix is prepended to generated identifiers.
const DefaultIdentifierPrefix = "ep2s"

// BlankIdentifier marks a scene line that intentionally shows nothing.
const BlankIdentifier = "BLANK"

// Directive tokens. They are matched case-sensitively against the first
// whitespace-separated token of a trimmed line.
const (
	tokVersion   = "-sid"
	tokLocation  = "-location"
	tokOutfit    = "-outfit"
	tokTime      = "-time"
	tokProp      = "-prop"
	tokProps     = "-props"
	tokImage     = "-image"
	tokAnimation = "ANIMATION"
	tokShow      = "SHOW"
	tokScene     = "SCENE"
)

// noteLabels maps note directives to the label used in the notes list.
var noteLabels = map[string]string{
	tokLocation: "Location",
	tokOutfit:   "Outfit",
	tokTime:     "Time",
	tokProp:     "Props",
	tokProps:    "Props",
}

// versionPrefixLen is the number of leading identifier characters that
// carry the version in the scene dialect.
const versionPrefixLen = 3

// strayPunct is trimmed from both ends of descriptions.
const strayPunct = " \t\"'`:;,-"

func normalizeDescription(s string) string {
	return strings.Trim(strings.TrimSpace(s), strayPunct)
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package natural implements the identifier ordering used for render tables.
//
// Identifiers such as "ep2s7_9a" and "ep2s7_10a" are compared the way a
// person reads them: spaces sort first, then underscores, then runs of
// digits by numeric value, then letters, then everything else by code point.
package natural

import (
	"strconv"
	"unicode"
)

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to
// or after b. Letter case is ignored.
func Compare(a, b string) int {
	x, y := pad([]rune(a), []rune(b))
	for i := 0; i < len(x); i++ {
		if r := compareAt(&i, x, y); r != 0 {
			return r
		}
	}
	return 0
}

// pad right-pads the shorter slice with spaces and folds both to lower case.
func pad(a, b []rune) ([]rune, []rune) {
	n := max(len(a), len(b))
	x := make([]rune, n)
	y := make([]rune, n)
	for i := 0; i < n; i++ {
		x[i], y[i] = ' ', ' '
		if i < len(a) {
			x[i] = unicode.ToLower(a[i])
		}
		if i < len(b) {
			y[i] = unicode.ToLower(b[i])
		}
	}
	return x, y
}

// compareAt compares the runes at *i. A digit on either side consumes the
// numeric runs and moves *i to the last rune of the longer run.
func compareAt(i *int, x, y []rune) int {
	f, s := x[*i], y[*i]

	switch {
	case f == ' ' && s == ' ':
		return 0
	case f == ' ':
		return -1
	case s == ' ':
		return 1
	}

	switch {
	case f == '_' && s == '_':
		return 0
	case f == '_':
		return -1
	case s == '_':
		return 1
	}

	if unicode.IsDigit(f) || unicode.IsDigit(s) {
		return compareNumbers(i, x, y)
	}

	// Letters and everything else both order by folded code point.
	return cmpRune(f, s)
}

func compareNumbers(i *int, x, y []rune) int {
	xr := digitRun(x, *i)
	yr := digitRun(y, *i)

	*i += max(len(xr), len(yr)) - 1

	xn, yn := parseRun(xr), parseRun(yr)
	switch {
	case xn < yn:
		return -1
	case xn > yn:
		return 1
	}
	return 0
}

func digitRun(r []rune, from int) []rune {
	end := from
	for end < len(r) && unicode.IsDigit(r[end]) {
		end++
	}
	return r[from:end]
}

// parseRun returns the value of a digit run. Empty runs, non-ASCII digits
// and values that overflow uint64 all read as 0.
func parseRun(r []rune) uint64 {
	if len(r) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(string(r), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func cmpRune(f, s rune) int {
	switch {
	case f < s:
		return -1
	case f > s:
		return 1
	}
	return 0
}

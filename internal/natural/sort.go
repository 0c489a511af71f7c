/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package natural

import "errors"

// ErrNoFixedPoint is returned by ExchangeSort when the pass limit is reached
// before a pass completes without swaps. It only happens when the key
// ordering is inconsistent, e.g. for malformed identifiers.
var ErrNoFixedPoint = errors.New("natural: exchange sort did not reach a fixed point")

// ExchangeSort orders items in place by key using repeated adjacent passes:
// whenever an item sorts before its predecessor the two are swapped, and
// passes repeat until one performs no swap. Equal items keep their relative
// order. It returns the number of swaps performed.
//
// The number of passes is capped at len(items)^2+1.
func ExchangeSort[T any](items []T, key func(T) string) (int, error) {
	n := len(items)
	limit := n*n + 1
	swaps := 0
	for pass := 0; pass < limit; pass++ {
		changed := false
		for prev := 0; prev < n-1; prev++ {
			cur := prev + 1
			if Compare(key(items[cur]), key(items[prev])) != -1 {
				continue
			}
			items[prev], items[cur] = items[cur], items[prev]
			swaps++
			changed = true
		}
		if !changed {
			return swaps, nil
		}
	}
	return swaps, ErrNoFixedPoint
}

// Strings orders identifiers in place and returns the swap count.
func Strings(ids []string) (int, error) {
	return ExchangeSort(ids, func(s string) string { return s })
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package natural

import "testing"

func TestCompareTable(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"v1_9a", "v1_10a", -1},
		{"v1_10a", "v1_9a", 1},
		{"abc", "abcd", -1},
		{"abcd", "abc", 1},
		{"ABC", "abc", 0},
		{"9a", "9b", -1},
		{"2", "10", -1},
		{"a_1", "a1", -1},
		{"a 1", "a_1", -1},
		{"a1", "a 1", 1},
		{"a-", "a.", -1},
		{"007", "7", 0},
		{"99999999999999999999999", "1", -1},
		{"ep2s7_09a", "ep2s7_9", 1},
		{"", "", 0},
		{"", "a", -1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareIsStrictWeakOrder(t *testing.T) {
	ids := []string{
		"a", "A1", "a1", "a2", "a10", "a_1", "a_2", "a 1", "b", "a1a", "a1b",
		"ep2s7_1", "ep2s7_2", "ep2s7_10", "ep2s7_10_anim", "ep2s7_9a", "z",
	}
	for _, a := range ids {
		if Compare(a, a) != 0 {
			t.Fatalf("Compare(%q, %q) not equal", a, a)
		}
		for _, b := range ids {
			if Compare(a, b) != -Compare(b, a) {
				t.Fatalf("asymmetric: %q vs %q", a, b)
			}
			for _, c := range ids {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 && Compare(a, c) > 0 {
					t.Fatalf("not transitive: %q <= %q <= %q but %q > %q", a, b, c, a, c)
				}
			}
		}
	}
}

func TestExchangeSortOrdersNaturally(t *testing.T) {
	ids := []string{"ep2s7_10", "ep2s7_2", "ep2s7_1", "ep2s7_09a", "ep2s7_9"}
	swaps, err := Strings(ids)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if swaps == 0 {
		t.Fatalf("expected swaps on unsorted input")
	}
	want := []string{"ep2s7_1", "ep2s7_2", "ep2s7_9", "ep2s7_09a", "ep2s7_10"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, ids, want)
		}
	}

	// Sorting its own output is a no-op.
	swaps, err = Strings(ids)
	if err != nil || swaps != 0 {
		t.Fatalf("second pass: swaps=%d err=%v", swaps, err)
	}
}

func TestExchangeSortIsStable(t *testing.T) {
	type item struct {
		id  string
		pos int
	}
	items := []item{{"B2", 0}, {"b2", 1}, {"a", 2}, {"B2", 3}}
	if _, err := ExchangeSort(items, func(i item) string { return i.id }); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if items[0].id != "a" {
		t.Fatalf("expected a first, got %+v", items)
	}
	for i, want := range []int{0, 1, 3} {
		if items[i+1].pos != want {
			t.Fatalf("equal keys reordered: %+v", items)
		}
	}
}

func TestExchangeSortTerminatesOnInconsistentKeys(t *testing.T) {
	// "007" equals both "7" and "7a" while "7" sorts before "7a".
	ids := []string{"7a", "007", "7"}
	if _, err := Strings(ids); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("items lost: %v", ids)
	}
}

func TestExchangeSortEmpty(t *testing.T) {
	swaps, err := Strings(nil)
	if swaps != 0 || err != nil {
		t.Fatalf("empty input: swaps=%d err=%v", swaps, err)
	}
}

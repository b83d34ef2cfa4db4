/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

// Assignment helpers. All functions return fresh slices and never modify
// their input, so a board can keep its previous assignment for undo.

import "vocabgrid/internal/domain"

// Fill front-fills count cells from ids in order; cells past the end of ids are empty.
func Fill(ids []int64, count int) []int64 {
	if count < 0 {
		count = 0
	}
	out := make([]int64, count)
	copy(out, ids)
	return out
}

// Steal writes id into index after vacating any other slot that holds it.
// The list is padded with empty slots when index is past its end.
// Writing NoItem simply empties the slot.
func Steal(a []int64, index int, id int64) []int64 {
	if index < 0 {
		index = 0
	}
	n := len(a)
	if index >= n {
		n = index + 1
	}
	out := make([]int64, n)
	copy(out, a)
	if id != domain.NoItem {
		for i, v := range out {
			if v == id && i != index {
				out[i] = domain.NoItem
			}
		}
	}
	out[index] = id
	return out
}

// Move removes the entry at from and reinserts it at to. It reports false,
// returning a copy of a, when from == to or either index is out of range.
func Move[T any](a []T, from, to int) ([]T, bool) {
	out := make([]T, len(a))
	copy(out, a)
	if from == to || from < 0 || to < 0 || from >= len(a) || to >= len(a) {
		return out, false
	}
	v := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{v}, out[to:]...)...)
	return out, true
}

// Resize pads with empty slots or truncates to count.
func Resize(a []int64, count int) []int64 {
	if count < 0 {
		count = 0
	}
	out := make([]int64, count)
	copy(out, a)
	return out
}

// Clamp bounds i to [0, n). An empty range clamps to 0.
func Clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Duplicates returns the nonzero ids that occur more than once.
func Duplicates(a []int64) []int64 {
	seen := make(map[int64]int, len(a))
	var out []int64
	for _, v := range a {
		if v == domain.NoItem {
			continue
		}
		seen[v]++
		if seen[v] == 2 {
			out = append(out, v)
		}
	}
	return out
}

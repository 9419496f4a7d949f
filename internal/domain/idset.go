/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// IDSet is an insertion ordered set of ids.
// The zero value is an empty set ready for use.
type IDSet struct {
	ids []string
	idx map[string]struct{}
}

// NewIDSet builds a set from ids, dropping blanks and repeats.
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseIDSet splits a delimited preference value into a set.
func ParseIDSet(raw, sep string) IDSet {
	if strings.TrimSpace(raw) == "" {
		return IDSet{}
	}
	return NewIDSet(strings.Split(raw, sep)...)
}

// Add inserts id and reports whether the set changed.
func (s *IDSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || s.Has(id) {
		return false
	}
	if s.idx == nil {
		s.idx = make(map[string]struct{})
	}
	s.idx[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether the set changed.
func (s *IDSet) Remove(id string) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.idx, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s.idx[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int { return len(s.ids) }

// IDs returns a copy of the ids in insertion order. Never nil.
func (s IDSet) IDs() []string { return append(make([]string, 0, len(s.ids)), s.ids...) }

// Join renders the set with sep for storage.
func (s IDSet) Join(sep string) string { return strings.Join(s.ids, sep) }

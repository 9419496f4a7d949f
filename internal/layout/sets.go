/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"context"

	"godashboard/internal/domain"
)

// LoadHidden returns the ids the user has hidden. Missing or empty means none.
func (s *Store) LoadHidden(ctx context.Context, userID string) (domain.IDSet, error) {
	return s.loadSet(ctx, userID, KeyHidden)
}

// Hide adds widgetID to the hidden set. Hiding an already hidden widget
// does not write.
func (s *Store) Hide(ctx context.Context, userID, widgetID string) (domain.IDSet, error) {
	return s.updateSet(ctx, userID, KeyHidden, func(set *domain.IDSet) bool { return set.Add(widgetID) })
}

// Show removes widgetID from the hidden set. The layout document is not
// touched, so the widget returns to the position it had.
func (s *Store) Show(ctx context.Context, userID, widgetID string) (domain.IDSet, error) {
	return s.updateSet(ctx, userID, KeyHidden, func(set *domain.IDSet) bool { return set.Remove(widgetID) })
}

// LoadCollapsed returns the navigation sections the user collapsed.
func (s *Store) LoadCollapsed(ctx context.Context, userID string) (domain.IDSet, error) {
	return s.loadSet(ctx, userID, KeyCollapsed)
}

// SetCollapsed records whether sectionID is collapsed for the user.
func (s *Store) SetCollapsed(ctx context.Context, userID, sectionID string, collapsed bool) (domain.IDSet, error) {
	return s.updateSet(ctx, userID, KeyCollapsed, func(set *domain.IDSet) bool {
		if collapsed {
			return set.Add(sectionID)
		}
		return set.Remove(sectionID)
	})
}

func (s *Store) loadSet(ctx context.Context, userID, key string) (domain.IDSet, error) {
	raw, _, err := s.prefs.Get(ctx, userID, key)
	if err != nil {
		return domain.IDSet{}, &domain.PersistError{Op: "get", Key: key, Err: err}
	}
	return domain.ParseIDSet(raw, Separator), nil
}

func (s *Store) updateSet(ctx context.Context, userID, key string, mutate func(*domain.IDSet) bool) (domain.IDSet, error) {
	set, err := s.loadSet(ctx, userID, key)
	if err != nil {
		return set, err
	}
	if !mutate(&set) {
		return set, nil
	}
	if err := s.prefs.Set(ctx, userID, key, set.Join(Separator)); err != nil {
		return set, &domain.PersistError{Op: "set", Key: key, Err: err}
	}
	return set, nil
}

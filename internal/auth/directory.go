/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package auth resolves request identities: the static user directory,
// signed bearer tokens and the CSRF tokens required on writes.
package auth

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"godashboard/internal/config"
	"godashboard/internal/domain"
)

// ImplicitGroup is the group every directory account belongs to.
const ImplicitGroup = "user"

// Directory is the set of known accounts.
type Directory struct {
	accounts map[string]*domain.Account
}

// NewDirectory builds accounts from configured users and group rights.
// Unknown groups contribute no rights.
func NewDirectory(users map[string]config.UserConfig, groups map[string][]string) (*Directory, error) {
	d := &Directory{accounts: make(map[string]*domain.Account, len(users))}
	for name, uc := range users {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("directory: empty user name")
		}
		acc := &domain.Account{Username: name, RealName: uc.RealName, Edits: uc.Edits}
		if uc.Registered != "" {
			t, err := time.Parse(time.DateOnly, uc.Registered)
			if err != nil {
				return nil, fmt.Errorf("directory: user %s: registered: %w", name, err)
			}
			acc.Registered = t
		}
		if uc.LastLogin != "" {
			t, err := parseDate(uc.LastLogin)
			if err != nil {
				return nil, fmt.Errorf("directory: user %s: last_login: %w", name, err)
			}
			acc.LastLogin = t
		}
		for _, g := range append([]string{ImplicitGroup}, uc.Groups...) {
			g = strings.TrimSpace(g)
			if g != "*" && g != "" && !slices.Contains(acc.GroupNames, g) {
				acc.GroupNames = append(acc.GroupNames, g)
			}
			for _, r := range groups[g] {
				if !slices.Contains(acc.Rights, r) {
					acc.Rights = append(acc.Rights, r)
				}
			}
		}
		d.accounts[name] = acc
	}
	return d, nil
}

// Lookup returns the account named username.
func (d *Directory) Lookup(username string) (*domain.Account, bool) {
	a, ok := d.accounts[username]
	return a, ok
}

// Names lists the account names sorted.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.accounts))
	for n := range d.accounts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

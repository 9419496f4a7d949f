/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"net/url"
	"strings"
	"time"
)

// Account is a concrete User backed by a static rights list.
type Account struct {
	Username   string
	RealName   string
	Rights     []string
	Registered time.Time
	Edits      int
	GroupNames []string
	LastLogin  time.Time
}

// NewAccount returns an account holding the given rights.
func NewAccount(username string, rights ...string) *Account {
	return &Account{Username: username, Rights: rights}
}

func (a *Account) ID() string { return a.Username }

func (a *Account) Name() string {
	if strings.TrimSpace(a.RealName) != "" {
		return a.RealName
	}
	return a.Username
}

// IsAllowed reports whether permission is among the account's rights.
// The empty permission is always allowed.
func (a *Account) IsAllowed(permission string) bool {
	if permission == "" {
		return true
	}
	for _, r := range a.Rights {
		if r == permission {
			return true
		}
	}
	return false
}

func (a *Account) EditCount() int { return a.Edits }

func (a *Account) RegisteredAt() time.Time { return a.Registered }

// Groups returns the effective group names of the account.
func (a *Account) Groups() []string { return append([]string(nil), a.GroupNames...) }

func (a *Account) LastSeen() time.Time { return a.LastLogin }

// UserPage is the wiki page of the user with the given id.
func UserPage(id string) string {
	return "/wiki/User:" + url.PathEscape(strings.ReplaceAll(id, " ", "_"))
}

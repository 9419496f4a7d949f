/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package auth

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// CSRF hands out short lived write tokens bound to a user.
// A token stays valid for its whole lifetime and may be reused.
type CSRF struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewCSRF(ttl time.Duration) *CSRF {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CSRF{cache: gocache.New(ttl, ttl*2), ttl: ttl}
}

// Issue creates a token for userID.
func (c *CSRF) Issue(userID string) (string, time.Time) {
	tok := uuid.NewString()
	c.cache.Set(tok, userID, gocache.DefaultExpiration)
	return tok, time.Now().Add(c.ttl)
}

// Valid reports whether token was issued to userID and has not expired.
func (c *CSRF) Valid(userID, token string) bool {
	if token == "" {
		return false
	}
	v, ok := c.cache.Get(token)
	if !ok {
		return false
	}
	owner, _ := v.(string)
	return subtle.ConstantTimeCompare([]byte(owner), []byte(userID)) == 1
}

// Revoke drops token.
func (c *CSRF) Revoke(token string) { c.cache.Delete(token) }

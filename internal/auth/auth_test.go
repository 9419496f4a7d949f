/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"godashboard/internal/config"
)

func TestDirectory(t *testing.T) {
	groups := map[string][]string{
		"user":  {"read", "viewdashboard"},
		"sysop": {"siteadmin", "read"},
	}
	d, err := NewDirectory(map[string]config.UserConfig{
		"alice": {RealName: "Alice A.", Groups: []string{"sysop", "*", "sysop"}, Registered: "2024-01-02", Edits: 7},
		"bob":   {Groups: []string{"ghosts"}, LastLogin: "2025-03-04T05:06:07Z"},
	}, groups)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, d.Names())

	alice, ok := d.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "Alice A.", alice.Name())
	require.Equal(t, []string{"read", "viewdashboard", "siteadmin"}, alice.Rights)
	require.Equal(t, 7, alice.EditCount())
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), alice.RegisteredAt())
	require.Equal(t, []string{"user", "sysop"}, alice.Groups())
	require.True(t, alice.LastSeen().IsZero())

	bob, ok := d.Lookup("bob")
	require.True(t, ok)
	require.True(t, bob.IsAllowed("viewdashboard"))
	require.False(t, bob.IsAllowed("siteadmin"))
	require.Equal(t, []string{"user", "ghosts"}, bob.Groups())
	require.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), bob.LastSeen())

	_, ok = d.Lookup("mallory")
	require.False(t, ok)

	_, err = NewDirectory(map[string]config.UserConfig{"x": {Registered: "yesterday"}}, groups)
	require.Error(t, err)
	_, err = NewDirectory(map[string]config.UserConfig{"x": {LastLogin: "a while ago"}}, groups)
	require.ErrorContains(t, err, "last_login")
}

func TestTokensRoundTrip(t *testing.T) {
	tok := NewTokens("s3cret", "godashboard", time.Hour)
	signed, exp, err := tok.Issue("alice", "Alice")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := tok.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "Alice", claims.Name)
	require.NotEmpty(t, claims.ID)

	other, _, err := tok.Issue("alice", "Alice")
	require.NoError(t, err)
	require.NotEqual(t, signed, other)
}

func TestTokensRejects(t *testing.T) {
	tok := NewTokens("s3cret", "godashboard", time.Hour)
	signed, _, err := tok.Issue("alice", "")
	require.NoError(t, err)

	_, err = NewTokens("different", "godashboard", time.Hour).Verify(signed)
	require.Error(t, err)
	_, err = NewTokens("s3cret", "someone-else", time.Hour).Verify(signed)
	require.Error(t, err)
	_, err = tok.Verify("not.a.token")
	require.Error(t, err)

	expired := NewTokens("s3cret", "godashboard", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("alice", "")
	require.NoError(t, err)
	_, err = tok.Verify(old)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tok.Verify(unsigned)
	require.Error(t, err)

	_, _, err = NewTokens("", "x", 0).Issue("alice", "")
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestCSRF(t *testing.T) {
	c := NewCSRF(time.Minute)
	tok, exp := c.Issue("alice")
	require.NotEmpty(t, tok)
	require.True(t, exp.After(time.Now()))

	require.True(t, c.Valid("alice", tok))
	require.True(t, c.Valid("alice", tok))
	require.False(t, c.Valid("bob", tok))
	require.False(t, c.Valid("alice", ""))
	require.False(t, c.Valid("alice", "made-up"))

	c.Revoke(tok)
	require.False(t, c.Valid("alice", tok))
}

func TestCSRFExpiry(t *testing.T) {
	c := NewCSRF(20 * time.Millisecond)
	tok, _ := c.Issue("alice")
	time.Sleep(50 * time.Millisecond)
	require.False(t, c.Valid("alice", tok))
}

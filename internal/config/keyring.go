/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import "github.com/zalando/go-keyring"

// Service/keys for OS keyring.
const (
	keyringService = "GoDashboard"
	keyringSecret  = "auth_secret"
)

// tokenStore abstracts the keyring so tests can stub it.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }

func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }

func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

// StoreSecret persists the signing secret in the keyring.
func StoreSecret(secret string) error { return tokenStore.Set(keyringService, keyringSecret, secret) }

// DeleteSecret removes the signing secret from the keyring.
func DeleteSecret() error { return tokenStore.Delete(keyringService, keyringSecret) }

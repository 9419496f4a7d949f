/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// Validation error codes returned to API clients.
const (
	CodeInvalidLayout    = "invalidlayout"
	CodeDuplicateWidget  = "duplicatewidget"
	CodeUnknownWidget    = "unknownwidget"
	CodeNotHideable      = "widgetnothideable"
	CodeMissingParameter = "missingparam"
)

// ValidationError reports client input that was rejected before anything was written.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PersistError wraps a failure of the preference store or another backing store.
type PersistError struct {
	Op  string // "get" or "set"
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

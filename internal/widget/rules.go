/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package widget

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"godashboard/internal/config"
	"godashboard/internal/domain"
)

// RequireRight is a rule that shows the widget only to users holding permission.
func RequireRight(permission string) VisibilityRule {
	return func(u domain.User) bool { return u != nil && u.IsAllowed(permission) }
}

func ruleEnv(u domain.User) map[string]any {
	env := map[string]any{
		"user": "",
		"name": "",
		"can":  func(string) bool { return false },
	}
	if u != nil {
		env["user"] = u.ID()
		env["name"] = u.Name()
		env["can"] = u.IsAllowed
	}
	return env
}

// CompileRule compiles a boolean expression over the variables user, name and
// the function can(permission). Evaluation errors hide the widget.
func CompileRule(src string) (VisibilityRule, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(ruleEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", src, err)
	}
	return programRule(program), nil
}

func programRule(program *vm.Program) VisibilityRule {
	return func(u domain.User) bool {
		out, err := expr.Run(program, ruleEnv(u))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
}

// FromSpec turns a declared extension widget into a definition with static content.
func FromSpec(spec config.WidgetSpec) (Definition, error) {
	rule, err := CompileRule(spec.VisibleIf)
	if err != nil {
		return Definition{}, &InvalidWidgetError{ID: spec.ID, Reason: err.Error()}
	}
	hideable := true
	if spec.Hideable != nil {
		hideable = *spec.Hideable
	}
	body := spec.Body
	return Definition{
		ID:             spec.ID,
		Type:           "static",
		TitleKey:       spec.Title,
		DescriptionKey: spec.Description,
		DefaultRegion:  domain.Region(strings.ToLower(spec.Region)),
		Hideable:       hideable,
		Icon:           spec.Icon,
		Modules:        spec.Modules,
		Visible:        rule,
		Provider: ProviderFunc(func(_ context.Context, _ domain.User) (any, error) {
			return map[string]any{"body": body}, nil
		}),
	}, nil
}

// RegisterSpecs registers every declared widget in order, stopping at the first error.
func (r *Registry) RegisterSpecs(specs []config.WidgetSpec) error {
	for _, s := range specs {
		def, err := FromSpec(s)
		if err != nil {
			return err
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

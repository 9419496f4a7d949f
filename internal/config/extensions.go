/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Extensions is the YAML document through which deployments add widgets and
// navigation entries, or remove built-in navigation, without code changes.
// It is applied once at startup after the built-ins are registered.
type Extensions struct {
	Widgets        []WidgetSpec  `yaml:"widgets"`
	Sections       []SectionSpec `yaml:"sections"`
	Items          []ItemSpec    `yaml:"items"`
	RemoveSections []string      `yaml:"remove_sections"`
	RemoveItems    []string      `yaml:"remove_items"` // "section/item"
}

// WidgetSpec declares a static widget. VisibleIf is an expression evaluated
// against the user, e.g. `can("siteadmin") && user != "bot"`.
type WidgetSpec struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Region      string   `yaml:"region"`
	Hideable    *bool    `yaml:"hideable"`
	Icon        string   `yaml:"icon"`
	VisibleIf   string   `yaml:"visible_if"`
	Body        string   `yaml:"body"`
	Modules     []string `yaml:"modules"`
}

type SectionSpec struct {
	ID         string     `yaml:"id"`
	Label      string     `yaml:"label"`
	Icon       string     `yaml:"icon"`
	Permission string     `yaml:"permission"`
	URL        string     `yaml:"url"`
	Items      []ItemSpec `yaml:"items"`
}

type ItemSpec struct {
	Section       string `yaml:"section"`
	ID            string `yaml:"id"`
	Label         string `yaml:"label"`
	Icon          string `yaml:"icon"`
	URL           string `yaml:"url"`
	Permission    string `yaml:"permission"`
	Order         int    `yaml:"order"` // 0 or omitted sorts last; use 1 and up
	ActivePattern string `yaml:"active_pattern"`
	Badge         string `yaml:"badge"`
}

// LoadExtensions parses the extension file at path. An empty path yields an empty document.
func LoadExtensions(path string) (Extensions, error) {
	var ext Extensions
	if path == "" {
		return ext, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ext, fmt.Errorf("read extensions: %w", err)
	}
	if err := yaml.Unmarshal(data, &ext); err != nil {
		return ext, fmt.Errorf("parse extensions %s: %w", path, err)
	}
	return ext, nil
}

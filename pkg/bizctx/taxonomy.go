// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bizctx implements the business-context tuple algebra shared by the
// effective-context and mapping pipelines.
//
// A context tuple assigns one category token per taxonomy axis. All set
// operations (equality, intersection, deduplication, projection) run over the
// taxonomy's fixed key order, so results never depend on map iteration order.
package bizctx

import (
	"fmt"
	"strings"
)

// Taxonomy maps each axis name to its ordered category vocabulary.
//
// Categories form a hierarchy: "a.b" is a descendant of "a" under the
// configured delimiter. Each axis also declares a placeholder token that acts
// as a wildcard during intersection.
type Taxonomy struct {
	Keys         []string            `json:"keys"`
	Placeholders map[string]string   `json:"placeholders"`
	Categories   map[string][]string `json:"categories"`
	Defaults     map[string]string   `json:"defaults,omitempty"`
	Rules        *TaxonomyRules      `json:"rules,omitempty"`
}

// TaxonomyRules tunes token comparison. Zero values mean the defaults:
// case-sensitive matching and "." as the hierarchy delimiter.
type TaxonomyRules struct {
	CaseSensitive *bool  `json:"caseSensitive,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

// CaseSensitive reports whether token comparison is case-sensitive.
func (tx *Taxonomy) CaseSensitive() bool {
	if tx.Rules != nil && tx.Rules.CaseSensitive != nil {
		return *tx.Rules.CaseSensitive
	}
	return true
}

// Delimiter returns the hierarchy delimiter for category tokens.
func (tx *Taxonomy) Delimiter() string {
	if tx.Rules != nil && tx.Rules.Delimiter != "" {
		return tx.Rules.Delimiter
	}
	return "."
}

// norm folds a token for comparison according to the case rule.
func (tx *Taxonomy) norm(token string) string {
	if tx.CaseSensitive() {
		return token
	}
	return strings.ToLower(token)
}

// isAncestor reports whether descendant equals ancestor or sits below it in
// the category hierarchy.
func (tx *Taxonomy) isAncestor(ancestor, descendant string) bool {
	a := tx.norm(ancestor)
	d := tx.norm(descendant)
	return d == a || strings.HasPrefix(d, a+tx.Delimiter())
}

// Validate checks the structural invariants of the taxonomy: unique keys, one
// placeholder and one duplicate-free, ancestor-closed category list per key,
// and defaults that name concrete categories.
func (tx *Taxonomy) Validate() error {
	if len(tx.Keys) == 0 {
		return fmt.Errorf("taxonomy.keys is required")
	}
	if tx.Placeholders == nil {
		return fmt.Errorf("taxonomy.placeholders is required")
	}
	if tx.Categories == nil {
		return fmt.Errorf("taxonomy.categories is required")
	}
	keySet := make(map[string]struct{}, len(tx.Keys))
	for _, key := range tx.Keys {
		if key == "" {
			return fmt.Errorf("taxonomy.keys must be non-empty strings")
		}
		if _, dup := keySet[key]; dup {
			return fmt.Errorf("taxonomy.keys must be unique")
		}
		keySet[key] = struct{}{}
	}

	if len(tx.Placeholders) != len(tx.Keys) {
		return fmt.Errorf("taxonomy.placeholders must define one placeholder per taxonomy key")
	}
	if len(tx.Categories) != len(tx.Keys) {
		return fmt.Errorf("taxonomy.categories must define category list per taxonomy key")
	}
	for key := range tx.Placeholders {
		if _, ok := keySet[key]; !ok {
			return fmt.Errorf("taxonomy.placeholders must define one placeholder per taxonomy key")
		}
	}
	for key := range tx.Categories {
		if _, ok := keySet[key]; !ok {
			return fmt.Errorf("taxonomy.categories must define category list per taxonomy key")
		}
	}
	for key := range tx.Defaults {
		if _, ok := keySet[key]; !ok {
			return fmt.Errorf("taxonomy.defaults keys must be subset of taxonomy.keys")
		}
	}

	delimiter := tx.Delimiter()
	for _, key := range tx.Keys {
		placeholder := tx.Placeholders[key]
		if placeholder == "" {
			return fmt.Errorf("taxonomy.placeholders[%q] must be non-empty string", key)
		}

		categories := tx.Categories[key]
		normed := make(map[string]struct{}, len(categories))
		for _, category := range categories {
			n := tx.norm(category)
			if _, dup := normed[n]; dup {
				return fmt.Errorf("taxonomy.categories[%q] contains duplicates", key)
			}
			normed[n] = struct{}{}
		}
		if _, clash := normed[tx.norm(placeholder)]; clash {
			return fmt.Errorf("placeholders must not appear in taxonomy.categories")
		}

		// Ancestor closure: every prefix of a category must itself be listed.
		for _, category := range categories {
			parts := strings.Split(category, delimiter)
			for i := 1; i < len(parts); i++ {
				ancestor := strings.Join(parts[:i], delimiter)
				if _, ok := normed[tx.norm(ancestor)]; !ok {
					return fmt.Errorf("taxonomy.categories for key %q must be ancestor-closed", key)
				}
			}
		}
	}

	for key, token := range tx.Defaults {
		normed := make(map[string]struct{})
		for _, category := range tx.Categories[key] {
			normed[tx.norm(category)] = struct{}{}
		}
		if _, ok := normed[tx.norm(token)]; !ok {
			return fmt.Errorf("taxonomy.defaults values must be concrete categories and not placeholders")
		}
		if tx.norm(token) == tx.norm(tx.Placeholders[key]) {
			return fmt.Errorf("placeholders must not appear in taxonomy.defaults")
		}
	}

	return nil
}

// CheckTuple verifies that a tuple only uses declared axes and that each token
// is a declared category or the axis placeholder. context prefixes error
// messages with the input path being validated.
func (tx *Taxonomy) CheckTuple(tuple Tuple, context string) error {
	for _, key := range tx.Keys {
		token, ok := tuple[key]
		if !ok {
			continue
		}
		if !tx.tokenAllowed(key, token) {
			return fmt.Errorf("%s: token %q is not a valid category or placeholder for key %q", context, token, key)
		}
	}
	for key := range tuple {
		if !tx.hasKey(key) {
			return fmt.Errorf("%s: tuple keys must be subset of taxonomy.keys", context)
		}
	}
	return nil
}

func (tx *Taxonomy) hasKey(key string) bool {
	for _, k := range tx.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (tx *Taxonomy) tokenAllowed(key, token string) bool {
	n := tx.norm(token)
	if n == tx.norm(tx.Placeholders[key]) {
		return true
	}
	for _, category := range tx.Categories[key] {
		if tx.norm(category) == n {
			return true
		}
	}
	return false
}

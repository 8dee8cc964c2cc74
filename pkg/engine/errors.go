// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"

	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// NonConvergenceError reports a cyclic strongly connected component whose
// fixpoint did not stabilize within the round bound.
type NonConvergenceError struct {
	Kind   string // bundle.KindOCNonConvergence or bundle.KindECNonConvergence
	SCC    []string
	Rounds int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("%s: scc %v did not stabilize within %d rounds", e.Kind, e.SCC, e.Rounds)
}

// Envelope converts the error into the uniform wire envelope.
func (e *NonConvergenceError) Envelope() *bundle.Envelope {
	return bundle.NewEnvelope(e.Kind,
		fmt.Sprintf("fixpoint did not stabilize within %d rounds", e.Rounds),
		map[string]any{
			"scc":       e.SCC,
			"maxRounds": e.Rounds,
		})
}

// SchemaClosureError reports a profile schema that references components the
// schema cannot resolve.
type SchemaClosureError struct {
	ProfileID string
	Component string
	Missing   string
}

func (e *SchemaClosureError) Error() string {
	return fmt.Sprintf("%s: profile %q: %q requires %q which is not resolvable in the schema",
		bundle.KindSchemaClosure, e.ProfileID, e.Component, e.Missing)
}

// Envelope converts the error into the uniform wire envelope.
func (e *SchemaClosureError) Envelope() *bundle.Envelope {
	return bundle.NewEnvelope(bundle.KindSchemaClosure,
		"profile schema is not closed",
		map[string]any{
			"profileId":   e.ProfileID,
			"componentId": e.Component,
			"missing":     e.Missing,
		})
}

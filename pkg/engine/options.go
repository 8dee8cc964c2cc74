// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// DefaultMaxRounds bounds fixpoint iteration when neither the options nor the
// graph rules set a limit.
const DefaultMaxRounds = 8

// Options tunes a pipeline run. Zero values defer to the bundle's graph rules
// and then to DefaultMaxRounds.
type Options struct {
	MaxRoundsOC int `validate:"gte=0"`
	MaxRoundsEC int `validate:"gte=0"`
}

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// resolve fills defaults from the graph rules and validates the result.
func (o Options) resolve(g *bundle.ComponentGraph) (Options, error) {
	if err := optionsValidator.Struct(o); err != nil {
		return Options{}, fmt.Errorf("invalid options: %w", err)
	}

	fallback := DefaultMaxRounds
	if g.Rules != nil && g.Rules.MaxFixpointRounds > 0 {
		fallback = g.Rules.MaxFixpointRounds
	}
	if o.MaxRoundsOC == 0 {
		o.MaxRoundsOC = fallback
	}
	if o.MaxRoundsEC == 0 {
		o.MaxRoundsEC = fallback
	}
	return o, nil
}

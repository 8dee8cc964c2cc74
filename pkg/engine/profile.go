// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"sort"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// ProfileVersion tags the Step 4 payload shape.
const ProfileVersion = "ProfileSchema-1.0"

// ProfileInclude is one schema entry. ASBIE entries carry their edge
// endpoints and BBIE entries their owner so the schema is self-contained.
type ProfileInclude struct {
	ID         string         `json:"id"`
	OwnerABIE  string         `json:"ownerABIE,omitempty"`
	ECTuples   []bizctx.Tuple `json:"ecTuples"`
	SourceABIE string         `json:"sourceABIE,omitempty"`
	TargetABIE string         `json:"targetABIE,omitempty"`
}

// ProfileIncludes groups schema entries by component kind, each sorted by id.
type ProfileIncludes struct {
	ABIE  []ProfileInclude `json:"ABIE"`
	ASBIE []ProfileInclude `json:"ASBIE"`
	BBIE  []ProfileInclude `json:"BBIE"`
}

// Profile is the Step 4 artifact for one IUC.
type Profile struct {
	Version           string              `json:"version"`
	ProfileID         string              `json:"profileId"`
	RootABIE          string              `json:"rootABIE"`
	Includes          ProfileIncludes     `json:"includes"`
	RequiredAncestors map[string][]string `json:"requiredAncestors"`
	Notes             []string            `json:"notes"`
	Trace             map[string]string   `json:"trace"`
	IsRealizable      bool                `json:"isRealizable"`
}

// AssembleProfile builds the profile schema from a converged, collapsed EC
// result: exactly the components with non-empty EC are included, the root
// among them only on its own merit. Closure is enforced rather than patched:
// an included ASBIE whose source or target ABIE is neither included nor
// resolvable through recorded collapse attributions, or a recorded ancestor
// that is itself absent, fails assembly with a SchemaClosureError.
func AssembleProfile(prop *PropagateResult, cg *componentGraph, iuc bundle.IUC) (*Profile, error) {
	ec := prop.EC

	included := func(id string) bool {
		return len(ec.lookup(id)) > 0
	}
	// A component with an empty EC is still resolvable when the collapse
	// attributed all of its tuples upward to included ancestors.
	resolvable := func(id string) bool {
		if included(id) {
			return true
		}
		ancestors := prop.RequiredAncestors[id]
		if len(ancestors) == 0 {
			return false
		}
		for _, ancestor := range ancestors {
			if !included(ancestor) {
				return false
			}
		}
		return true
	}

	profile := &Profile{
		Version:           ProfileVersion,
		ProfileID:         iuc.ID,
		RootABIE:          cg.raw.RootABIE,
		RequiredAncestors: prop.RequiredAncestors,
		Notes: []string{
			"seed: ancestor-preferred collapse",
			"emission: collapse per component",
			"exact-dedup inside steps",
		},
		Trace:        map[string]string{"sourceEC": "Step3"},
		IsRealizable: included(cg.raw.RootABIE),
	}
	if profile.RequiredAncestors == nil {
		profile.RequiredAncestors = map[string][]string{}
	}

	for id, ancestors := range prop.RequiredAncestors {
		if !included(id) {
			continue
		}
		for _, ancestor := range ancestors {
			if !included(ancestor) {
				return nil, &SchemaClosureError{
					ProfileID: iuc.ID,
					Component: id,
					Missing:   ancestor,
				}
			}
		}
	}

	profile.Includes.ABIE = []ProfileInclude{}
	for _, abieID := range cg.abieIDs {
		if !included(abieID) {
			continue
		}
		profile.Includes.ABIE = append(profile.Includes.ABIE, ProfileInclude{
			ID:       abieID,
			ECTuples: ec.ABIE[abieID],
		})
	}

	profile.Includes.ASBIE = []ProfileInclude{}
	for _, asbieID := range cg.asbieIDs {
		if !included(asbieID) {
			continue
		}
		asbie := cg.asbieByID[asbieID]
		for _, endpoint := range []string{asbie.SourceABIE, asbie.TargetABIE} {
			if !resolvable(endpoint) {
				return nil, &SchemaClosureError{
					ProfileID: iuc.ID,
					Component: asbieID,
					Missing:   endpoint,
				}
			}
		}
		profile.Includes.ASBIE = append(profile.Includes.ASBIE, ProfileInclude{
			ID:         asbieID,
			ECTuples:   ec.ASBIE[asbieID],
			SourceABIE: asbie.SourceABIE,
			TargetABIE: asbie.TargetABIE,
		})
	}

	profile.Includes.BBIE = []ProfileInclude{}
	for _, bbieID := range cg.bbieIDs {
		if !included(bbieID) {
			continue
		}
		profile.Includes.BBIE = append(profile.Includes.BBIE, ProfileInclude{
			ID:        bbieID,
			OwnerABIE: cg.bbieByID[bbieID].OwnerABIE,
			ECTuples:  ec.BBIE[bbieID],
		})
	}

	return profile, nil
}

// ECByComponent flattens a profile's schema into a component id to tuple set
// map, the shape the mapping pipeline consumes.
func (p *Profile) ECByComponent() map[string][]bizctx.Tuple {
	out := make(map[string][]bizctx.Tuple)
	for _, kind := range [][]ProfileInclude{p.Includes.ABIE, p.Includes.ASBIE, p.Includes.BBIE} {
		for _, include := range kind {
			out[include.ID] = include.ECTuples
		}
	}
	return out
}

// ComponentIDs returns the sorted ids of every component in the schema.
func (p *Profile) ComponentIDs() []string {
	byComponent := p.ECByComponent()
	ids := make([]string, 0, len(byComponent))
	for id := range byComponent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

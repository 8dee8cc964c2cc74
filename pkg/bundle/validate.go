// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
)

// ValidateECInputs checks the EC bundle and IUC list section by section, in
// the fixed order bundle presence, taxonomy, policy, componentGraph,
// assignedBusinessContext, iucs. It returns nil when the inputs are valid,
// otherwise a ValidationError envelope naming the offending section. The scan
// order is fixed, so the same input always yields the same failure.
func ValidateECInputs(b *Bundle, iucs []IUC) *Envelope {
	if b == nil {
		return NewEnvelope(KindValidation, "bundle: ec bundle must be object", map[string]any{"section": "bundle"})
	}
	if b.Taxonomy == nil {
		return sectionEnvelope("bundle", fmt.Errorf("missing required section: taxonomy"))
	}
	if b.Policy == nil {
		return sectionEnvelope("bundle", fmt.Errorf("missing required section: policy"))
	}
	if b.ComponentGraph == nil {
		return sectionEnvelope("bundle", fmt.Errorf("missing required section: componentGraph"))
	}
	if b.AssignedBusinessContext == nil {
		return sectionEnvelope("bundle", fmt.Errorf("missing required section: assignedBusinessContext"))
	}

	if err := b.Taxonomy.Validate(); err != nil {
		return sectionEnvelope("taxonomy", err)
	}
	if err := ValidatePolicy(b.Policy, b.Taxonomy); err != nil {
		return sectionEnvelope("policy", err)
	}
	if err := ValidateComponentGraph(b.ComponentGraph); err != nil {
		return sectionEnvelope("componentGraph", err)
	}
	if err := ValidateAssignments(b.AssignedBusinessContext, b.Taxonomy, b.ComponentGraph); err != nil {
		return sectionEnvelope("assignedBusinessContext", err)
	}
	if err := ValidateIUCs(iucs, b.Taxonomy); err != nil {
		return sectionEnvelope("iucs", err)
	}
	return nil
}

func sectionEnvelope(section string, err error) *Envelope {
	return NewEnvelope(KindValidation, section+": "+err.Error(), map[string]any{"section": section})
}

// ValidatePolicy checks policy keys and legal tuples against the taxonomy.
func ValidatePolicy(p *Policy, tx *bizctx.Taxonomy) error {
	if p.PolicyKeys == nil || p.LegalTuples == nil {
		return fmt.Errorf("policy must define policyKeys and legalTuples")
	}

	seen := make(map[string]struct{}, len(p.PolicyKeys))
	taxonomyKeys := make(map[string]struct{}, len(tx.Keys))
	for _, key := range tx.Keys {
		taxonomyKeys[key] = struct{}{}
	}
	for _, key := range p.PolicyKeys {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("policy.policyKeys must be unique")
		}
		seen[key] = struct{}{}
		if _, ok := taxonomyKeys[key]; !ok {
			return fmt.Errorf("policyKeys must be subset of taxonomy.keys")
		}
	}

	for i, tuple := range p.LegalTuples {
		if err := tx.CheckTuple(tuple, fmt.Sprintf("policy.legalTuples[%d]", i)); err != nil {
			return err
		}
		for _, key := range p.PolicyKeys {
			if _, ok := tuple[key]; !ok {
				return fmt.Errorf("policy.legalTuples entries must include all policyKeys")
			}
		}
	}
	return nil
}

// ValidateComponentGraph checks structural invariants: required fields,
// globally unique ids, and edge endpoints that resolve to declared nodes.
func ValidateComponentGraph(g *ComponentGraph) error {
	if g.RootABIE == "" {
		return fmt.Errorf("componentGraph.rootABIE must be non-empty string")
	}
	if g.Rules != nil && g.Rules.MaxFixpointRounds < 0 {
		return fmt.Errorf("componentGraph.rules.maxFixpointRounds must be positive integer")
	}

	ids := make(map[string]struct{})
	abieSet := make(map[string]struct{}, len(g.ABIEs))
	asbieSet := make(map[string]struct{}, len(g.ASBIEs))
	bbieSet := make(map[string]struct{}, len(g.BBIEs))

	claim := func(id, path string) error {
		if id == "" {
			return fmt.Errorf("%s.id is required", path)
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("component graph ids must be globally unique")
		}
		ids[id] = struct{}{}
		return nil
	}

	for i, abie := range g.ABIEs {
		if err := claim(abie.ID, fmt.Sprintf("componentGraph.abies[%d]", i)); err != nil {
			return err
		}
		abieSet[abie.ID] = struct{}{}
	}
	for i, asbie := range g.ASBIEs {
		if err := claim(asbie.ID, fmt.Sprintf("componentGraph.asbies[%d]", i)); err != nil {
			return err
		}
		asbieSet[asbie.ID] = struct{}{}
	}
	for i, bbie := range g.BBIEs {
		if err := claim(bbie.ID, fmt.Sprintf("componentGraph.bbies[%d]", i)); err != nil {
			return err
		}
		bbieSet[bbie.ID] = struct{}{}
	}

	if _, ok := abieSet[g.RootABIE]; !ok {
		return fmt.Errorf("componentGraph.rootABIE must reference an ABIE id")
	}

	for i, asbie := range g.ASBIEs {
		if _, ok := abieSet[asbie.SourceABIE]; !ok {
			return fmt.Errorf("componentGraph.asbies[%d].sourceABIE must resolve to ABIE id", i)
		}
		if _, ok := abieSet[asbie.TargetABIE]; !ok {
			return fmt.Errorf("componentGraph.asbies[%d].targetABIE must resolve to ABIE id", i)
		}
	}
	for i, bbie := range g.BBIEs {
		if _, ok := abieSet[bbie.OwnerABIE]; !ok {
			return fmt.Errorf("componentGraph.bbies[%d].ownerABIE must resolve to ABIE id", i)
		}
	}
	for i, abie := range g.ABIEs {
		for _, child := range abie.ChildrenASBIE {
			if _, ok := asbieSet[child]; !ok {
				return fmt.Errorf("componentGraph.abies[%d].childrenASBIE must resolve to ASBIE ids", i)
			}
		}
		for _, child := range abie.ChildrenBBIE {
			if _, ok := bbieSet[child]; !ok {
				return fmt.Errorf("componentGraph.abies[%d].childrenBBIE must resolve to BBIE ids", i)
			}
		}
	}
	return nil
}

// ValidateAssignments checks that every assignment references a declared
// component and carries taxonomy-valid tuples. Any declared component may
// carry assigned context, aggregates included.
func ValidateAssignments(assignments []Assignment, tx *bizctx.Taxonomy, g *ComponentGraph) error {
	declared := make(map[string]struct{})
	for _, abie := range g.ABIEs {
		declared[abie.ID] = struct{}{}
	}
	for _, asbie := range g.ASBIEs {
		declared[asbie.ID] = struct{}{}
	}
	for _, bbie := range g.BBIEs {
		declared[bbie.ID] = struct{}{}
	}

	for i, assignment := range assignments {
		if assignment.ComponentID == "" {
			return fmt.Errorf("assignedBusinessContext[%d].componentId is required", i)
		}
		if _, ok := declared[assignment.ComponentID]; !ok {
			return fmt.Errorf("assignedBusinessContext[%d].componentId must resolve to a declared component id", i)
		}
		if assignment.Tuples == nil {
			return fmt.Errorf("assignedBusinessContext[%d].tuples must be an array", i)
		}
		for j, tuple := range assignment.Tuples {
			if err := tx.CheckTuple(tuple, fmt.Sprintf("assignedBusinessContext[%d].tuples[%d]", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateIUCs checks the identified-use-case list: non-empty, unique
// non-empty ids, taxonomy-valid seed tuples.
func ValidateIUCs(iucs []IUC, tx *bizctx.Taxonomy) error {
	if len(iucs) == 0 {
		return fmt.Errorf("iucs must be a non-empty array")
	}
	seen := make(map[string]struct{}, len(iucs))
	for i, iuc := range iucs {
		if iuc.ID == "" {
			return fmt.Errorf("iucs[%d].id is required", i)
		}
		if _, dup := seen[iuc.ID]; dup {
			return fmt.Errorf("iucs ids must be unique")
		}
		seen[iuc.ID] = struct{}{}
		if iuc.Tuples == nil {
			return fmt.Errorf("iucs[%d].tuples must be an array", i)
		}
		for j, tuple := range iuc.Tuples {
			if err := tx.CheckTuple(tuple, fmt.Sprintf("iucs[%d].tuples[%d]", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateMappingConfig checks the mapping configuration, returning a
// ConfigError envelope on the first violation found in fixed scan order.
func ValidateMappingConfig(cfg *MappingConfig) *Envelope {
	fail := func(reason string) *Envelope {
		return NewEnvelope(KindConfig, reason, map[string]any{"section": "mappingConfig"})
	}

	if cfg == nil {
		return fail("mappingConfig must be an object")
	}
	if cfg.ProfilePairs == nil {
		return fail("mappingConfig.profilePairs is required")
	}
	if cfg.BIECatalog == nil {
		return fail("mappingConfig.bie_catalog is required")
	}
	if cfg.SchemaPaths == nil {
		return fail("mappingConfig.schemaPaths is required")
	}

	for i, pair := range cfg.ProfilePairs {
		if pair.SourceProfileID == "" {
			return fail(fmt.Sprintf("mappingConfig.profilePairs[%d].sourceProfileId is required", i))
		}
		if pair.TargetProfileID == "" {
			return fail(fmt.Sprintf("mappingConfig.profilePairs[%d].targetProfileId is required", i))
		}
	}

	// Catalog keys are scanned in sorted order so the reported violation is
	// the same on every run.
	catalogIDs := make([]string, 0, len(cfg.BIECatalog))
	for componentID := range cfg.BIECatalog {
		catalogIDs = append(catalogIDs, componentID)
	}
	sort.Strings(catalogIDs)
	for _, componentID := range catalogIDs {
		entry := cfg.BIECatalog[componentID]
		if componentID == "" {
			return fail("mappingConfig.bie_catalog keys must be non-empty strings")
		}
		if entry.Anchor == "" {
			return fail(fmt.Sprintf("mappingConfig.bie_catalog[%q].anchor is required", componentID))
		}
		axes := make(map[string]struct{}, len(entry.RelevantAxes))
		for _, axis := range entry.RelevantAxes {
			if _, dup := axes[axis]; dup {
				return fail(fmt.Sprintf("mappingConfig.bie_catalog[%q].relevantAxes must be unique", componentID))
			}
			axes[axis] = struct{}{}
		}
	}

	if cfg.SchemaPaths.Source == nil || cfg.SchemaPaths.Target == nil {
		return fail("mappingConfig.schemaPaths must contain source and target")
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bundle defines the input contracts of the engine: the EC input
// bundle, the identified-use-case list, the mapping configuration, and the
// uniform error envelope returned on any failure.
package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
)

// Bundle is the EC pipeline input. All four sections are required.
type Bundle struct {
	Taxonomy                *bizctx.Taxonomy `json:"taxonomy"`
	Policy                  *Policy          `json:"policy"`
	ComponentGraph          *ComponentGraph  `json:"componentGraph"`
	AssignedBusinessContext []Assignment     `json:"assignedBusinessContext"`
}

// Policy is the set of legal whole-tuple witnesses. A component tuple
// survives Step 1 iff it intersects at least one legal tuple on every
// policy key simultaneously.
type Policy struct {
	PolicyKeys  []string       `json:"policyKeys"`
	LegalTuples []bizctx.Tuple `json:"legalTuples"`
}

// ComponentGraph is the tripartite component graph: aggregate entities
// (ABIE), association entities linking two ABIEs (ASBIE), and basic entities
// owned by one ABIE (BBIE). ASBIE edges may form cycles.
type ComponentGraph struct {
	RootABIE string      `json:"rootABIE"`
	ABIEs    []ABIE      `json:"abies"`
	ASBIEs   []ASBIE     `json:"asbies"`
	BBIEs    []BBIE      `json:"bbies"`
	Rules    *GraphRules `json:"rules,omitempty"`
}

// GraphRules carries per-bundle engine tuning.
type GraphRules struct {
	// MaxFixpointRounds is the default round bound for both fixpoint stages
	// when the caller does not override it. Zero means the engine default.
	MaxFixpointRounds int `json:"maxFixpointRounds,omitempty"`
}

// ABIE is an aggregate component node.
type ABIE struct {
	ID            string   `json:"id"`
	ChildrenBBIE  []string `json:"childrenBBIE,omitempty"`
	ChildrenASBIE []string `json:"childrenASBIE,omitempty"`
}

// ASBIE is a directed association edge between two ABIEs.
type ASBIE struct {
	ID         string `json:"id"`
	SourceABIE string `json:"sourceABIE"`
	TargetABIE string `json:"targetABIE"`
}

// BBIE is a basic component owned by one ABIE.
type BBIE struct {
	ID        string `json:"id"`
	OwnerABIE string `json:"ownerABIE"`
}

// Assignment attaches assigned business-context tuples to one component.
type Assignment struct {
	ComponentID string         `json:"componentId"`
	Tuples      []bizctx.Tuple `json:"tuples"`
}

// IUC is one identified use case: a profile identifier plus seed tuples.
type IUC struct {
	ID     string         `json:"id"`
	Tuples []bizctx.Tuple `json:"tuples"`
}

// MappingConfig is the mapping pipeline input.
type MappingConfig struct {
	ProfilePairs []ProfilePair           `json:"profilePairs"`
	BIECatalog   map[string]CatalogEntry `json:"bie_catalog"`
	SchemaPaths  *SchemaPaths            `json:"schemaPaths"`
}

// ProfilePair names one ordered source/target profile combination.
type ProfilePair struct {
	SourceProfileID string `json:"sourceProfileId"`
	TargetProfileID string `json:"targetProfileId"`
}

// CatalogEntry is the bie_catalog record for one component. A missing
// RelevantAxes field means an empty key-context-dimension set, not an error.
type CatalogEntry struct {
	Anchor       string   `json:"anchor"`
	RelevantAxes []string `json:"relevantAxes,omitempty"`
}

// SchemaPaths maps component ids to schema locations per side.
type SchemaPaths struct {
	Source map[string]string `json:"source"`
	Target map[string]string `json:"target"`
}

// DecodeBundle parses a JSON EC bundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// DecodeIUCs parses a JSON array of identified use cases.
func DecodeIUCs(data []byte) ([]IUC, error) {
	var iucs []IUC
	if err := json.Unmarshal(data, &iucs); err != nil {
		return nil, fmt.Errorf("decode iucs: %w", err)
	}
	return iucs, nil
}

// DecodeMappingConfig parses a JSON mapping configuration.
func DecodeMappingConfig(data []byte) (*MappingConfig, error) {
	var cfg MappingConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode mapping config: %w", err)
	}
	return &cfg, nil
}

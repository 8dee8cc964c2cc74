// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ecmap/pkg/bundle"
	"github.com/AleutianAI/ecmap/pkg/engine"
)

var tracer = otel.Tracer("ecmap/mapping")

// Options tunes a mapping run. Parallelism bounds how many profile pairs are
// classified concurrently; pairs are independent and results keep configured
// order regardless. Zero means sequential.
type Options struct {
	Parallelism int
}

// PairResult carries one profile pair's artifacts in configured order. A
// non-nil Err means the pair failed; it never aborts sibling pairs and the
// pair's only artifact is the envelope itself.
type PairResult struct {
	Pair         bundle.ProfilePair
	MRAs         []MRA
	Explanations []Explanation
	Err          *bundle.Envelope
}

// Run is the successful result of the mapping pipeline.
type Run struct {
	Pairs     []PairResult
	Artifacts []engine.Artifact
}

// RunMapping classifies every configured profile pair against the assembled
// profiles. Components appearing in either profile's schema are considered;
// ones lacking a non-empty effective context on both sides are skipped
// without error. Emission order is pair order, then componentId ascending.
// A malformed config yields only the global envelope; failures inside one
// pair are reported on that pair alone and do not abort its siblings.
func RunMapping(ctx context.Context, profiles map[string]*engine.Profile, cfg *bundle.MappingConfig, opts Options, logger *slog.Logger) (*Run, *bundle.Envelope) {
	if logger == nil {
		logger = slog.Default()
	}
	if env := bundle.ValidateMappingConfig(cfg); env != nil {
		logger.Error("mapping config rejected", "kind", env.Kind, "reason", env.Reason)
		return nil, env
	}

	ctx, span := tracer.Start(ctx, "ecmap.run_mapping",
		trace.WithAttributes(attribute.Int("pairs", len(cfg.ProfilePairs))))
	defer span.End()

	run := &Run{Pairs: make([]PairResult, len(cfg.ProfilePairs))}

	workers := opts.Parallelism
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, pair := range cfg.ProfilePairs {
		wg.Add(1)
		go func(slot int, pair bundle.ProfilePair) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, pairSpan := tracer.Start(ctx, "ecmap.mapping_pair",
				trace.WithAttributes(
					attribute.String("source", pair.SourceProfileID),
					attribute.String("target", pair.TargetProfileID)))
			defer pairSpan.End()

			if env := checkPairProfiles(pair, profiles); env != nil {
				logger.Error("mapping pair failed", "kind", env.Kind, "reason", env.Reason)
				run.Pairs[slot] = PairResult{Pair: pair, Err: env}
				return
			}
			run.Pairs[slot] = classifyPair(pair,
				profiles[pair.SourceProfileID], profiles[pair.TargetProfileID], cfg)
		}(i, pair)
	}
	wg.Wait()

	failed := 0
	for _, result := range run.Pairs {
		mraName := fmt.Sprintf("mapping.mra.%s.%s.json", result.Pair.SourceProfileID, result.Pair.TargetProfileID)
		if result.Err != nil {
			// The envelope is the pair's only output.
			run.Artifacts = append(run.Artifacts, engine.Artifact{Name: mraName, Payload: result.Err})
			failed++
			continue
		}
		run.Artifacts = append(run.Artifacts,
			engine.Artifact{Name: mraName, Payload: result.MRAs},
			engine.Artifact{
				Name:    fmt.Sprintf("mapping.explanations.%s.%s.json", result.Pair.SourceProfileID, result.Pair.TargetProfileID),
				Payload: result.Explanations,
			},
		)
	}

	logger.Info("mapping pipeline complete", "pairs", len(run.Pairs), "failed", failed)
	return run, nil
}

// checkPairProfiles verifies both ends of a pair are present in the inputs.
func checkPairProfiles(pair bundle.ProfilePair, profiles map[string]*engine.Profile) *bundle.Envelope {
	for _, profileID := range []string{pair.SourceProfileID, pair.TargetProfileID} {
		if _, ok := profiles[profileID]; !ok {
			return bundle.NewEnvelope(bundle.KindValidation,
				fmt.Sprintf("profile not found in mapping inputs: %s->%s",
					pair.SourceProfileID, pair.TargetProfileID),
				map[string]any{"stage": "profiles", "missingProfileId": profileID})
		}
	}
	return nil
}

// classifyPair walks the sorted union of both schemas' components.
func classifyPair(pair bundle.ProfilePair, source, target *engine.Profile, cfg *bundle.MappingConfig) PairResult {
	sourceEC := source.ECByComponent()
	targetEC := target.ECByComponent()

	seen := make(map[string]struct{}, len(sourceEC)+len(targetEC))
	var componentIDs []string
	for id := range sourceEC {
		seen[id] = struct{}{}
		componentIDs = append(componentIDs, id)
	}
	for id := range targetEC {
		if _, dup := seen[id]; !dup {
			componentIDs = append(componentIDs, id)
		}
	}
	sort.Strings(componentIDs)

	result := PairResult{
		Pair:         pair,
		MRAs:         []MRA{},
		Explanations: []Explanation{},
	}
	for _, componentID := range componentIDs {
		ecSource := sourceEC[componentID]
		ecTarget := targetEC[componentID]
		if len(ecSource) == 0 || len(ecTarget) == 0 {
			continue
		}

		entry := cfg.BIECatalog[componentID]
		decision, _, _, common := Classify(ecSource, ecTarget, entry.RelevantAxes)

		mra := buildMRA(componentID, entry.Anchor, entry.RelevantAxes, decision,
			ecSource, ecTarget, common,
			schemaPath(cfg.SchemaPaths, true, componentID),
			schemaPath(cfg.SchemaPaths, false, componentID))
		result.MRAs = append(result.MRAs, mra)
		result.Explanations = append(result.Explanations, mra.ExplanationJSON)
	}
	return result
}

func schemaPath(paths *bundle.SchemaPaths, source bool, componentID string) string {
	if paths == nil {
		return ""
	}
	if source {
		return paths.Source[componentID]
	}
	return paths.Target[componentID]
}

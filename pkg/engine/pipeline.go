// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ecmap/pkg/bundle"
)

var (
	tracer = otel.Tracer("ecmap/engine")
	meter  = otel.Meter("ecmap/engine")

	metricsOnce     sync.Once
	profilesBuilt   metric.Int64Counter
	pipelineFailed  metric.Int64Counter
	stageDurationMs metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		profilesBuilt, err = meter.Int64Counter("ecmap.profiles.built",
			metric.WithDescription("Profiles assembled by run-ec"))
		if err != nil {
			otel.Handle(err)
		}
		pipelineFailed, err = meter.Int64Counter("ecmap.pipeline.failed",
			metric.WithDescription("Pipeline runs that ended in an error envelope"))
		if err != nil {
			otel.Handle(err)
		}
		stageDurationMs, err = meter.Float64Histogram("ecmap.stage.duration_ms",
			metric.WithDescription("Per-stage wall time in milliseconds"),
			metric.WithUnit("ms"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Artifact is one named output file's payload. Names are stable contract:
// step1-prefiltered.json, step2-oc.json, then step3-ec.<profileId>.json and
// step4-profile.<profileId>.json per IUC.
type Artifact struct {
	Name    string
	Payload any
}

// ECRun is the successful result of the effective-context pipeline.
type ECRun struct {
	RunID      string
	ProfileIDs []string
	Profiles   map[string]*Profile
	Artifacts  []Artifact
}

// RunEC executes validation and Steps 1-4 for every IUC in order. On any
// failure it returns only the uniform error envelope; no partial artifacts
// are produced.
func RunEC(ctx context.Context, b *bundle.Bundle, iucs []bundle.IUC, opts Options, logger *slog.Logger) (*ECRun, *bundle.Envelope) {
	initMetrics()
	runID := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("runId", runID)

	ctx, span := tracer.Start(ctx, "ecmap.run_ec",
		trace.WithAttributes(attribute.Int("iucs", len(iucs))))
	defer span.End()

	if env := bundle.ValidateECInputs(b, iucs); env != nil {
		return failEC(ctx, logger, env)
	}

	resolved, err := opts.resolve(b.ComponentGraph)
	if err != nil {
		return failEC(ctx, logger, bundle.NewEnvelope(bundle.KindConfig, err.Error(), map[string]any{
			"maxRoundsOC": opts.MaxRoundsOC,
			"maxRoundsEC": opts.MaxRoundsEC,
		}))
	}

	tx := b.Taxonomy
	cg := newComponentGraph(b.ComponentGraph)

	_, prefilterSpan := tracer.Start(ctx, "ecmap.step1_prefilter")
	stageStart := time.Now()
	pre := Prefilter(b.AssignedBusinessContext, b.Policy, tx, logger)
	recordStage(ctx, "step1_prefilter", stageStart)
	prefilterSpan.End()

	_, closureSpan := tracer.Start(ctx, "ecmap.step2_oc")
	stageStart = time.Now()
	closure, err := OverlapClosure(pre, cg, tx, resolved.MaxRoundsOC, logger)
	recordStage(ctx, "step2_oc", stageStart)
	closureSpan.End()
	if err != nil {
		return failEC(ctx, logger, envelopeFor(err))
	}

	run := &ECRun{
		RunID:    runID,
		Profiles: make(map[string]*Profile, len(iucs)),
		Artifacts: []Artifact{
			{Name: "step1-prefiltered.json", Payload: pre},
			{Name: "step2-oc.json", Payload: closure},
		},
	}

	for _, iuc := range iucs {
		iucCtx, iucSpan := tracer.Start(ctx, "ecmap.profile",
			trace.WithAttributes(attribute.String("profileId", iuc.ID)))
		stageStart = time.Now()

		prop, err := PropagateContext(closure, cg, tx, iuc, resolved.MaxRoundsEC, logger)
		if err != nil {
			iucSpan.End()
			return failEC(ctx, logger, envelopeFor(err))
		}
		profile, err := AssembleProfile(prop, cg, iuc)
		if err != nil {
			iucSpan.End()
			return failEC(ctx, logger, envelopeFor(err))
		}

		run.ProfileIDs = append(run.ProfileIDs, iuc.ID)
		run.Profiles[iuc.ID] = profile
		run.Artifacts = append(run.Artifacts,
			Artifact{Name: fmt.Sprintf("step3-ec.%s.json", iuc.ID), Payload: prop},
			Artifact{Name: fmt.Sprintf("step4-profile.%s.json", iuc.ID), Payload: profile},
		)
		profilesBuilt.Add(iucCtx, 1)
		recordStage(iucCtx, "profile", stageStart)
		iucSpan.End()
	}

	logger.Info("effective-context pipeline complete",
		"profiles", len(run.ProfileIDs),
		"maxRoundsOC", resolved.MaxRoundsOC,
		"maxRoundsEC", resolved.MaxRoundsEC)
	return run, nil
}

func failEC(ctx context.Context, logger *slog.Logger, env *bundle.Envelope) (*ECRun, *bundle.Envelope) {
	pipelineFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", env.Kind)))
	logger.Error("effective-context pipeline failed",
		"kind", env.Kind, "reason", env.Reason)
	return nil, env
}

func recordStage(ctx context.Context, stage string, start time.Time) {
	stageDurationMs.Record(ctx, float64(time.Since(start).Microseconds())/1000.0,
		metric.WithAttributes(attribute.String("stage", stage)))
}

// envelopeFor maps typed stage errors onto the wire envelope.
func envelopeFor(err error) *bundle.Envelope {
	switch e := err.(type) {
	case *NonConvergenceError:
		return e.Envelope()
	case *SchemaClosureError:
		return e.Envelope()
	default:
		return bundle.NewEnvelope(bundle.KindValidation, err.Error(), map[string]any{})
	}
}

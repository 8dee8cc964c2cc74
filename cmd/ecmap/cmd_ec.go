// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ecmap/pkg/bundle"
	"github.com/AleutianAI/ecmap/pkg/engine"
	"github.com/AleutianAI/ecmap/pkg/logging"
	"github.com/AleutianAI/ecmap/pkg/ux"
)

func runEC(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()

	run, env := executeEC(cmd.Context(), logger)
	if env != nil {
		failEnvelope(env)
	}

	if err := writeArtifacts(outputDir, run.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	realizable := 0
	for _, id := range run.ProfileIDs {
		if run.Profiles[id].IsRealizable {
			realizable++
		}
	}
	ux.Summary(len(run.ProfileIDs), len(run.Artifacts), realizable)
}

// executeEC loads the bundle and IUC inputs and runs Steps 1-4. Shared by
// run-ec and run-all.
func executeEC(ctx context.Context, logger *logging.Logger) (*engine.ECRun, *bundle.Envelope) {
	b, err := loadBundle(bundlePath)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	iucs, err := loadIUCs(iucsPath)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	opts := engine.Options{MaxRoundsOC: maxRoundsOC, MaxRoundsEC: maxRoundsEC}
	return engine.RunEC(ctx, b, iucs, opts, logger.Slog())
}

func loadBundle(path string) (*bundle.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	b, err := bundle.DecodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	return b, nil
}

func loadIUCs(path string) ([]bundle.IUC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read iucs: %w", err)
	}
	iucs, err := bundle.DecodeIUCs(data)
	if err != nil {
		return nil, fmt.Errorf("decode iucs %s: %w", path, err)
	}
	return iucs, nil
}

// writeArtifacts serializes each artifact as compact JSON under dir.
func writeArtifacts(dir string, artifacts []engine.Artifact) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, artifact := range artifacts {
		payload, err := json.Marshal(artifact.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", artifact.Name, err)
		}
		path := filepath.Join(dir, artifact.Name)
		if err := os.WriteFile(path, append(payload, '\n'), 0640); err != nil {
			return fmt.Errorf("write %s: %w", artifact.Name, err)
		}
		ux.ArtifactWritten(artifact.Name, path)
	}
	return nil
}

// failEnvelope prints the uniform error envelope to stdout and exits. The
// envelope is the command's only output on failure.
func failEnvelope(env *bundle.Envelope) {
	fmt.Println(string(env.MarshalCompact()))
	ux.Error(env.Error())
	os.Exit(exitEnvelope)
}

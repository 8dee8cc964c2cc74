// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ecmap/pkg/bundle"
	"github.com/AleutianAI/ecmap/pkg/engine"
	"github.com/AleutianAI/ecmap/pkg/mapping"
	"github.com/AleutianAI/ecmap/pkg/ux"
)

func runMapping(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()

	cfg, err := loadMappingConfig(mappingConfig)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	profiles, err := loadProfiles(profilesDir)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	opts := mapping.Options{Parallelism: parallelism}
	run, env := mapping.RunMapping(cmd.Context(), profiles, cfg, opts, logger.Slog())
	if env != nil {
		failEnvelope(env)
	}

	if err := writeArtifacts(outputDir, run.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	reportPairs(run)
}

// reportPairs summarizes a mapping run, warning on every failed pair.
func reportPairs(run *mapping.Run) {
	failed := 0
	for _, pair := range run.Pairs {
		if pair.Err != nil {
			failed++
			ux.Warning(fmt.Sprintf("pair %s->%s: %s",
				pair.Pair.SourceProfileID, pair.Pair.TargetProfileID, pair.Err.Error()))
		}
	}
	ux.Success(fmt.Sprintf("classified %d profile pairs (%d failed)", len(run.Pairs)-failed, failed))
}

func runAll(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()

	cfg, err := loadMappingConfig(mappingConfig)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	ecRun, env := executeEC(cmd.Context(), logger)
	if env != nil {
		failEnvelope(env)
	}
	if err := writeArtifacts(outputDir, ecRun.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	opts := mapping.Options{Parallelism: parallelism}
	mapRun, env := mapping.RunMapping(cmd.Context(), ecRun.Profiles, cfg, opts, logger.Slog())
	if env != nil {
		failEnvelope(env)
	}
	if err := writeArtifacts(outputDir, mapRun.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	reportPairs(mapRun)

	realizable := 0
	for _, id := range ecRun.ProfileIDs {
		if ecRun.Profiles[id].IsRealizable {
			realizable++
		}
	}
	ux.Summary(len(ecRun.ProfileIDs), len(ecRun.Artifacts)+len(mapRun.Artifacts), realizable)
}

// runAllPair is run-all narrowed to one source/target combination. The
// configured pair list is replaced by the requested pair, so the catalog and
// schema paths still come from the mapping config on disk.
func runAllPair(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer logger.Close()

	if sourceProfile == "" || targetProfile == "" {
		ux.Error("run-all-pair requires --source and --target profile IDs")
		os.Exit(exitUsage)
	}
	cfg, err := loadMappingConfig(mappingConfig)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	cfg.ProfilePairs = []bundle.ProfilePair{{
		SourceProfileID: sourceProfile,
		TargetProfileID: targetProfile,
	}}

	ecRun, env := executeEC(cmd.Context(), logger)
	if env != nil {
		failEnvelope(env)
	}
	if err := writeArtifacts(outputDir, ecRun.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}

	mapRun, env := mapping.RunMapping(cmd.Context(), ecRun.Profiles, cfg, mapping.Options{}, logger.Slog())
	if env != nil {
		failEnvelope(env)
	}
	if err := writeArtifacts(outputDir, mapRun.Artifacts); err != nil {
		ux.Error(err.Error())
		os.Exit(exitUsage)
	}
	reportPairs(mapRun)
}

func loadMappingConfig(path string) (*bundle.MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping config: %w", err)
	}
	cfg, err := bundle.DecodeMappingConfig(data)
	if err != nil {
		return nil, fmt.Errorf("decode mapping config %s: %w", path, err)
	}
	return cfg, nil
}

// loadProfiles reads every step4-profile.<id>.json in dir, keyed by the
// profileId recorded inside the payload.
func loadProfiles(dir string) (map[string]*engine.Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	profiles := make(map[string]*engine.Profile)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "step4-profile.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", name, err)
		}
		var profile engine.Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", name, err)
		}
		if profile.ProfileID == "" {
			return nil, fmt.Errorf("profile %s has no profileId", name)
		}
		profiles[profile.ProfileID] = &profile
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no step4-profile.*.json files in %s", dir)
	}
	return profiles, nil
}

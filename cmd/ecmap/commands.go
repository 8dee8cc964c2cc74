// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/AleutianAI/ecmap/pkg/ux"
	"github.com/spf13/cobra"
)

// Exit codes. Envelope failures use a distinct code so callers can tell a
// pipeline rejection from a usage error.
const (
	exitSuccess  = 0
	exitUsage    = 1
	exitEnvelope = 2
)

// --- Global Command Variables ---
var (
	bundlePath    string
	iucsPath      string
	outputDir     string
	maxRoundsOC   int
	maxRoundsEC   int
	mappingConfig string
	profilesDir   string
	parallelism   int
	sourceProfile string
	targetProfile string
	outputMode    string // UX output mode (styled/minimal/machine)
	logLevel      string
	logDir        string
	logJSON       bool

	rootCmd = &cobra.Command{
		Use:   "ecmap",
		Short: "Compute effective contexts and mapping classifications for BIE graphs",
		Long: `ecmap runs the effective-context pipeline over a business-information
component bundle: policy prefiltering, overlap closure, context
propagation, and profile assembly, then classifies profile pairs into
mapping decisions.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if outputMode != "" {
				ux.SetMode(ux.ParseMode(outputMode))
			} else {
				ux.InitMode()
			}
		},
	}

	runECCmd = &cobra.Command{
		Use:   "run-ec",
		Short: "Run Steps 1-4 and write per-profile artifacts",
		Run:   runEC, // Defined in cmd_ec.go
	}

	runMappingCmd = &cobra.Command{
		Use:   "run-mapping",
		Short: "Classify configured profile pairs from assembled profiles",
		Run:   runMapping, // Defined in cmd_mapping.go
	}

	runAllCmd = &cobra.Command{
		Use:   "run-all",
		Short: "Run the EC pipeline and mapping classification in one pass",
		Run:   runAll, // Defined in cmd_mapping.go
	}

	runAllPairCmd = &cobra.Command{
		Use:   "run-all-pair",
		Short: "Run the EC pipeline and classify a single profile pair",
		Run:   runAllPair, // Defined in cmd_mapping.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the ecmap version",
		Run:   runVersion, // Defined in cmd_version.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output mode: 'styled', 'minimal', or 'machine' (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: 'debug', 'info', 'warn', or 'error'")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Also append JSON logs to a file under this directory")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Emit stderr logs as JSON")

	rootCmd.AddCommand(runECCmd)
	runECCmd.Flags().StringVar(&bundlePath, "bundle", "bundle.json", "Path to the component bundle JSON")
	runECCmd.Flags().StringVar(&iucsPath, "iucs", "iucs.json", "Path to the intended-use-context list JSON")
	runECCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to write artifacts into")
	runECCmd.Flags().IntVar(&maxRoundsOC, "max-rounds-oc", 0, "Fixpoint round bound for overlap closure (0 = bundle default)")
	runECCmd.Flags().IntVar(&maxRoundsEC, "max-rounds-ec", 0, "Fixpoint round bound for context propagation (0 = bundle default)")

	rootCmd.AddCommand(runMappingCmd)
	runMappingCmd.Flags().StringVar(&mappingConfig, "mapping-config", "mapping.json", "Path to the mapping configuration JSON")
	runMappingCmd.Flags().StringVar(&profilesDir, "profiles-dir", ".", "Directory holding step4-profile.<id>.json files")
	runMappingCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to write artifacts into")
	runMappingCmd.Flags().IntVar(&parallelism, "parallelism", 0, "Classify up to N pairs concurrently (0 = sequential)")

	rootCmd.AddCommand(runAllCmd)
	runAllCmd.Flags().StringVar(&bundlePath, "bundle", "bundle.json", "Path to the component bundle JSON")
	runAllCmd.Flags().StringVar(&iucsPath, "iucs", "iucs.json", "Path to the intended-use-context list JSON")
	runAllCmd.Flags().StringVar(&mappingConfig, "mapping-config", "mapping.json", "Path to the mapping configuration JSON")
	runAllCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to write artifacts into")
	runAllCmd.Flags().IntVar(&maxRoundsOC, "max-rounds-oc", 0, "Fixpoint round bound for overlap closure (0 = bundle default)")
	runAllCmd.Flags().IntVar(&maxRoundsEC, "max-rounds-ec", 0, "Fixpoint round bound for context propagation (0 = bundle default)")
	runAllCmd.Flags().IntVar(&parallelism, "parallelism", 0, "Classify up to N pairs concurrently (0 = sequential)")

	rootCmd.AddCommand(runAllPairCmd)
	runAllPairCmd.Flags().StringVar(&bundlePath, "bundle", "bundle.json", "Path to the component bundle JSON")
	runAllPairCmd.Flags().StringVar(&iucsPath, "iucs", "iucs.json", "Path to the intended-use-context list JSON")
	runAllPairCmd.Flags().StringVar(&mappingConfig, "mapping-config", "mapping.json", "Path to the mapping configuration JSON")
	runAllPairCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to write artifacts into")
	runAllPairCmd.Flags().IntVar(&maxRoundsOC, "max-rounds-oc", 0, "Fixpoint round bound for overlap closure (0 = bundle default)")
	runAllPairCmd.Flags().IntVar(&maxRoundsEC, "max-rounds-ec", 0, "Fixpoint round bound for context propagation (0 = bundle default)")
	runAllPairCmd.Flags().StringVar(&sourceProfile, "source", "", "Source profile ID of the pair to classify")
	runAllPairCmd.Flags().StringVar(&targetProfile, "target", "", "Target profile ID of the pair to classify")

	rootCmd.AddCommand(versionCmd)
}

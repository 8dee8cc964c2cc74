// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ecmap/pkg/engine"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("ecmap %s (%s)\n", version, engine.ProfileVersion)
}

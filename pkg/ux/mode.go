// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode controls how much styling the CLI emits.
type Mode string

const (
	// ModeStyled enables colors, icons, and boxes.
	ModeStyled Mode = "styled"

	// ModeMinimal uses icons and basic formatting only.
	ModeMinimal Mode = "minimal"

	// ModeMachine outputs plain text suitable for scripting and parsing.
	ModeMachine Mode = "machine"
)

var (
	currentMode = ModeStyled
	modeMu      sync.RWMutex
)

// GetMode returns the current output mode.
func GetMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode updates the current output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a string to a Mode, defaulting to styled.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "minimal", "min", "m":
		return ModeMinimal
	case "machine", "plain", "quiet", "q":
		return ModeMachine
	default:
		return ModeStyled
	}
}

// InitMode initializes the output mode from the environment. The
// ECMAP_OUTPUT variable wins; otherwise a non-terminal stdout drops to
// machine output.
func InitMode() {
	if env := os.Getenv("ECMAP_OUTPUT"); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !isTerminal() {
		SetMode(ModeMachine)
		return
	}
	SetMode(ModeStyled)
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ShouldShowColors returns true if output should use colors.
func ShouldShowColors() bool {
	return GetMode() != ModeMachine
}

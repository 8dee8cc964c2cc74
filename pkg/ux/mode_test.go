// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"styled", ModeStyled},
		{"minimal", ModeMinimal},
		{"min", ModeMinimal},
		{"m", ModeMinimal},
		{"machine", ModeMachine},
		{"plain", ModeMachine},
		{"quiet", ModeMachine},
		{"q", ModeMachine},
		{"MACHINE", ModeMachine},
		{"", ModeStyled},
		{"garbage", ModeStyled},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseMode(tt.input)
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetGetMode(t *testing.T) {
	old := GetMode()
	defer SetMode(old)

	SetMode(ModeMachine)
	if GetMode() != ModeMachine {
		t.Errorf("GetMode() = %v, want ModeMachine", GetMode())
	}

	SetMode(ModeMinimal)
	if GetMode() != ModeMinimal {
		t.Errorf("GetMode() = %v, want ModeMinimal", GetMode())
	}
}

func TestInitMode_EnvOverride(t *testing.T) {
	old := GetMode()
	defer SetMode(old)

	t.Setenv("ECMAP_OUTPUT", "minimal")
	InitMode()
	if GetMode() != ModeMinimal {
		t.Errorf("GetMode() = %v, want ModeMinimal", GetMode())
	}
}

func TestInitMode_NonTerminal(t *testing.T) {
	old := GetMode()
	defer SetMode(old)

	// Test runners do not attach a TTY to stdout, so without the env
	// override InitMode should fall back to machine output.
	t.Setenv("ECMAP_OUTPUT", "")
	InitMode()
	if GetMode() != ModeMachine {
		t.Errorf("GetMode() = %v, want ModeMachine under non-TTY stdout", GetMode())
	}
}

func TestShouldShowColors(t *testing.T) {
	old := GetMode()
	defer SetMode(old)

	SetMode(ModeStyled)
	if !ShouldShowColors() {
		t.Error("styled mode should show colors")
	}
	SetMode(ModeMachine)
	if ShouldShowColors() {
		t.Error("machine mode should not show colors")
	}
}

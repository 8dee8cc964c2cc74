// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import "encoding/json"

// Error kinds. Every failure the engine can surface carries exactly one of
// these in the envelope's error field.
const (
	KindValidation       = "ValidationError"
	KindOCNonConvergence = "OCNonConvergence"
	KindECNonConvergence = "ECNonConvergence"
	KindSchemaClosure    = "SchemaClosureViolation"
	KindConfig           = "ConfigError"
)

// Envelope is the uniform failure shape. It is the only value ever returned
// on error; no partial artifact accompanies it.
type Envelope struct {
	Kind    string         `json:"error"`
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details"`
}

// NewEnvelope builds an envelope. A nil details map becomes an empty object
// so the wire shape always has all three fields.
func NewEnvelope(kind, reason string, details map[string]any) *Envelope {
	if details == nil {
		details = map[string]any{}
	}
	return &Envelope{Kind: kind, Reason: reason, Details: details}
}

// Error implements the error interface so envelopes can travel through
// error-returning call chains.
func (e *Envelope) Error() string {
	return e.Kind + ": " + e.Reason
}

// MarshalCompact renders the envelope as canonical compact JSON.
func (e *Envelope) MarshalCompact() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		// Envelope fields are plain strings and JSON-safe maps; a marshal
		// failure here would be a programming error.
		return []byte(`{"error":"` + e.Kind + `","reason":"envelope marshal failed","details":{}}`)
	}
	return data
}

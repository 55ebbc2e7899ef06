// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestration

import (
	"errors"
	"fmt"
)

// Typed pipeline errors. The classifier's InvalidDecisionError completes
// the set and lives with its producer in the classifier package.

// CapabilityError is returned when an external capability (completion or
// retrieval) failed or timed out. Timeouts are not distinguished from other
// failures; both map to the Error decision for the affected stage.
type CapabilityError struct {
	Capability string // "completion" or "retrieval"
	Stage      string // pipeline stage where it failed
	Err        error
}

// Error implements the error interface for CapabilityError.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s capability failed during %s: %v", e.Capability, e.Stage, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsCapabilityError checks if an error is a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// StoreError is returned when the conversation store failed. Append failures
// degrade the response rather than failing it; read failures surface as
// empty results at the handler layer.
type StoreError struct {
	Operation string // "append", "history", "list"
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("conversation store %s failed: %v", e.Operation, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError checks if an error is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

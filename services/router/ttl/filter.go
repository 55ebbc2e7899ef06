// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ttl provides time-to-live management for conversation history.
// The query-time filter keeps expired conversations out of read results
// between sweeps; the background scheduler physically removes them.
package ttl

import "time"

// ExpiryFilter provides query-time defense-in-depth by checking conversation
// expiration before results are returned to callers.
//
// # Description
//
// The background sweeper runs periodically to remove expired conversations.
// Between sweep cycles an expired conversation still has its keys in the
// store; the filter prevents that data from leaking through reads.
//
// A small clock skew tolerance avoids filtering conversations that are just
// barely expired due to minor clock drift.
//
// # Thread Safety
//
// Stateless and safe for concurrent use.
type ExpiryFilter struct {
	clockSkewTolerance time.Duration
}

// NewExpiryFilter creates a query-time expiry filter. A zero tolerance
// defaults to 5 seconds.
func NewExpiryFilter(clockSkewTolerance time.Duration) ExpiryFilter {
	if clockSkewTolerance == 0 {
		clockSkewTolerance = 5 * time.Second
	}
	return ExpiryFilter{clockSkewTolerance: clockSkewTolerance}
}

// IsExpired reports whether an expiry timestamp has passed as of now.
//
// # Inputs
//
//   - expiresAt: Unix milliseconds expiration timestamp. 0 = never expires.
//   - now: The caller's notion of the current time.
//
// # Outputs
//
//   - bool: True if the conversation is expired and must be filtered out.
func (f ExpiryFilter) IsExpired(expiresAt int64, now time.Time) bool {
	if expiresAt == 0 {
		return false
	}
	return expiresAt < now.Add(-f.clockSkewTolerance).UnixMilli()
}

// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ttl

import (
	"testing"
	"time"
)

func TestExpiryFilter_IsExpired_PastTimestamp(t *testing.T) {
	filter := NewExpiryFilter(1 * time.Second)
	now := time.Now()

	expiredAt := now.Add(-1 * time.Hour).UnixMilli()
	if !filter.IsExpired(expiredAt, now) {
		t.Error("timestamp one hour in the past must be expired")
	}
}

func TestExpiryFilter_IsExpired_FutureTimestamp(t *testing.T) {
	filter := NewExpiryFilter(1 * time.Second)
	now := time.Now()

	expiresAt := now.Add(1 * time.Hour).UnixMilli()
	if filter.IsExpired(expiresAt, now) {
		t.Error("timestamp one hour in the future must not be expired")
	}
}

func TestExpiryFilter_IsExpired_ZeroNeverExpires(t *testing.T) {
	filter := NewExpiryFilter(1 * time.Second)
	if filter.IsExpired(0, time.Now()) {
		t.Error("zero expiry must mean never expires")
	}
}

func TestExpiryFilter_IsExpired_WithinSkewTolerance(t *testing.T) {
	filter := NewExpiryFilter(10 * time.Second)
	now := time.Now()

	// Expired 2 seconds ago, inside the 10 second grace period.
	justExpired := now.Add(-2 * time.Second).UnixMilli()
	if filter.IsExpired(justExpired, now) {
		t.Error("expiry inside the skew tolerance must not be filtered")
	}
}

func TestExpiryFilter_DefaultTolerance(t *testing.T) {
	filter := NewExpiryFilter(0)
	now := time.Now()

	// 2 seconds past expiry is within the 5 second default tolerance.
	if filter.IsExpired(now.Add(-2*time.Second).UnixMilli(), now) {
		t.Error("default tolerance must grant a 5 second grace period")
	}
	if !filter.IsExpired(now.Add(-10*time.Second).UnixMilli(), now) {
		t.Error("10 seconds past expiry must be expired under the default tolerance")
	}
}

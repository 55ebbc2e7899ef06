// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file serves as the bridge between the build system and the runtime logic. It
utilizes the Go embed package to bake the injection_patterns.yaml file directly into
the compiled binary. This ensures the trigger-phrase policy is immutable at runtime
and travels with the executable.
*/

package enforcement

import (
	_ "embed"
)

// InjectionPatterns holds the raw byte content of the 'injection_patterns.yaml' file.
//
// The phrase list is baked into the binary at compile time so the security policy
// cannot be tampered with on the host filesystem without recompiling.
//
// Usage:
//
//	err := yaml.Unmarshal(enforcement.InjectionPatterns, &targetStruct)
//
//go:embed injection_patterns.yaml
var InjectionPatterns []byte

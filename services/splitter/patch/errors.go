// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import "errors"

var (
	// ErrNoChanges indicates splitting was requested on an empty change set.
	ErrNoChanges = errors.New("no changes to split")

	// ErrChangeOmitted indicates a change is missing from every patch.
	// This is a logic defect, not a recoverable condition; the run must
	// abort rather than emit an incomplete result.
	ErrChangeOmitted = errors.New("change missing from every patch")

	// ErrPatchCycle indicates a cyclic patch graph that cycle breaking
	// could not resolve. Advisory cycles are broken with a warning, so
	// reaching this implies a defect in the graph construction.
	ErrPatchCycle = errors.New("patch dependency cycle")
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import "errors"

// Sentinel errors for diff parsing.
var (
	// ErrEmptyDiff is returned when the input contains no parseable hunks
	// at all, even after the lenient fallback pass.
	ErrEmptyDiff = errors.New("no changes could be extracted from diff")

	// ErrInvalidDiff is returned internally when the strict parser cannot
	// read the input; callers recover via the fallback splitter.
	ErrInvalidDiff = errors.New("invalid unified diff")
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "errors"

// Sentinel errors for symbol extraction.
var (
	// ErrInvalidSymbol is returned when a symbol fails validation.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidContent is returned when fragment content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFragmentTooLarge is returned when a fragment exceeds the size limit.
	ErrFragmentTooLarge = errors.New("fragment too large")
)

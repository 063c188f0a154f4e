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

import (
	"regexp"
	"strconv"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// hunkHeaderPattern matches "@@ -l[,c] +l[,c] @@" with optional section text.
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// splitLeniently recovers file and hunk boundaries from diff text the
// strict reader rejected. It scans for "--- " / "+++ " / "@@" marker
// lines and tolerates malformed headers, junk between files, and
// missing trailing context counts. Hunks with unparsable headers get
// line 1 so downstream code still sees a valid range.
func splitLeniently(diffText string) []*godiff.FileDiff {
	var (
		files   []*godiff.FileDiff
		current *godiff.FileDiff
		hunk    *godiff.Hunk
		body    strings.Builder
	)

	flushHunk := func() {
		if hunk == nil {
			return
		}
		hunk.Body = []byte(body.String())
		current.Hunks = append(current.Hunks, hunk)
		hunk = nil
		body.Reset()
	}
	flushFile := func() {
		flushHunk()
		if current != nil && len(current.Hunks) > 0 {
			files = append(files, current)
		}
		current = nil
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "):
			flushFile()
			current = &godiff.FileDiff{OrigName: strings.TrimSpace(line[4:])}

		case strings.HasPrefix(line, "+++ "):
			if current == nil {
				current = &godiff.FileDiff{}
			}
			flushHunk()
			current.NewName = strings.TrimSpace(line[4:])

		case strings.HasPrefix(line, "@@"):
			if current == nil {
				current = &godiff.FileDiff{}
			}
			flushHunk()
			hunk = parseHunkHeader(line)

		case hunk != nil:
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "diff ") {
				flushFile()
				continue
			}
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flushFile()
	return files
}

// parseHunkHeader extracts line positions from a hunk header, defaulting
// to line 1 when the header is malformed.
func parseHunkHeader(line string) *godiff.Hunk {
	h := &godiff.Hunk{OrigStartLine: 1, OrigLines: 1, NewStartLine: 1, NewLines: 1}
	m := hunkHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return h
	}
	h.OrigStartLine = parseInt32(m[1], 1)
	h.OrigLines = parseInt32(m[2], 1)
	h.NewStartLine = parseInt32(m[3], 1)
	h.NewLines = parseInt32(m[4], 1)
	return h
}

func parseInt32(s string, fallback int32) int32 {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return int32(n)
}

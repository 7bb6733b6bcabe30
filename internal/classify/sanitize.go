// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package classify

import (
	"path/filepath"
	"strings"
	"unicode"
)

// shellMetacharacters are rejected outright in file patterns; globs use
// only *, ?, [, ], { and } which are intentionally excluded here.
const shellMetacharacters = ";&|`$()<>\n\r"

// sanitizeDescription strips control characters from a task description.
func sanitizeDescription(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// validateFilePattern rejects absolute paths, parent-directory traversal,
// null bytes, and shell metacharacters.
func validateFilePattern(pattern string) error {
	if len(pattern) > MaxFilePatternLength {
		return &InvalidArgumentError{Field: "files", Reason: "pattern exceeds max length"}
	}
	if strings.ContainsRune(pattern, 0) {
		return &InvalidArgumentError{Field: "files", Reason: "pattern contains a null byte"}
	}
	if filepath.IsAbs(pattern) {
		return &InvalidArgumentError{Field: "files", Reason: "absolute paths are not allowed"}
	}
	for _, part := range strings.Split(pattern, "/") {
		if part == ".." {
			return &InvalidArgumentError{Field: "files", Reason: "parent directory traversal is not allowed"}
		}
	}
	if strings.ContainsAny(pattern, shellMetacharacters) {
		return &InvalidArgumentError{Field: "files", Reason: "shell metacharacters are not allowed"}
	}
	return nil
}

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
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// maxResolvedFiles caps glob expansion.
const maxResolvedFiles = 1000

// globCacheTTL is the resolved-file-list cache lifetime.
const globCacheTTL = 30 * time.Second

type globCacheEntry struct {
	files     []string
	expiresAt time.Time
}

// globResolver expands file patterns with doublestar
// (github.com/bmatcuk/doublestar/v4), caching expansions
// for globCacheTTL to keep repeated classify calls against the same
// working tree cheap.
type globResolver struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]globCacheEntry
}

func newGlobResolver(fsys fs.FS) *globResolver {
	return &globResolver{fsys: fsys, cache: make(map[string]globCacheEntry)}
}

// resolve expands pattern, applying the 1000-file cap and 30s TTL cache.
// A glob syntax error resolves to the pattern treated as a literal path
// (silent fallback: unresolvable patterns are preserved as literal paths
// rather than dropped or warned about).
func (g *globResolver) resolve(pattern string) []string {
	if g == nil || g.fsys == nil {
		return []string{pattern}
	}

	g.mu.Lock()
	if entry, ok := g.cache[pattern]; ok && time.Now().Before(entry.expiresAt) {
		g.mu.Unlock()
		return entry.files
	}
	g.mu.Unlock()

	matches, err := doublestar.Glob(g.fsys, pattern)
	if err != nil || len(matches) == 0 {
		matches = []string{pattern}
	}
	if len(matches) > maxResolvedFiles {
		matches = matches[:maxResolvedFiles]
	}

	g.mu.Lock()
	g.cache[pattern] = globCacheEntry{files: matches, expiresAt: time.Now().Add(globCacheTTL)}
	g.mu.Unlock()

	return matches
}

// isCrossModule reports whether patterns, taken together with their
// resolved files, span more than one top-level directory or use ** /
// brace-list syntax.
func isCrossModule(patterns []string, resolved []string) bool {
	for _, p := range patterns {
		if strings.Contains(p, "**") || strings.Contains(p, "{") {
			return true
		}
	}

	dirs := make(map[string]bool)
	for _, f := range resolved {
		dir := "."
		if idx := strings.IndexByte(f, '/'); idx >= 0 {
			dir = f[:idx]
		}
		dirs[dir] = true
	}
	return len(dirs) > 1
}

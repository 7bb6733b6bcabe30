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

package condition

import (
	"log/slog"
	"sync"
)

// Evaluator compiles and evaluates condition expressions, caching
// parsed ASTs by source text behind a mutex.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]node

	logger *slog.Logger
}

// New creates an Evaluator. A nil logger discards warnings.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{cache: make(map[string]node), logger: logger}
}

// Evaluate returns the boolean result of expr against ctx. Any
// tokenization or parse failure is fail-open (returns true) with a logged
// warning; any unresolved path or unrecognized atom inside an otherwise
// well-formed expression is fail-closed (contributes false) with a logged
// warning, never an error.
func (e *Evaluator) Evaluate(expr string, ctx Context) bool {
	ast, err := e.compile(expr)
	if err != nil {
		e.logger.Warn("condition failed to compile, failing open", "expression", expr, "error", err)
		return true
	}

	result, warn := ast.eval(ctx)
	if warn != "" {
		e.logger.Warn("condition evaluation warning", "expression", expr, "warning", warn)
	}
	return result
}

func (e *Evaluator) compile(expr string) (node, error) {
	e.mu.RLock()
	if ast, ok := e.cache[expr]; ok {
		e.mu.RUnlock()
		return ast, nil
	}
	e.mu.RUnlock()

	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	ast, err := parse(tokens)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = ast
	e.mu.Unlock()

	return ast, nil
}

// ClearCache discards all compiled expressions.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]node)
}

// CacheSize reports how many distinct expressions are currently cached.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// Tokenize exposes the tokenizer for the round-trip property
// (Evaluator(tokenize(s)) == Evaluator(s)) and for CLI debugging.
func Tokenize(expr string) ([]string, error) {
	return tokenize(expr)
}

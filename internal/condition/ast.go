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
	"fmt"
	"strconv"
	"strings"
)

// Context is the typed evaluation context: config.*, step.output.*,
// env.*, artifacts.*, and the provider list consulted by
// providers.includes(...).
type Context struct {
	Config     map[string]any
	StepOutput map[string]any
	Env        map[string]string
	Artifacts  map[string]any
	Providers  []string

	// TopLevel backs the final fallback step of bare-identifier
	// resolution ("...then top-level").
	TopLevel map[string]any
}

var compareOps = map[string]bool{
	"===": true, "==": true, "!==": true, "!=": true,
	"<": true, "<=": true, ">": true, ">=": true,
}

// node is one AST element. eval returns the boolean result; warn, if
// non-empty, is logged by the caller but never aborts evaluation.
type node interface {
	eval(ctx Context) (result bool, warn string)
}

type binaryNode struct {
	op          string // "AND" or "OR"
	left, right node
}

func (n *binaryNode) eval(ctx Context) (bool, string) {
	lv, lw := n.left.eval(ctx)
	if n.op == "AND" && !lv {
		return false, lw
	}
	if n.op == "OR" && lv {
		return true, lw
	}
	rv, rw := n.right.eval(ctx)
	warn := lw
	if warn == "" {
		warn = rw
	}
	return rv, warn
}

type notNode struct {
	child node
}

func (n *notNode) eval(ctx Context) (bool, string) {
	v, w := n.child.eval(ctx)
	return !v, w
}

// funcCallNode handles atomic function-call tokens like
// providers.includes('x').
type funcCallNode struct {
	name string
	args []string
}

func (n *funcCallNode) eval(ctx Context) (bool, string) {
	switch n.name {
	case "providers.includes":
		if len(n.args) != 1 {
			return false, fmt.Sprintf("providers.includes expects 1 argument, got %d", len(n.args))
		}
		for _, p := range ctx.Providers {
			if p == n.args[0] {
				return true, ""
			}
		}
		return false, ""
	default:
		return false, fmt.Sprintf("unrecognized function call %q", n.name)
	}
}

// comparisonNode handles "<path> <op> <literal>" and bare truthy checks
// (hasOp == false).
type comparisonNode struct {
	lhs   operand
	op    string
	rhs   operand
	hasOp bool
}

func (n *comparisonNode) eval(ctx Context) (bool, string) {
	lv, lfound, lwarn := n.lhs.resolve(ctx)
	if !n.hasOp {
		if !lfound {
			return false, lwarn
		}
		return truthy(lv), lwarn
	}

	rv, rfound, rwarn := n.rhs.resolve(ctx)
	warn := lwarn
	if warn == "" {
		warn = rwarn
	}

	if !lfound || !rfound {
		// Safe resolution: a missing path makes any comparison false.
		return false, warn
	}

	switch n.op {
	case "==", "===":
		return valuesEqual(lv, rv), warn
	case "!=", "!==":
		return !valuesEqual(lv, rv), warn
	case "<", "<=", ">", ">=":
		lf, lok := asFloat(lv)
		rf, rok := asFloat(rv)
		if !lok || !rok {
			return false, warn
		}
		switch n.op {
		case "<":
			return lf < rf, warn
		case "<=":
			return lf <= rf, warn
		case ">":
			return lf > rf, warn
		case ">=":
			return lf >= rf, warn
		}
	}
	return false, fmt.Sprintf("unsupported operator %q", n.op)
}

// operandKind distinguishes literals from context paths.
type operandKind int

const (
	operandLiteral operandKind = iota
	operandPath
)

type operand struct {
	kind  operandKind
	value any    // for operandLiteral
	path  string // for operandPath
}

func (o operand) resolve(ctx Context) (any, bool, string) {
	if o.kind == operandLiteral {
		return o.value, true, ""
	}
	return resolvePath(ctx, o.path)
}

// resolvePath resolves the recognized surfaces: config.*,
// step.output.*, env.*, artifacts.*, and the bare-identifier fallback
// chain (config, artifacts, env.UPPERCASE, top-level).
func resolvePath(ctx Context, path string) (any, bool, string) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, false, ""
	}

	switch segments[0] {
	case "config":
		return lookupNested(ctx.Config, segments[1:])
	case "step":
		if len(segments) >= 2 && segments[1] == "output" {
			return lookupNested(ctx.StepOutput, segments[2:])
		}
		return nil, false, fmt.Sprintf("unrecognized step surface %q", path)
	case "env":
		if len(segments) != 2 {
			return nil, false, fmt.Sprintf("unrecognized env surface %q", path)
		}
		v, ok := ctx.Env[segments[1]]
		if !ok {
			return nil, false, ""
		}
		return v, true, ""
	case "artifacts":
		return lookupNested(ctx.Artifacts, segments[1:])
	default:
		if len(segments) == 1 {
			name := segments[0]
			if v, ok := ctx.Config[name]; ok {
				return v, true, ""
			}
			if v, ok := ctx.Artifacts[name]; ok {
				return v, true, ""
			}
			if v, ok := ctx.Env[strings.ToUpper(name)]; ok {
				return v, true, ""
			}
			if v, ok := ctx.TopLevel[name]; ok {
				return v, true, ""
			}
			return nil, false, ""
		}
		return nil, false, fmt.Sprintf("unrecognized atomic pattern %q", path)
	}
}

func lookupNested(m map[string]any, segments []string) (any, bool, string) {
	if len(segments) == 0 {
		return nil, false, ""
	}
	var cur any = m
	for _, seg := range segments {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false, ""
		}
		cur, ok = asMap[seg]
		if !ok {
			return nil, false, ""
		}
	}
	return cur, true, ""
}

// truthy mirrors JS-ish truthiness for the plain-identifier case: false,
// nil, 0, "", and the string "false" are falsy; everything else, empty
// collections included, is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// valuesEqual implements flexible equality: booleans compare
// against both their literal form and their string coercion (so an env
// var holding "true" equals the boolean literal true), and numeric
// strings compare numerically against number literals.
func valuesEqual(a, b any) bool {
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		if bs, ok := b.(string); ok {
			if pb, err := strconv.ParseBool(bs); err == nil {
				return pb == ab
			}
			return false
		}
	}
	if bb, ok := b.(bool); ok {
		if as, ok := a.(string); ok {
			if pa, err := strconv.ParseBool(as); err == nil {
				return pa == bb
			}
			return false
		}
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

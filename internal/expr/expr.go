// Package expr evaluates the named-value markers embedded in tool argument
// templates and environment entries.
//
// A marker has the form `#{EXPR}` and is escaped as `\#{`. EXPR is an HCL
// expression limited to a closed form: variable traversals (`env.CC`,
// `collections.paths_include`, `vars.opts[0]`), literals, tuples,
// parentheses and string templates. Functions, operators, conditionals,
// `for` and splat expressions are rejected, so evaluating a configuration
// can never execute code.
package expr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

const (
	open    = "#{"
	escaped = `\#{`
)

// Marker locates one `#{...}` occurrence. Start and End are byte offsets of
// the whole marker; Expr is the text between the braces.
type Marker struct {
	Start int
	End   int
	Expr  string
}

// FindMarkers returns the unescaped markers of s in order.
func FindMarkers(s string) ([]Marker, error) {
	var markers []Marker
	for i := 0; i+1 < len(s); i++ {
		if !strings.HasPrefix(s[i:], open) {
			continue
		}
		if i > 0 && s[i-1] == '\\' {
			continue
		}
		depth := 0
		end := -1
		for j := i + len(open); j < len(s); j++ {
			switch s[j] {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					end = j
				} else {
					depth--
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return nil, builderr.Configf("expression", "unterminated marker in '%s'", s)
		}
		markers = append(markers, Marker{Start: i, End: end + 1, Expr: s[i+len(open) : end]})
		i = end
	}
	return markers, nil
}

// HasMarkers reports whether s contains at least one unescaped marker.
func HasMarkers(s string) bool {
	m, err := FindMarkers(s)
	return err != nil || len(m) > 0
}

// Unescape turns escaped markers into literal text.
func Unescape(s string) string {
	return strings.ReplaceAll(s, escaped, open)
}

// Evaluator resolves markers against a fixed set of variables.
type Evaluator struct {
	ctx *hcl.EvalContext
}

// New returns an evaluator over the snapshot's variables.
func New(snap *config.Snapshot) *Evaluator {
	return NewWithVariables(snap.Variables())
}

// NewWithVariables returns an evaluator over vars.
func NewWithVariables(vars map[string]cty.Value) *Evaluator {
	return &Evaluator{ctx: &hcl.EvalContext{Variables: vars}}
}

// Eval parses and evaluates one expression.
func (e *Evaluator) Eval(src string) (cty.Value, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "marker", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return cty.NilVal, builderr.Configf("expression", "'%s': %s", src, diags.Error())
	}
	if err := checkClosed(parsed); err != nil {
		return cty.NilVal, builderr.Configf("expression", "'%s': %s", src, err)
	}
	val, diags := parsed.Value(e.ctx)
	if diags.HasErrors() {
		return cty.NilVal, builderr.Configf("expression", "'%s': %s", src, diags.Error())
	}
	return val, nil
}

// Strings evaluates src and flattens the result; a list yields one string
// per element.
func (e *Evaluator) Strings(src string) ([]string, error) {
	val, err := e.Eval(src)
	if err != nil {
		return nil, err
	}
	out, err := config.AsStrings(val)
	if err != nil {
		return nil, builderr.Configf("expression", "'%s': %s", src, err)
	}
	return out, nil
}

// Expand resolves every marker in s. A marker that evaluates to a list
// renders the surrounding text once per element, so the result may hold
// zero, one or several strings. Escapes are preserved for the caller.
func (e *Evaluator) Expand(s string) ([]string, error) {
	markers, err := FindMarkers(s)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return []string{s}, nil
	}
	first := markers[0]
	values, err := e.Strings(first.Expr)
	if err != nil {
		return nil, err
	}
	rests, err := e.Expand(s[first.End:])
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values)*len(rests))
	for _, v := range values {
		for _, rest := range rests {
			out = append(out, s[:first.Start]+v+rest)
		}
	}
	return out, nil
}

// checkClosed walks the syntax tree and rejects anything outside the closed
// expression form.
func checkClosed(expr hclsyntax.Expression) error {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr, *hclsyntax.ScopeTraversalExpr:
		return nil
	case *hclsyntax.RelativeTraversalExpr:
		return checkClosed(e.Source)
	case *hclsyntax.IndexExpr:
		if _, ok := e.Key.(*hclsyntax.LiteralValueExpr); !ok {
			return fmt.Errorf("index keys must be literals")
		}
		return checkClosed(e.Collection)
	case *hclsyntax.ParenthesesExpr:
		return checkClosed(e.Expression)
	case *hclsyntax.TemplateWrapExpr:
		return checkClosed(e.Wrapped)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			if err := checkClosed(part); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			if err := checkClosed(item); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.FunctionCallExpr:
		return fmt.Errorf("function calls are not supported: %s()", e.Name)
	case *hclsyntax.BinaryOpExpr, *hclsyntax.UnaryOpExpr:
		return fmt.Errorf("operators are not supported")
	case *hclsyntax.ConditionalExpr:
		return fmt.Errorf("conditionals are not supported")
	case *hclsyntax.ForExpr:
		return fmt.Errorf("for expressions are not supported")
	case *hclsyntax.SplatExpr:
		return fmt.Errorf("splat expressions are not supported")
	default:
		return fmt.Errorf("unsupported expression")
	}
}

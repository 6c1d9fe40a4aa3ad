// Package command expands tool descriptors into runnable command lines.
//
// An argument element is either a literal or a pattern→collection pair.
// Literals may hold positional tokens `${n}` (1-indexed inputs) and
// named-value markers `#{EXPR}`; a sequence input or a list-valued marker
// renders the element once per member. Pattern elements render one copy of
// the pattern per collection element, with `$` standing for the element.
// `\${`, `\#{` and `\$` are escapes and come out as literal text.
package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/expr"
)

// maxPasses bounds the marker rewrite passes run over an assembled command.
const maxPasses = 8

// Command is a fully resolved tool invocation.
type Command struct {
	Name           string
	Executable     string
	Arguments      []string
	Line           string
	StderrRedirect config.StderrRedirect
	FailOnError    bool
	Optional       bool
}

// Builder renders tool descriptors against one configuration snapshot.
type Builder struct {
	snap *config.Snapshot
	eval *expr.Evaluator
}

// NewBuilder returns a builder bound to snap.
func NewBuilder(snap *config.Snapshot) *Builder {
	return &Builder{snap: snap, eval: expr.New(snap)}
}

// Build expands tool with the given positional inputs. Each input is a
// string or a []string; extraArgs are appended verbatim before the final
// marker passes.
func (b *Builder) Build(ctx context.Context, tool *config.ToolDescriptor, extraArgs []string, inputs ...any) (*Command, error) {
	if tool == nil {
		return nil, builderr.Configf("tools", "tool descriptor is nil")
	}
	path := "tools." + tool.Name

	values := make([][]string, len(inputs))
	for i, in := range inputs {
		switch v := in.(type) {
		case nil:
		case string:
			values[i] = []string{v}
		case []string:
			values[i] = append([]string{}, v...)
		default:
			return nil, fmt.Errorf("%s: input %d has unsupported type %T", path, i+1, in)
		}
	}
	r := renderer{builder: b, tool: tool.Name, path: path, inputs: values, present: presence(inputs)}

	exe, err := r.literal(tool.Executable)
	if err != nil {
		return nil, err
	}
	exe, err = r.finish(exe)
	if err != nil {
		return nil, err
	}
	if len(exe) != 1 || strings.TrimSpace(exe[0]) == "" {
		return nil, builderr.Configf(path+".executable", "must resolve to exactly one value, got %d", len(exe))
	}

	var parts []string
	for i, arg := range tool.Arguments {
		var rendered []string
		if arg.IsCollection() {
			rendered, err = r.collection(arg)
		} else {
			rendered, err = r.literal(arg.Literal)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.arguments[%d]: %w", path, i, err)
		}
		parts = append(parts, rendered...)
	}
	parts = append(parts, extraArgs...)

	parts, err = r.finish(parts)
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		Name:           tool.Name,
		Executable:     strings.TrimSpace(exe[0]),
		StderrRedirect: tool.StderrRedirect,
		FailOnError:    true,
		Optional:       tool.Optional,
	}
	for _, p := range parts {
		if p = normalize(p); p != "" {
			cmd.Arguments = append(cmd.Arguments, p)
		}
	}
	cmd.Line = normalize(cmd.Executable + " " + strings.Join(cmd.Arguments, " "))

	ctxlog.FromContext(ctx).Debug("Built command.", "tool", tool.Name, "line", cmd.Line)
	return cmd, nil
}

type renderer struct {
	builder *Builder
	tool    string
	path    string
	inputs  [][]string
	present []bool
}

func presence(inputs []any) []bool {
	out := make([]bool, len(inputs))
	for i, in := range inputs {
		out[i] = in != nil
	}
	return out
}

// literal substitutes positional tokens and then markers. Every sequence
// input multiplies the renders; an empty sequence yields none.
func (r *renderer) literal(s string) ([]string, error) {
	renders := []string{s}
	for _, idx := range positionalTokens(s) {
		if idx > len(r.inputs) || !r.present[idx-1] {
			return nil, builderr.Configf(r.path, "tool '%s' references ${%d} but only %d input(s) were supplied", r.tool, idx, len(r.inputs))
		}
		var next []string
		for _, render := range renders {
			for _, v := range r.inputs[idx-1] {
				next = append(next, substituteToken(render, idx, v))
			}
		}
		renders = next
	}
	return r.markers(renders)
}

// collection renders the pattern once per element of the referenced
// collection.
func (r *renderer) collection(arg config.ArgumentElement) ([]string, error) {
	ref := arg.Collection
	if !strings.Contains(ref, ".") {
		ref = "collections." + ref
	}
	elems, ok, err := r.builder.snap.Strings(ref)
	if !ok {
		return nil, builderr.Configf(r.path, "tool '%s' references undefined collection '%s'", r.tool, arg.Collection)
	}
	if err != nil {
		return nil, builderr.Configf(r.path, "tool '%s' collection '%s': %s", r.tool, arg.Collection, err)
	}
	renders := make([]string, 0, len(elems))
	for _, elem := range elems {
		renders = append(renders, substituteDollar(arg.Pattern, elem))
	}
	return r.markers(renders)
}

func (r *renderer) markers(renders []string) ([]string, error) {
	out := make([]string, 0, len(renders))
	for _, render := range renders {
		expanded, err := r.builder.eval.Expand(render)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// finish resolves markers introduced by substituted values, bounded by
// maxPasses, and restores escaped text.
func (r *renderer) finish(parts []string) ([]string, error) {
	for pass := 0; ; pass++ {
		pending := false
		for _, p := range parts {
			if expr.HasMarkers(p) {
				pending = true
				break
			}
		}
		if !pending {
			break
		}
		if pass == maxPasses {
			return nil, builderr.Configf(r.path, "tool '%s' markers still unresolved after %d passes; definitions may be cyclic", r.tool, maxPasses)
		}
		next, err := r.markers(parts)
		if err != nil {
			return nil, err
		}
		parts = next
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unescape(p)
	}
	return out, nil
}

// positionalTokens returns the distinct token indexes of s in order of
// first appearance. Malformed tokens are left as text; Validate reports
// them.
func positionalTokens(s string) []int {
	var out []int
	seen := make(map[int]bool)
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '$' || s[i+1] != '{' || (i > 0 && s[i-1] == '\\') {
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			break
		}
		n, err := strconv.Atoi(s[i+2 : i+end])
		if err == nil && n > 0 && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
		i += end
	}
	return out
}

func substituteToken(s string, idx int, value string) string {
	token := "${" + strconv.Itoa(idx) + "}"
	var sb strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], token) && (i == 0 || s[i-1] != '\\') {
			sb.WriteString(value)
			i += len(token)
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// substituteDollar replaces each bare `$` of pattern with value. `\$` and
// the openers of escaped tokens stay literal.
func substituteDollar(pattern, value string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) && pattern[i+1] == '$' {
			if i+2 < len(pattern) && pattern[i+2] == '{' {
				sb.WriteString(`\$`)
			} else {
				sb.WriteByte('$')
			}
			i++
			continue
		}
		if c == '$' {
			sb.WriteString(value)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\${`, "${")
	return expr.Unescape(s)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

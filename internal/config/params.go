// Package config parses algorithm options and run configuration files.
//
// Options are exchanged as text (Params) and converted to typed values once,
// when an algorithm is configured. Values use YAML scalar and flow syntax, so
// "[0.4, 0.4, 0.4]" is a vector, "True" a boolean and "VERBOSE" a string.
package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/voxlabel/internal/errs"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// Params maps option names to their text values.
type Params map[string]string

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the option names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parser converts Params into typed values for one algorithm. Every
// getter marks its key as consumed; the first conversion failure is kept
// and reported by Err and Finish.
type Parser struct {
	algorithm string
	params    Params
	used      map[string]bool
	err       error
}

// NewParser returns a Parser over params for the named algorithm.
func NewParser(algorithm string, params Params) *Parser {
	return &Parser{algorithm: algorithm, params: params, used: make(map[string]bool)}
}

// Has reports whether key is present, marking it consumed.
func (r *Parser) Has(key string) bool {
	_, ok := r.params[key]
	if ok {
		r.used[key] = true
	}
	return ok
}

func (r *Parser) fail(key, format string, args ...interface{}) {
	if r.err == nil {
		r.err = errs.Config(r.algorithm, key, format, args...)
	}
}

// decode parses the value for key into out. It returns false when the key
// is absent or the value does not parse.
func (r *Parser) decode(key string, out interface{}) bool {
	raw, ok := r.params[key]
	if !ok {
		return false
	}
	r.used[key] = true
	if strings.TrimSpace(raw) == "" {
		r.fail(key, "empty value")
		return false
	}
	if err := yaml.Unmarshal([]byte(raw), out); err != nil {
		r.fail(key, "cannot parse %q: %v", raw, err)
		return false
	}
	return true
}

// Float returns the numeric value of key.
func (r *Parser) Float(key string) (float64, bool) {
	var v float64
	ok := r.decode(key, &v)
	return v, ok
}

// FloatOr returns the numeric value of key, or def when absent.
func (r *Parser) FloatOr(key string, def float64) float64 {
	if v, ok := r.Float(key); ok {
		return v
	}
	return def
}

// integral checks that every scalar in n is a YAML integer. yaml.v3
// truncates "3.5" when decoding into an integer, so the tag is checked
// first.
func (r *Parser) integral(key string, n *yaml.Node) bool {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() != "!!int" {
			r.fail(key, "expected an integer, got %q", n.Value)
			return false
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if !r.integral(key, c) {
				return false
			}
		}
	}
	return true
}

// Int returns the integer value of key.
func (r *Parser) Int(key string) (int64, bool) {
	var n yaml.Node
	if !r.decode(key, &n) || !r.integral(key, &n) {
		return 0, false
	}
	var v int64
	if err := n.Decode(&v); err != nil {
		r.fail(key, "cannot parse %q: %v", r.params[key], err)
		return 0, false
	}
	return v, true
}

// IntOr returns the integer value of key, or def when absent.
func (r *Parser) IntOr(key string, def int64) int64 {
	if v, ok := r.Int(key); ok {
		return v
	}
	return def
}

// Bool returns the boolean value of key.
func (r *Parser) Bool(key string) (bool, bool) {
	var v bool
	ok := r.decode(key, &v)
	return v, ok
}

// BoolOr returns the boolean value of key, or def when absent.
func (r *Parser) BoolOr(key string, def bool) bool {
	if v, ok := r.Bool(key); ok {
		return v
	}
	return def
}

// Text returns the trimmed text of key.
func (r *Parser) Text(key string) (string, bool) {
	raw, ok := r.params[key]
	if !ok {
		return "", false
	}
	r.used[key] = true
	return strings.TrimSpace(raw), true
}

// TextOr returns the trimmed text of key, or def when absent.
func (r *Parser) TextOr(key, def string) string {
	if v, ok := r.Text(key); ok {
		return v
	}
	return def
}

// Vec3 returns a three-component vector.
func (r *Parser) Vec3(key string) (voxel.Point3D, bool) {
	var v []float64
	if !r.decode(key, &v) {
		return voxel.Point3D{}, false
	}
	if len(v) != 3 {
		r.fail(key, "expected 3 components, got %d", len(v))
		return voxel.Point3D{}, false
	}
	return voxel.Point3D{X: v[0], Y: v[1], Z: v[2]}, true
}

// Ints returns a list of integers.
func (r *Parser) Ints(key string) ([]int, bool) {
	var n yaml.Node
	if !r.decode(key, &n) || !r.integral(key, &n) {
		return nil, false
	}
	var v []int
	if err := n.Decode(&v); err != nil {
		r.fail(key, "cannot parse %q: %v", r.params[key], err)
		return nil, false
	}
	return v, true
}

// Fail records a validation error for key, unless one is already recorded.
func (r *Parser) Fail(key, format string, args ...interface{}) {
	r.fail(key, format, args...)
}

// Err returns the first conversion or validation error.
func (r *Parser) Err() error { return r.err }

// Unused returns the keys no getter consumed, sorted.
func (r *Parser) Unused() []string {
	var out []string
	for _, k := range r.params.Keys() {
		if !r.used[k] {
			out = append(out, k)
		}
	}
	return out
}

// Finish reports the first error, then unrecognized options. In strict
// mode unrecognized options are a ConfigError; otherwise they are returned
// for the caller to log.
func (r *Parser) Finish(strict bool) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	unused := r.Unused()
	if strict && len(unused) > 0 {
		return unused, errs.Config(r.algorithm, unused[0], "unrecognized option (all unrecognized: %s)", strings.Join(unused, ", "))
	}
	return unused, nil
}

// String renders params deterministically for logs.
func (p Params) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, p[k])
	}
	b.WriteString("}")
	return b.String()
}

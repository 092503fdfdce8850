// Package flatten collapses nested JSON schemas and records into a single
// level of columns. Nested keys are joined with a separator, so the path
// [a, b, c] becomes a__b__c with the default separator.
//
// Both walks use an explicit worklist, so depth is bounded only by the
// configured maximum level and not by the goroutine stack.
package flatten

import (
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/json"
)

const (
	// DefaultSeparator joins nested key names.
	DefaultSeparator = "__"
	// DefaultMaxLevel is how deep object properties are flattened.
	DefaultMaxLevel = 20
)

// Schema is a flattened schema: leaf column names in declaration order, each
// with the schema node that describes it, plus the top-level required list.
type Schema struct {
	names    []string
	nodes    map[string]json.Value
	required map[string]bool
}

// NewSchema returns an empty flattened schema.
func NewSchema() *Schema {
	return &Schema{
		nodes:    make(map[string]json.Value),
		required: make(map[string]bool),
	}
}

// Set declares a leaf. A name that already exists keeps its position and
// takes the new node.
func (s *Schema) Set(name string, node json.Value) {
	if _, ok := s.nodes[name]; !ok {
		s.names = append(s.names, name)
	}
	s.nodes[name] = node
}

// Has reports whether name is a declared leaf.
func (s *Schema) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.nodes[name]
	return ok
}

// Node returns the schema node of a leaf.
func (s *Schema) Node(name string) (json.Value, bool) {
	node, ok := s.nodes[name]
	return node, ok
}

// Names returns leaf names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of leaves.
func (s *Schema) Len() int { return len(s.names) }

// Required reports whether name is listed in the top-level required array.
func (s *Schema) Required(name string) bool { return s.required[name] }

// MarkRequired adds name to the required set.
func (s *Schema) MarkRequired(name string) { s.required[name] = true }

// Equal reports whether two flattened schemas declare the same leaves, in
// the same order, with identical nodes and required sets.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.names) != len(o.names) || len(s.required) != len(o.required) {
		return false
	}
	for i, name := range s.names {
		if o.names[i] != name || !s.nodes[name].Equal(o.nodes[name]) {
			return false
		}
	}
	for name := range s.required {
		if !o.required[name] {
			return false
		}
	}
	return true
}

// LeavesUnder returns the declared leaves whose names start with prefix, in
// declaration order.
func (s *Schema) LeavesUnder(prefix string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, name := range s.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

type schemaFrame struct {
	props  []json.Member
	next   int
	prefix string
	level  int
}

// FlattenSchema flattens the properties of a JSON schema. A property is
// descended into when its type includes "object", it declares at least one
// property and the current level is below maxLevel. A property without
// "type" whose anyOf has an object branch with properties is descended
// through that branch.
// Everything else becomes a leaf that keeps its own schema node.
func FlattenSchema(raw json.Value, maxLevel int, sep string) *Schema {
	if sep == "" {
		sep = DefaultSeparator
	}
	out := NewSchema()

	if req, ok := raw.Get("required"); ok {
		for _, item := range req.Items() {
			if item.Kind() == json.KindString {
				out.MarkRequired(item.Text())
			}
		}
	}

	props, ok := raw.Get("properties")
	if !ok || props.Kind() != json.KindObject {
		return out
	}

	stack := []*schemaFrame{{props: props.Members()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.props) {
			stack = stack[:len(stack)-1]
			continue
		}
		prop := top.props[top.next]
		top.next++

		name := prop.Key
		if top.prefix != "" {
			name = top.prefix + sep + prop.Key
		}

		if nested, ok := objectProperties(prop.Value); ok && top.level < maxLevel {
			stack = append(stack, &schemaFrame{props: nested, prefix: name, level: top.level + 1})
			continue
		}
		out.Set(name, prop.Value)
	}
	return out
}

// objectProperties returns the properties of an object-typed node, looking
// through anyOf when the node declares no type of its own.
func objectProperties(node json.Value) ([]json.Member, bool) {
	if node.Kind() != json.KindObject {
		return nil, false
	}
	if _, ok := node.Get("type"); ok {
		if !HasType(node, "object") {
			return nil, false
		}
		// An object without declared properties stays a single column.
		props, ok := node.Get("properties")
		if !ok || props.Kind() != json.KindObject || len(props.Members()) == 0 {
			return nil, false
		}
		return props.Members(), true
	}
	anyOf, ok := node.Get("anyOf")
	if !ok {
		return nil, false
	}
	for _, branch := range anyOf.Items() {
		if _, typed := branch.Get("type"); !typed {
			continue
		}
		if props, ok := objectProperties(branch); ok {
			return props, true
		}
	}
	return nil, false
}

// Types returns the type tags a schema node declares, taken from "type"
// (string or array) or, when that is absent or empty, from every anyOf
// branch in order.
func Types(node json.Value) []string {
	tags := typeTags(node)
	if len(tags) > 0 {
		return tags
	}
	anyOf, _ := node.Get("anyOf")
	for _, branch := range anyOf.Items() {
		tags = append(tags, typeTags(branch)...)
	}
	return tags
}

func typeTags(node json.Value) []string {
	t, ok := node.Get("type")
	if !ok {
		return nil
	}
	switch t.Kind() {
	case json.KindString:
		return []string{t.Text()}
	case json.KindArray:
		tags := make([]string, 0, len(t.Items()))
		for _, item := range t.Items() {
			if item.Kind() == json.KindString {
				tags = append(tags, item.Text())
			}
		}
		return tags
	}
	return nil
}

// HasType reports whether node declares tag, case-insensitively.
func HasType(node json.Value, tag string) bool {
	for _, t := range Types(node) {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

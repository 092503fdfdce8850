// Package schema maps flattened JSON schemas onto the columnar type system
// used for the Parquet files: one scalar type and a nullability flag per
// column, in declaration order.
package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/ajitpratap0/target-parquet/pkg/flatten"
	"github.com/ajitpratap0/target-parquet/pkg/json"
)

// Type is a columnar scalar type.
type Type int

const (
	String Type = iota
	Bool
	Int64
	Float64
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int64:
		return "int64"
	case Float64:
		return "double"
	default:
		return "string"
	}
}

// ArrowType returns the Arrow data type for t.
func (t Type) ArrowType() arrow.DataType {
	switch t {
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// typeTable maps upper-cased JSON schema type tags to column types. Arrays
// and objects are stored as their literal string form. Anything missing
// from the table is a string.
var typeTable = map[string]Type{
	"BOOLEAN": Bool,
	"STRING":  String,
	"ARRAY":   String,
	"INTEGER": Int64,
	"NUMBER":  Float64,
	"OBJECT":  String,
}

// LookupType resolves a single type tag, case-insensitively.
func LookupType(tag string) Type {
	if t, ok := typeTable[strings.ToUpper(tag)]; ok {
		return t
	}
	return String
}

// Field is one column.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// ResolveField derives the column for a flattened schema node. All declared
// tags are collected (from "type", or from every anyOf branch); a "null"
// tag anywhere makes the column nullable and is dropped, as does absence
// from the required set. The first remaining tag picks the type.
func ResolveField(name string, node json.Value, required bool) Field {
	tags := flatten.Types(node)

	nullable := !required
	candidates := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.EqualFold(tag, "null") {
			nullable = true
			continue
		}
		candidates = append(candidates, tag)
	}

	typ := String
	if len(candidates) > 0 {
		typ = LookupType(candidates[0])
	}
	return Field{Name: name, Type: typ, Nullable: nullable}
}

// Schema is an ordered list of columns with lookup by name.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a schema from fields. A repeated name replaces the earlier
// field in its original position.
func New(fields ...Field) *Schema {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if i, ok := s.index[f.Name]; ok {
			s.fields[i] = f
			continue
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// FromFlattened resolves every leaf of a flattened schema, keeping
// declaration order.
func FromFlattened(fs *flatten.Schema) *Schema {
	names := fs.Names()
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		node, _ := fs.Node(name)
		fields = append(fields, ResolveField(name, node, fs.Required(name)))
	}
	return New(fields...)
}

// Fields returns the columns in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// At returns the i-th column without copying the field list.
func (s *Schema) At(i int) Field { return s.fields[i] }

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.fields) }

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a column by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema has a column called name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Without returns a copy of s minus the named columns.
func (s *Schema) Without(names ...string) *Schema {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	fields := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !drop[f.Name] {
			fields = append(fields, f)
		}
	}
	return New(fields...)
}

// Equal reports whether both schemas have the same columns in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

// Arrow converts s to an Arrow schema.
func (s *Schema) Arrow() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(s.fields))
	for _, f := range s.fields {
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     f.Type.ArrowType(),
			Nullable: f.Nullable,
		})
	}
	return arrow.NewSchema(fields, nil)
}

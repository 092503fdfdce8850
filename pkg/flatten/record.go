package flatten

import (
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/pool"
)

// Row is one flattened record keyed by column name. Columns a record does
// not carry are simply absent and are written as nulls.
type Row map[string]json.Value

// Put stores v under name. A null never replaces a value already present,
// so a null parent cannot clobber a leaf reached through another path.
func (r Row) Put(name string, v json.Value) {
	if v.IsNull() {
		if _, ok := r[name]; ok {
			return
		}
	}
	r[name] = v
}

// DescendFunc decides whether the object found at the flattened name, at
// the given zero-based level, is expanded into its members.
type DescendFunc func(name string, level int) bool

// SchemaPolicy descends into every object whose flattened name is not a
// declared leaf of s. The schema decides where flattening stops.
func SchemaPolicy(s *Schema) DescendFunc {
	return func(name string, _ int) bool {
		return !s.Has(name)
	}
}

// DepthPolicy descends while level is below maxLevel.
func DepthPolicy(maxLevel int) DescendFunc {
	return func(_ string, level int) bool {
		return level < maxLevel
	}
}

// FlattenRecord flattens record against a flattened schema, or by depth up
// to maxLevel when schema is nil.
func FlattenRecord(record json.Value, schema *Schema, maxLevel int, sep string) Row {
	descend := DepthPolicy(maxLevel)
	if schema != nil {
		descend = SchemaPolicy(schema)
	}
	return Flatten(record, sep, descend, schema)
}

type recordFrame struct {
	members []json.Member
	next    int
	prefix  string
	level   int
}

var framePool = pool.New(
	func() *[]recordFrame {
		s := make([]recordFrame, 0, 8)
		return &s
	},
	func(s *[]recordFrame) {
		clear((*s)[:cap(*s)])
		*s = (*s)[:0]
	},
)

// Flatten walks record in document order. Objects are expanded when descend
// allows it. Arrays and objects that stay whole are stored as their
// compact literal string. When schema is given, a null at a name that is not
// a leaf but has declared leaves beneath it yields a null for each of those
// leaves.
func Flatten(record json.Value, sep string, descend DescendFunc, schema *Schema) Row {
	if sep == "" {
		sep = DefaultSeparator
	}
	row := make(Row, len(record.Members()))

	stackp := framePool.Get()
	defer framePool.Put(stackp)
	stack := append(*stackp, recordFrame{members: record.Members()})
	defer func() { *stackp = stack }()
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.members) {
			stack = stack[:len(stack)-1]
			continue
		}
		m := top.members[top.next]
		top.next++

		name := m.Key
		if top.prefix != "" {
			name = top.prefix + sep + m.Key
		}
		v := m.Value

		switch {
		case v.Kind() == json.KindObject && descend(name, top.level):
			stack = append(stack, recordFrame{members: v.Members(), prefix: name, level: top.level + 1})

		case v.IsNull() && schema != nil && !schema.Has(name):
			leaves := schema.LeavesUnder(name + sep)
			if len(leaves) == 0 {
				row.Put(name, v)
				continue
			}
			for _, leaf := range leaves {
				row.Put(leaf, json.Null())
			}

		case v.Kind() == json.KindObject, v.Kind() == json.KindArray:
			row.Put(name, json.String(json.Stringify(v)))

		default:
			row.Put(name, v)
		}
	}
	return row
}

package flatten

import (
	"testing"

	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, s string) json.Value {
	t.Helper()
	v, err := json.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func rowText(row Row) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		if v.IsNull() {
			out[k] = nil
			continue
		}
		out[k] = v.Text()
	}
	return out
}

func TestFlattenRecordByDepth(t *testing.T) {
	record := mustDecode(t, `{"key_1":1,"key_2":{"key_3":2,"key_4":{"key_5":3,"key_6":["10","11"]}}}`)

	row := FlattenRecord(record, nil, 20, DefaultSeparator)

	assert.Equal(t, map[string]interface{}{
		"key_1":               "1",
		"key_2__key_3":        "2",
		"key_2__key_4__key_5": "3",
		"key_2__key_4__key_6": "['10','11']",
	}, rowText(row))
	assert.Equal(t, json.KindNumber, row["key_1"].Kind())
	assert.Equal(t, json.KindString, row["key_2__key_4__key_6"].Kind())
}

func TestFlattenRecordDepthLimit(t *testing.T) {
	record := mustDecode(t, `{"a":{"b":{"c":1}}}`)

	tests := []struct {
		name     string
		maxLevel int
		want     map[string]interface{}
	}{
		{name: "zero", maxLevel: 0, want: map[string]interface{}{"a": "{'b':{'c':1}}"}},
		{name: "one", maxLevel: 1, want: map[string]interface{}{"a__b": "{'c':1}"}},
		{name: "enough", maxLevel: 5, want: map[string]interface{}{"a__b__c": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rowText(FlattenRecord(record, nil, tt.maxLevel, DefaultSeparator)))
		})
	}
}

func TestFlattenRecordSchemaStopsDescent(t *testing.T) {
	schema := FlattenSchema(mustDecode(t, `{
		"properties": {
			"id": {"type": "integer"},
			"meta": {"type": ["null", "object"]},
			"addr": {"type": "object", "properties": {"city": {"type": "string"}}}
		}
	}`), DefaultMaxLevel, DefaultSeparator)

	record := mustDecode(t, `{"id":7,"meta":{"k":"v"},"addr":{"city":"Oslo"}}`)
	row := FlattenRecord(record, schema, DefaultMaxLevel, DefaultSeparator)

	assert.Equal(t, map[string]interface{}{
		"id":         "7",
		"meta":       "{'k':'v'}",
		"addr__city": "Oslo",
	}, rowText(row))
}

func TestFlattenRecordNullExpansion(t *testing.T) {
	schema := FlattenSchema(mustDecode(t, `{
		"properties": {
			"field1": {"type": "object", "properties": {
				"field2": {"type": "object", "properties": {
					"field3": {"type": "string"},
					"field4": {"type": "string"}
				}}
			}},
			"field2": {"type": "object", "properties": {
				"field3": {"type": "string"},
				"field4": {"type": "string"},
				"field5": {"type": "string"}
			}},
			"field6": {"type": "string"}
		}
	}`), DefaultMaxLevel, DefaultSeparator)

	record := mustDecode(t, `{"field1":{"field2":{"field3":"test_field3","field4":"test_field4"}},"field2":null}`)
	row := FlattenRecord(record, schema, DefaultMaxLevel, DefaultSeparator)

	assert.Equal(t, map[string]interface{}{
		"field1__field2__field3": "test_field3",
		"field1__field2__field4": "test_field4",
		"field2__field3":         nil,
		"field2__field4":         nil,
		"field2__field5":         nil,
	}, rowText(row))
	_, hasField6 := row["field6"]
	assert.False(t, hasField6)
}

func TestFlattenRecordNullNeverOverwrites(t *testing.T) {
	// "a__b" is reached both as a literal key and through the null parent "a".
	schema := FlattenSchema(mustDecode(t, `{
		"properties": {
			"a__b": {"type": "string"},
			"a": {"type": "object", "properties": {"b": {"type": "string"}, "c": {"type": "string"}}}
		}
	}`), DefaultMaxLevel, DefaultSeparator)

	row := FlattenRecord(mustDecode(t, `{"a__b":"kept","a":null}`), schema, DefaultMaxLevel, DefaultSeparator)
	assert.Equal(t, map[string]interface{}{"a__b": "kept", "a__c": nil}, rowText(row))

	// Non-null writes are last-write-wins in document order.
	row = FlattenRecord(mustDecode(t, `{"a":{"b":"first"},"a__b":"second"}`), nil, DefaultMaxLevel, DefaultSeparator)
	assert.Equal(t, map[string]interface{}{"a__b": "second"}, rowText(row))

	row = FlattenRecord(mustDecode(t, `{"a__b":"first","a":{"b":null}}`), nil, DefaultMaxLevel, DefaultSeparator)
	assert.Equal(t, map[string]interface{}{"a__b": "first"}, rowText(row))
}

func TestFlattenCustomPolicy(t *testing.T) {
	record := mustDecode(t, `{"keep":{"x":1},"open":{"y":2}}`)
	row := Flatten(record, ".", func(name string, _ int) bool { return name == "open" }, nil)
	assert.Equal(t, map[string]interface{}{"keep": "{'x':1}", "open.y": "2"}, rowText(row))
}

func TestFlattenSchema(t *testing.T) {
	raw := mustDecode(t, `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "integer"},
			"key_2": {"type": ["null", "object"], "properties": {
				"key_3": {"type": "string"},
				"key_4": {"type": "object", "properties": {
					"key_5": {"type": "integer"},
					"key_6": {"type": "array", "items": {"type": "string"}}
				}}
			}},
			"free": {"type": "object"},
			"choice": {"anyOf": [{"type": "null"}, {"type": "object", "properties": {"x": {"type": "number"}}}]}
		}
	}`)

	s := FlattenSchema(raw, DefaultMaxLevel, DefaultSeparator)

	assert.Equal(t, []string{
		"id",
		"key_2__key_3",
		"key_2__key_4__key_5",
		"key_2__key_4__key_6",
		"free",
		"choice__x",
	}, s.Names())
	assert.True(t, s.Required("id"))
	assert.False(t, s.Required("free"))

	node, ok := s.Node("key_2__key_4__key_6")
	require.True(t, ok)
	assert.True(t, HasType(node, "ARRAY"))
}

func TestFlattenSchemaEmptyPropertiesIsLeaf(t *testing.T) {
	s := FlattenSchema(mustDecode(t, `{
		"properties": {
			"id": {"type": "integer"},
			"meta": {"type": "object", "properties": {}},
			"obj": {"type": "object", "properties": {"a": {"type": "string"}}},
			"alt": {"anyOf": [{"type": "null"}, {"type": "object", "properties": {}}]}
		}
	}`), DefaultMaxLevel, DefaultSeparator)

	assert.Equal(t, []string{"id", "meta", "obj__a", "alt"}, s.Names())

	row := FlattenRecord(mustDecode(t, `{"id":1,"meta":{"x":1},"obj":{"a":"b"}}`), s, DefaultMaxLevel, DefaultSeparator)
	assert.Equal(t, map[string]interface{}{
		"id":     "1",
		"meta":   "{'x':1}",
		"obj__a": "b",
	}, rowText(row))
}

func TestFlattenSchemaMaxLevel(t *testing.T) {
	raw := mustDecode(t, `{"properties":{"a":{"type":"object","properties":{"b":{"type":"object","properties":{"c":{"type":"string"}}}}}}}`)

	assert.Equal(t, []string{"a"}, FlattenSchema(raw, 0, DefaultSeparator).Names())
	assert.Equal(t, []string{"a__b"}, FlattenSchema(raw, 1, DefaultSeparator).Names())
	assert.Equal(t, []string{"a-b-c"}, FlattenSchema(raw, 2, "-").Names())
}

func TestSchemaSetKeepsPosition(t *testing.T) {
	s := NewSchema()
	s.Set("a", json.String("first"))
	s.Set("b", json.Null())
	s.Set("a", json.String("second"))

	assert.Equal(t, []string{"a", "b"}, s.Names())
	node, _ := s.Node("a")
	assert.Equal(t, "second", node.Text())

	o := NewSchema()
	o.Set("a", json.String("second"))
	o.Set("b", json.Null())
	assert.True(t, s.Equal(o))
	o.Set("z", json.Null())
	assert.False(t, s.Equal(o))
	assert.Equal(t, 2, s.Len())
}

func TestTypes(t *testing.T) {
	tests := []struct {
		name string
		node string
		want []string
	}{
		{name: "string", node: `{"type":"string"}`, want: []string{"string"}},
		{name: "list", node: `{"type":["null","integer"]}`, want: []string{"null", "integer"}},
		{name: "anyOf", node: `{"anyOf":[{"type":"integer"},{"type":["string","null"]}]}`, want: []string{"integer", "string", "null"}},
		{name: "empty type falls back", node: `{"type":[],"anyOf":[{"type":"boolean"}]}`, want: []string{"boolean"}},
		{name: "none", node: `{}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Types(mustDecode(t, tt.node)))
		})
	}
}

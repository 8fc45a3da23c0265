package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Int(1)}
	var _ Value = Dict{"key": String("value")}
}

func TestDictSortedKeysUTF16Order(t *testing.T) {
	d := Dict{"a": Int(1), "A": Int(2), "aa": Int(3), "aA": Int(4), "Aa": Int(5), "AA": Int(6)}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, d.SortedKeys())
}

func TestCloneIsDeep(t *testing.T) {
	orig := Dict{
		"children": List{String("lb:lib:html:a")},
		"meta":     Dict{"n": Int(1)},
	}

	cp := orig.Clone()
	cp["children"] = append(cp["children"].(List), String("lb:lib:html:b"))
	cp["meta"].(Dict)["n"] = Int(2)

	assert.Len(t, orig["children"], 1)
	assert.Equal(t, Int(1), orig["meta"].(Dict)["n"])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String("x"), String("x")))
	assert.False(t, Equal(String("1"), Int(1)))
	assert.True(t, Equal(List{Int(1), Dict{"a": Bool(true)}}, List{Int(1), Dict{"a": Bool(true)}}))
	assert.False(t, Equal(List{Int(1)}, List{Int(1), Int(2)}))
	assert.False(t, Equal(Dict{"a": Int(1)}, Dict{"b": Int(1)}))
	assert.False(t, Equal(List{}, String("")))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"title":"X","weight":3,"tags":["a",true,null]}`))
	require.NoError(t, err)

	want := Dict{
		"title":  String("X"),
		"weight": Int(3),
		"tags":   List{String("a"), Bool(true), Null{}},
	}
	assert.True(t, Equal(want, v), "got %#v", v)
}

func TestUnmarshalValueRejectsFloats(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"weight":1.5}`))
	require.Error(t, err)
}

func TestDictJSONRoundTrip(t *testing.T) {
	d := Dict{"b": Int(2), "a": List{String("x")}}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"b":2}`, string(data))

	var back Dict
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(d, back))
}

func TestFromAnyYAMLShapes(t *testing.T) {
	v, err := FromAny(map[string]any{"count": 3, "on": false, "names": []any{"a"}})
	require.NoError(t, err)
	assert.True(t, Equal(Dict{"count": Int(3), "on": Bool(false), "names": List{String("a")}}, v))

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

package blocktype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

func TestParseFields(t *testing.T) {
	r := MustBuiltin()
	problem, _ := r.Lookup("problem")

	n, err := olx.ParseDefinition([]byte(`<problem display_name="Q1" max_attempts="3" attempts="9" extra="x"><![CDATA[<p>2+2?</p>]]></problem>`))
	require.NoError(t, err)

	fields, err := problem.ParseFields(n)
	require.NoError(t, err)
	assert.Equal(t, ir.Dict{
		"display_name": ir.String("Q1"),
		"max_attempts": ir.Int(3),
		"data":         ir.String("<p>2+2?</p>"),
	}, fields, "user-scoped and unknown attributes are ignored")
}

func TestParseFields_WrongRoot(t *testing.T) {
	html, _ := MustBuiltin().Lookup("html")
	n, err := olx.ParseDefinition([]byte(`<video/>`))
	require.NoError(t, err)

	_, err = html.ParseFields(n)
	assert.Error(t, err)
}

func TestParseFields_BadAttribute(t *testing.T) {
	video, _ := MustBuiltin().Lookup("video")
	n, err := olx.ParseDefinition([]byte(`<video start_time="soon"/>`))
	require.NoError(t, err)

	_, err = video.ParseFields(n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_time")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ     string
		raw     string
		want    ir.Value
		wantErr bool
	}{
		{TypeString, "hi", ir.String("hi"), false},
		{TypeInt, "-4", ir.Int(-4), false},
		{TypeInt, "4.5", nil, true},
		{TypeBool, "true", ir.Bool(true), false},
		{TypeBool, "maybe", nil, true},
		{TypeList, `["a",1]`, ir.List{ir.String("a"), ir.Int(1)}, false},
		{TypeList, `{"a":1}`, nil, true},
		{TypeDict, `{"en":"en.srt"}`, ir.Dict{"en": ir.String("en.srt")}, false},
		{"float", "1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.raw, func(t *testing.T) {
			got, err := ParseValue(tt.typ, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckValue(t *testing.T) {
	f := Field{Name: "weight", Type: TypeInt}
	assert.NoError(t, f.CheckValue(ir.Int(2)))
	assert.NoError(t, f.CheckValue(ir.Null{}))
	assert.Error(t, f.CheckValue(ir.String("2")))
}

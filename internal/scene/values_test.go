package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	identity := []any{
		[]any{1.0, 0.0, 0.0, 0.0},
		[]any{0.0, 1.0, 0.0, 0.0},
		[]any{0.0, 0.0, 1.0, 0.0},
		[]any{0.0, 0.0, 0.0, 1.0},
	}
	tests := []struct {
		name     string
		value    any
		typeName string
		want     any
		wantErr  bool
	}{
		{"bool", true, "bool", true, false},
		{"bool from string", "true", "bool", true, false},
		{"int from float", 2.0, "int", int64(2), false},
		{"int from string", " 7 ", "int", int64(7), false},
		{"int rejects fraction", 2.5, "int", nil, true},
		{"float from int", int64(3), "float", 3.0, false},
		{"double from string", "1.25", "double", 1.25, false},
		{"token", "render", "token", "render", false},
		{"token from number", 4.0, "token", "4", false},
		{"asset", "./sphere_geo.usda", "asset", "./sphere_geo.usda", false},
		{"color3f", []any{0.5, 0.25, 1.0}, "color3f", []float64{0.5, 0.25, 1.0}, false},
		{"color3f from ints", []any{int64(1), int64(0), int64(0)}, "color3f", []float64{1, 0, 0}, false},
		{"color3f wrong arity", []any{1.0, 2.0}, "color3f", nil, true},
		{"float array", []any{int64(1), 2.5}, "float[]", []any{1.0, 2.5}, false},
		{
			"texCoord2f array",
			[]any{[]any{int64(0), int64(0)}, []any{int64(1), int64(0)}},
			"texCoord2f[]",
			[]any{[]float64{0, 0}, []float64{1, 0}},
			false,
		},
		{"matrix4d", identity, "matrix4d", [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}, false},
		{"matrix4d wrong rows", []any{[]any{1.0}}, "matrix4d", nil, true},
		{"unknown type", 1.0, "half", nil, true},
		{"not a list", "x", "float[]", nil, true},
		{"bad element", []any{"x"}, "float[]", nil, true},
		{"bool from number", 1.0, "bool", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.typeName)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMutationRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownTypeName(t *testing.T) {
	for _, name := range []string{"bool", "token", "double", "color3f", "texCoord2f[]", "matrix4d", "float[]"} {
		assert.True(t, KnownTypeName(name), name)
	}
	for _, name := range []string{"", "half", "rel", "color3f[][]"} {
		assert.False(t, KnownTypeName(name), name)
	}
}

func TestVocabularies(t *testing.T) {
	assert.True(t, ValidKind(""), "clearing kind is always allowed")
	assert.True(t, ValidKind("component"))
	assert.False(t, ValidKind("widget"))

	assert.True(t, ValidPurpose("default"))
	assert.True(t, ValidPurpose("proxy"))
	assert.False(t, ValidPurpose(""))

	assert.True(t, ValidInterpolation("faceVarying"))
	assert.False(t, ValidInterpolation("facevarying"), "vocabulary is case sensitive")

	assert.True(t, Imageable("Mesh"))
	assert.True(t, Imageable("Scope"))
	assert.False(t, Imageable(""))
	assert.False(t, Imageable("Shader"))
}

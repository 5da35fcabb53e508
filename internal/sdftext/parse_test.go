package sdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStage = `#usda 1.0

def Xform "world" (
    kind = "group"
) {
    custom double height = 2.0
    double height.timeSamples = {
        1.0: 1.0,
        24.0: 3.5,
    }
    def Scope "geo" {
        def Mesh "sphere" (
            kind = "component"
            payload = @./sphere_geo.usda@
            variants = { shading = "matte" }
        ) {
            token purpose = "render"
            color3f tint = (0.5, 0.25, 1.0)
            float[] weights = [1.0, 2.0, 3.0]
            texCoord2f[] primvars:st = [(0.0, 0.0), (1.0, 0.0)] ( interpolation = "faceVarying" )
            variantSet "shading" = { "matte", "glossy" }
            def Mesh "detail" {
            }
        }
    }
    class "prototypes" {
        def Mesh "proto_a" {
        }
    }
    def Xform "hidden" (
        active = false
    ) {
    }
}
`

func TestParse_PrimTree(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)
	require.Len(t, doc.Prims, 1)

	world := doc.Prims[0]
	assert.Equal(t, "def", world.Specifier)
	assert.Equal(t, "Xform", world.TypeName)
	assert.Equal(t, "world", world.Name)
	assert.Equal(t, "group", world.Kind)
	require.Len(t, world.Children, 3)

	geo := world.Child("geo")
	require.NotNil(t, geo)
	assert.Equal(t, "Scope", geo.TypeName)

	sphere := geo.Child("sphere")
	require.NotNil(t, sphere)
	assert.Equal(t, "component", sphere.Kind)
	assert.Equal(t, "./sphere_geo.usda", sphere.Payload)

	protos := world.Child("prototypes")
	require.NotNil(t, protos)
	assert.Equal(t, "class", protos.Specifier)
	assert.Empty(t, protos.TypeName, "class block without a schema type")

	hidden := world.Child("hidden")
	require.NotNil(t, hidden)
	require.NotNil(t, hidden.Active)
	assert.False(t, *hidden.Active)
	assert.False(t, hidden.IsActive())
	assert.True(t, sphere.IsActive(), "unauthored active defaults to true")
}

func TestParse_Attributes(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	world := doc.Prims[0]
	height := world.Attr("height")
	require.NotNil(t, height)
	assert.True(t, height.Custom)
	assert.Equal(t, "double", height.TypeName)
	assert.True(t, height.HasValue)
	assert.Equal(t, 2.0, height.Value)
	require.Len(t, height.Samples, 2, "timeSamples statement merges into the declared attribute")
	assert.Equal(t, 1.0, height.Samples[0].Time)
	assert.Equal(t, 3.5, height.Samples[1].Value)

	sphere := doc.Find("/world/geo/sphere")
	require.NotNil(t, sphere)

	tint := sphere.Attr("tint")
	require.NotNil(t, tint)
	assert.Equal(t, []any{0.5, 0.25, 1.0}, tint.Value, "tuple literals decode as slices")

	weights := sphere.Attr("weights")
	require.NotNil(t, weights)
	assert.Equal(t, "float[]", weights.TypeName)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, weights.Value)

	st := sphere.Attr("primvars:st")
	require.NotNil(t, st)
	assert.Equal(t, "texCoord2f[]", st.TypeName)
	assert.Equal(t, "faceVarying", st.Meta["interpolation"])
	assert.Equal(t, []any{[]any{0.0, 0.0}, []any{1.0, 0.0}}, st.Value)

	purpose := sphere.Attr("purpose")
	require.NotNil(t, purpose)
	assert.Equal(t, "render", purpose.Value)
}

func TestParse_VariantData(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	sphere := doc.Find("/world/geo/sphere")
	require.NotNil(t, sphere)
	assert.Equal(t, map[string]string{"shading": "matte"}, sphere.Variants)
	require.Len(t, sphere.VariantSets, 1)
	assert.Equal(t, "shading", sphere.VariantSets[0].Name)
	assert.Equal(t, []string{"matte", "glossy"}, sphere.VariantSets[0].Variants)
}

func TestParse_Origin(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	sphere := doc.Find("/world/geo/sphere")
	require.NotNil(t, sphere)
	block := sampleStage[sphere.Origin.Start:sphere.Origin.End]
	assert.True(t, len(block) > 0)
	assert.Contains(t, block, `def Mesh "sphere"`)
	assert.Equal(t, byte('}'), block[len(block)-1])
	assert.Contains(t, block, `def Mesh "detail"`, "origin spans the whole subtree")
	assert.NotContains(t, block, "prototypes", "origin stops at the closing brace")
}

func TestParse_Find(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	assert.NotNil(t, doc.Find("/world"))
	assert.NotNil(t, doc.Find("/world/geo/sphere/detail"))
	assert.Nil(t, doc.Find("/world/nope"))
	assert.Nil(t, doc.Find("/"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "bad specifier",
			src:  `definitely Xform "world" {}`,
			want: "expected def, over or class",
		},
		{
			name: "unterminated body",
			src:  `def Xform "world" {`,
			want: "unterminated body",
		},
		{
			name: "invalid prim name",
			src:  `def Xform "9lives" {}`,
			want: "invalid prim name",
		},
		{
			name: "unterminated string",
			src:  "def Xform \"world {\n}",
			want: "unterminated string",
		},
		{
			name: "bad attribute suffix",
			src:  `def Xform "world" { double height.samples = { 1: 2 } }`,
			want: "unsupported attribute suffix",
		},
		{
			name: "bad time code",
			src:  `def Xform "world" { double h.timeSamples = { abc: 2 } }`,
			want: "bad time code",
		},
		{
			name: "unterminated metadata",
			src:  `def Xform "world" ( kind = "group"`,
			want: "unterminated metadata",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "line ", "errors carry a line number")
		})
	}
}

func TestParse_ErrorLineNumbers(t *testing.T) {
	src := "#usda 1.0\n\ndef Xform \"world\" {\n    bogus@\n}\n"
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"1.5", 1.5},
		{"7", int64(7)},
		{"true", true},
		{`"hello world"`, "hello world"},
		{"matte", "matte"},
		{"(1.0, 2.0, 3.0)", []any{1.0, 2.0, 3.0}},
		{"[1, 2, 3]", []any{int64(1), int64(2), int64(3)}},
		{"@./asset.usda@", "./asset.usda"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseValue("   ")
	assert.Error(t, err)
}

func TestParse_EmptyDocument(t *testing.T) {
	doc, err := Parse("#usda 1.0\n")
	require.NoError(t, err)
	assert.Empty(t, doc.Prims)
}

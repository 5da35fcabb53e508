package sdftext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_RoundTripStable(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	first := Format(doc)
	doc2, err := Parse(first)
	require.NoError(t, err, "formatted output must parse:\n%s", first)
	second := Format(doc2)
	assert.Equal(t, first, second, "format must be a fixed point after one round trip")

	// Spot-check that nothing was lost in the trip.
	sphere := doc2.Find("/world/geo/sphere")
	require.NotNil(t, sphere)
	assert.Equal(t, "component", sphere.Kind)
	assert.Equal(t, "./sphere_geo.usda", sphere.Payload)
	assert.Equal(t, "matte", sphere.Variants["shading"])
	require.Len(t, sphere.VariantSets, 1)
	assert.Equal(t, []string{"matte", "glossy"}, sphere.VariantSets[0].Variants)

	height := doc2.Prims[0].Attr("height")
	require.NotNil(t, height)
	assert.True(t, height.Custom)
	assert.Equal(t, 2.0, height.Value, "integral floats keep their floatness")
	require.Len(t, height.Samples, 2)
}

func TestFormat_Header(t *testing.T) {
	doc := &Document{Prims: []*Prim{{Specifier: "def", TypeName: "Xform", Name: "root"}}}
	out := Format(doc)
	assert.True(t, strings.HasPrefix(out, Header+"\n"), "output starts with the header line")
	assert.Contains(t, out, `def Xform "root" {`)
}

func TestFormatPrim_Indentation(t *testing.T) {
	doc, err := Parse(sampleStage)
	require.NoError(t, err)

	sphere := doc.Find("/world/geo/sphere")
	require.NotNil(t, sphere)
	block := FormatPrim(sphere, 2)
	assert.True(t, strings.HasPrefix(block, `        def Mesh "sphere"`), "block indented to depth 2")
	assert.False(t, strings.HasSuffix(block, "\n"))
	assert.True(t, strings.HasSuffix(block, "}"))

	// A formatted block can stand in for the original in a document.
	reparsed, err := Parse(block)
	require.NoError(t, err)
	require.Len(t, reparsed.Prims, 1)
	assert.Equal(t, "sphere", reparsed.Prims[0].Name)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		v        any
		typeName string
		want     string
	}{
		{"integral float keeps point", 2.0, "double", "2.0"},
		{"plain float", 0.5, "float", "0.5"},
		{"int", int64(7), "int", "7"},
		{"bool", true, "bool", "true"},
		{"string quoted", "hello", "string", `"hello"`},
		{"asset delimited", "./a.usda", "asset", "@./a.usda@"},
		{"tuple for color", []any{0.5, 0.25, 1.0}, "color3f", "(0.5, 0.25, 1.0)"},
		{"tuple from float slice", []float64{1, 2, 3}, "point3f", "(1.0, 2.0, 3.0)"},
		{"array of floats", []any{1.0, 2.0}, "float[]", "[1.0, 2.0]"},
		{"array of tuples", []any{[]any{0.0, 0.0}, []any{1.0, 0.0}}, "texCoord2f[]", "[(0.0, 0.0), (1.0, 0.0)]"},
		{"untyped array", []any{int64(1), int64(2)}, "", "[1, 2]"},
		{
			"matrix rows",
			[][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
			"matrix4d",
			"( (1.0, 0.0, 0.0, 0.0), (0.0, 1.0, 0.0, 0.0), (0.0, 0.0, 1.0, 0.0), (0.0, 0.0, 0.0, 1.0) )",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.v, tt.typeName))
		})
	}
}

func TestFormat_UnauthoredAttributeDeclaration(t *testing.T) {
	src := "def Mesh \"m\" {\n    float size\n}\n"
	doc, err := Parse(src)
	require.NoError(t, err)
	size := doc.Prims[0].Attr("size")
	require.NotNil(t, size)
	assert.False(t, size.HasValue)

	out := Format(doc)
	assert.Contains(t, out, "float size\n", "declaration survives without a value")

	doc2, err := Parse(out)
	require.NoError(t, err)
	assert.False(t, doc2.Prims[0].Attr("size").HasValue)
}

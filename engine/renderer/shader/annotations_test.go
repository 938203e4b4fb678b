package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotationIgnoresPlainLines(t *testing.T) {
	a, err := parseAnnotation("let x = 1.0; // not an annotation", 3)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestParseAnnotationGroup(t *testing.T) {
	a, err := parseAnnotation("//@oxy:group 0 2 storage_uniform params prefilter_params", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeBindingGroup, a.Type)
	assert.Equal(t, 0, *a.Group)
	assert.Equal(t, 2, *a.Binding)
	assert.Equal(t, []AnnotationArg{"storage_uniform", "params", AnnotationArgPrefilterParams}, a.Args)
	assert.Equal(t, 7, a.Line)
}

func TestParseAnnotationSourceAndTarget(t *testing.T) {
	a, err := parseAnnotation("  //@oxy:source 1 4", 1)
	require.NoError(t, err)
	assert.Equal(t, AnnotationTypeSource, a.Type)
	assert.Equal(t, 1, *a.Group)
	assert.Equal(t, 4, *a.Binding)

	a, err = parseAnnotation("//@oxy:target", 2)
	require.NoError(t, err)
	assert.Equal(t, AnnotationTypeTarget, a.Type)
	assert.Nil(t, a.Group)
}

func TestParseAnnotationErrors(t *testing.T) {
	cases := map[string]string{
		"empty":           "//@oxy:",
		"unknown type":    "//@oxy:bogus 1",
		"unknown chunk":   "//@oxy:include nope",
		"include arity":   "//@oxy:include cube sampling",
		"bad group":       "//@oxy:group x 0 storage_uniform p prefilter_params",
		"negative":        "//@oxy:source -1 0",
		"address space":   "//@oxy:group 0 0 private p prefilter_params",
		"struct type":     "//@oxy:group 0 0 storage_uniform p camera",
		"unknown const":   "//@oxy:const exposure",
		"target with arg": "//@oxy:target color",
		"source arity":    "//@oxy:source 0",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := parseAnnotation(line, 9)
			assert.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), "line 9")
		})
	}
}

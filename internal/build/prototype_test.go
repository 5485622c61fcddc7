package build

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrototypes(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected []Prototype
	}{
		{
			name:   "formula",
			header: "double printformula(double a, double b, double c, double d);\n",
			expected: []Prototype{
				{Name: "printformula", Return: "double", Params: []string{"double", "double", "double", "double"}},
			},
		},
		{
			name:   "no parameters",
			header: "int run();\nint other(void);\n",
			expected: []Prototype{
				{Name: "run", Return: "int"},
				{Name: "other", Return: "int"},
			},
		},
		{
			name: "guards, qualifiers and sized types",
			header: `#ifndef MAIN_H
#define MAIN_H
#include <stdio.h>
typedef int number;
extern const int limit;
unsigned long count(const float x, unsigned int n);
void reset(void);
#endif
`,
			expected: []Prototype{
				{Name: "count", Return: "unsigned long", Params: []string{"float", "unsigned int"}},
				{Name: "reset", Return: "void"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			protos, err := ParsePrototypes(context.Background(), []byte(tt.header))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, protos)
		})
	}
}

func TestParsePrototypes_Rejects(t *testing.T) {
	for _, header := range []string{
		"char *name(void);\n",
		"int sum(int *values, int n);\n",
		"int broken(int a,;\n",
	} {
		_, err := ParsePrototypes(context.Background(), []byte(header))
		assert.Error(t, err, header)
	}
}

func TestPrototypeFuncType(t *testing.T) {
	typ, err := Prototype{Name: "f", Return: "double", Params: []string{"int", "float", "char"}}.FuncType()
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(func(int32, float32, int8) float64 { return 0 }), typ)

	typ, err = Prototype{Name: "g", Return: "void"}.FuncType()
	require.NoError(t, err)
	assert.Equal(t, 0, typ.NumOut())

	_, err = Prototype{Name: "h", Return: "struct point"}.FuncType()
	assert.Error(t, err)
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore/attr"
)

func TestConditionEvaluation(t *testing.T) {
	item := attr.Record{
		"pk":     attr.String("user#1"),
		"age":    attr.Int(42),
		"score":  attr.Number("7.50"),
		"tags":   attr.StringSet{"admin", "beta"},
		"name":   attr.String("Ada Lovelace"),
		"extras": attr.List{attr.String("x"), attr.Map{"depth": attr.Int(2)}},
		"nested": attr.Map{"inner": attr.Map{"flag": attr.Bool(true)}},
	}
	names := map[string]string{"#a": "age", "#n": "name", "#s": "status"}
	values := attr.Record{
		":age":    attr.Int(42),
		":low":    attr.Int(40),
		":high":   attr.Int(50),
		":score":  attr.Number("7.5"),
		":prefix": attr.String("Ada"),
		":tag":    attr.String("admin"),
		":one":    attr.String("x"),
		":two":    attr.String("y"),
		":len":    attr.Int(2),
		":t":      attr.String("SS"),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"#a = :age", true},
		{"#a <> :age", false},
		{"#a BETWEEN :low AND :high", true},
		{"#a > :high OR #a < :low", false},
		{"NOT (#a > :high)", true},
		{"score = :score", true},
		{"begins_with(#n, :prefix)", true},
		{"contains(tags, :tag)", true},
		{"contains(#n, :prefix)", true},
		{"attribute_exists(pk) AND attribute_not_exists(#s)", true},
		{"attribute_type(tags, :t)", true},
		{"extras[0] IN (:one, :two)", true},
		{"extras[1].depth = :len", true},
		{"nested.inner.flag = nested.inner.flag", true},
		{"size(tags) = :len", true},
		{"#s = :age", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := parseCondition(tt.expr, names, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.eval(&env{item: item}))
		})
	}
}

func TestConditionOnAbsentItem(t *testing.T) {
	c, err := parseCondition("attribute_not_exists(pk)", nil, nil)
	require.NoError(t, err)
	assert.True(t, c.eval(&env{}))
}

func TestConditionParseErrors(t *testing.T) {
	for _, expr := range []string{
		"#missing = :v",
		"pk = :missing",
		"pk = ",
		"pk = :v)",
		"unknown_fn(pk)",
		"pk BETWEEN :v",
		"pk $ :v",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := parseCondition(expr, nil, attr.Record{":v": attr.Int(1)})
			assert.Error(t, err)
		})
	}
}

func TestProjectionPaths(t *testing.T) {
	paths, err := parseProjection("pk, #d.inner, list[2]", map[string]string{"#d": "doc"})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, "pk", paths[0].top())
	assert.Equal(t, "doc", paths[1].top())
	assert.Equal(t, "list", paths[2].top())

	_, err = parseProjection("pk,", nil)
	assert.Error(t, err)
}

func TestCompareScalars(t *testing.T) {
	cmp, ok := compareScalars(attr.Number("10"), attr.Number("9.99"))
	require.True(t, ok)
	assert.Equal(t, 1, cmp)

	cmp, ok = compareScalars(attr.Binary{0x01}, attr.Binary{0x01, 0x00})
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	_, ok = compareScalars(attr.String("1"), attr.Number("1"))
	assert.False(t, ok)

	assert.True(t, valuesEqual(attr.Number("1.0"), attr.Number("1")))
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/errors"
)

func TestCursorToken(t *testing.T) {
	cursor := attr.Record{"id": attr.String("page#1"), "version": attr.Int(3)}

	token, err := EncodeCursor(cursor)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotContains(t, token, "=")

	back, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, cursor, back)
}

func TestCursorTokenEmpty(t *testing.T) {
	token, err := EncodeCursor(nil)
	require.NoError(t, err)
	assert.Empty(t, token)

	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestCursorTokenInvalid(t *testing.T) {
	for _, token := range []string{"!!!", "bm90LWpzb24"} {
		_, err := DecodeCursor(token)
		assert.True(t, errors.IsValidationError(err), "token %q: %v", token, err)
	}
}

func TestFromExpression(t *testing.T) {
	cond := expression.AttributeNotExists(expression.Name("id")).
		Or(expression.Name("revision").Equal(expression.Value(4)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	require.NoError(t, err)

	params, err := FromExpression(expr)
	require.NoError(t, err)
	assert.NotEmpty(t, params.Condition)
	assert.Len(t, params.Names, 2)
	require.Len(t, params.Values, 1)
	for _, v := range params.Values {
		assert.Equal(t, attr.Number("4"), v)
	}

	opts := params.PutOptions()
	assert.Equal(t, params.Condition, opts.ConditionExpression)
	assert.Equal(t, params.Values, opts.ExpressionAttributeValues)
}

func TestPageHasMore(t *testing.T) {
	p := &Page{}
	assert.False(t, p.HasMore())
	p.Cursor = attr.Record{"id": attr.String("x")}
	assert.True(t, p.HasMore())
}

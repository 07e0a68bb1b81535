/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/suparena/recordstore/attr"
)

// ExpressionParams holds the strings, names and values of a built expression.
type ExpressionParams struct {
	Condition    string
	KeyCondition string
	Filter       string
	Projection   string
	Names        map[string]string
	Values       attr.Record
}

// FromExpression flattens an expression built with the expression package into
// the string and placeholder fields the option structs take.
func FromExpression(expr expression.Expression) (ExpressionParams, error) {
	values, err := attr.Decode(expr.Values())
	if err != nil {
		return ExpressionParams{}, err
	}
	return ExpressionParams{
		Condition:    deref(expr.Condition()),
		KeyCondition: deref(expr.KeyCondition()),
		Filter:       deref(expr.Filter()),
		Projection:   deref(expr.Projection()),
		Names:        expr.Names(),
		Values:       values,
	}, nil
}

// PutOptions returns put options enforcing the expression's condition.
func (p ExpressionParams) PutOptions() *PutOptions {
	return &PutOptions{
		ConditionExpression:       p.Condition,
		ExpressionAttributeNames:  p.Names,
		ExpressionAttributeValues: p.Values,
	}
}

// DeleteOptions returns delete options enforcing the expression's condition.
func (p ExpressionParams) DeleteOptions() *DeleteOptions {
	return &DeleteOptions{
		ConditionExpression:       p.Condition,
		ExpressionAttributeNames:  p.Names,
		ExpressionAttributeValues: p.Values,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

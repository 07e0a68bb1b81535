/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/storagemodels"
)

// PutItem writes item, replacing any item with the same key. A failed condition
// returns a ConditionalCheckFailedError.
func (c *Client) PutItem(ctx context.Context, table string, item attr.Record, opts *storagemodels.PutOptions) (res *storagemodels.PutResult, err error) {
	defer func(start time.Time) { err = c.finish("PutItem", table, start, err) }(time.Now())

	in, err := buildPutItemInput(table, item, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.PutItem(ctx, in)
	if err != nil {
		return nil, translate(itemOp, table, condition(opts), err)
	}

	old, err := decodeOptional(out.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode old item: %w", err)
	}
	return &storagemodels.PutResult{
		OldItem:               old,
		ConsumedCapacity:      out.ConsumedCapacity,
		ItemCollectionMetrics: out.ItemCollectionMetrics,
	}, nil
}

// DeleteItem removes the item with key. Without a condition, deleting an
// absent item succeeds.
func (c *Client) DeleteItem(ctx context.Context, table string, key attr.Record, opts *storagemodels.DeleteOptions) (res *storagemodels.DeleteResult, err error) {
	defer func(start time.Time) { err = c.finish("DeleteItem", table, start, err) }(time.Now())

	in, err := buildDeleteItemInput(table, key, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.DeleteItem(ctx, in)
	if err != nil {
		var cond string
		if opts != nil {
			cond = opts.ConditionExpression
		}
		return nil, translate(itemOp, table, cond, err)
	}

	old, err := decodeOptional(out.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode old item: %w", err)
	}
	return &storagemodels.DeleteResult{
		OldItem:               old,
		ConsumedCapacity:      out.ConsumedCapacity,
		ItemCollectionMetrics: out.ItemCollectionMetrics,
	}, nil
}

// GetItem reads the item with key. A missing item is not an error: the result
// has Found set to false.
func (c *Client) GetItem(ctx context.Context, table string, key attr.Record, opts *storagemodels.GetOptions) (res *storagemodels.GetResult, err error) {
	defer func(start time.Time) { err = c.finish("GetItem", table, start, err) }(time.Now())

	in, err := buildGetItemInput(table, key, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.GetItem(ctx, in)
	if err != nil {
		return nil, translate(itemOp, table, "", err)
	}

	res = &storagemodels.GetResult{ConsumedCapacity: out.ConsumedCapacity}
	if out.Item == nil {
		return res, nil
	}
	if res.Item, err = attr.Decode(out.Item); err != nil {
		return nil, err
	}
	res.Found = true
	return res, nil
}

func condition(opts *storagemodels.PutOptions) string {
	if opts == nil {
		return ""
	}
	return opts.ConditionExpression
}

func decodeOptional(item map[string]types.AttributeValue) (attr.Record, error) {
	if len(item) == 0 {
		return nil, nil
	}
	return attr.Decode(item)
}

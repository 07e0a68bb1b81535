/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/storagemodels"
)

// QueryTable reads one page of items matching the key condition. Items come back
// in sort key order, descending when ScanIndexForward is false. Page.Cursor is
// nil once the result set is exhausted.
func (c *Client) QueryTable(ctx context.Context, table string, opts *storagemodels.QueryOptions) (page *storagemodels.Page, err error) {
	defer func(start time.Time) { err = c.finish("QueryTable", table, start, err) }(time.Now())

	in, err := buildQueryInput(table, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, translate(itemOp, table, "", err)
	}
	return newPage(out.Items, out.LastEvaluatedKey, out.Count, out.ScannedCount, out.ConsumedCapacity)
}

// ScanTable reads one page of the table, or of one segment when TotalSegments is set.
func (c *Client) ScanTable(ctx context.Context, table string, opts *storagemodels.ScanOptions) (page *storagemodels.Page, err error) {
	defer func(start time.Time) { err = c.finish("ScanTable", table, start, err) }(time.Now())

	in, err := buildScanInput(table, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.Scan(ctx, in)
	if err != nil {
		return nil, translate(itemOp, table, "", err)
	}
	return newPage(out.Items, out.LastEvaluatedKey, out.Count, out.ScannedCount, out.ConsumedCapacity)
}

// QueryAll follows cursors until the query is exhausted and returns every item.
// Limit, when set, is the page size.
func (c *Client) QueryAll(ctx context.Context, table string, opts *storagemodels.QueryOptions) (items []attr.Record, err error) {
	defer func(start time.Time) { err = c.finish("QueryAll", table, start, err) }(time.Now())

	in, err := buildQueryInput(table, opts)
	if err != nil {
		return nil, err
	}
	items = []attr.Record{}
	paginator := dynamodb.NewQueryPaginator(c.api, in)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(itemOp, table, "", err)
		}
		decoded, err := attr.DecodeAll(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)
	}
	return items, nil
}

// ScanAll follows cursors until the scan (or its segment) is exhausted.
func (c *Client) ScanAll(ctx context.Context, table string, opts *storagemodels.ScanOptions) (items []attr.Record, err error) {
	defer func(start time.Time) { err = c.finish("ScanAll", table, start, err) }(time.Now())

	in, err := buildScanInput(table, opts)
	if err != nil {
		return nil, err
	}
	items = []attr.Record{}
	paginator := dynamodb.NewScanPaginator(c.api, in)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(itemOp, table, "", err)
		}
		decoded, err := attr.DecodeAll(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)
	}
	return items, nil
}

func newPage(items []map[string]types.AttributeValue, last map[string]types.AttributeValue, count, scanned int32, cc *types.ConsumedCapacity) (*storagemodels.Page, error) {
	decoded, err := attr.DecodeAll(items)
	if err != nil {
		return nil, err
	}
	cursor, err := decodeOptional(last)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return &storagemodels.Page{
		Items:            decoded,
		Cursor:           cursor,
		Count:            count,
		ScannedCount:     scanned,
		ConsumedCapacity: cc,
	}, nil
}

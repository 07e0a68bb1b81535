/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/suparena/recordstore/attr"
)

// TimeWindowIterator walks a partition in consecutive time windows of an
// RFC3339 sort key. Windows are half-open at one second resolution.
type TimeWindowIterator struct {
	client        *Client
	table         string
	partitionName string
	partition     attr.Value
	sortKey       string
	windowSize    time.Duration
	end           time.Time
	current       time.Time
}

// QueryTimeWindows creates an iterator over [start, end) in steps of windowSize.
func (c *Client) QueryTimeWindows(table, partitionName string, partition attr.Value, sortKey string, start, end time.Time, windowSize time.Duration) *TimeWindowIterator {
	return &TimeWindowIterator{
		client:        c,
		table:         table,
		partitionName: partitionName,
		partition:     partition,
		sortKey:       sortKey,
		windowSize:    windowSize,
		end:           end,
		current:       start,
	}
}

// Next returns the items of the next window and whether more windows follow.
func (it *TimeWindowIterator) Next(ctx context.Context) ([]attr.Record, bool, error) {
	if it.windowSize <= 0 || !it.current.Before(it.end) {
		return nil, false, nil
	}

	windowEnd := it.current.Add(it.windowSize)
	if windowEnd.After(it.end) {
		windowEnd = it.end
	}

	items, err := it.client.NewQuery(it.table).
		WithPartitionKey(it.partitionName, it.partition).
		WithSortKeyBetween(it.sortKey, timeValue(it.current), timeValue(windowEnd.Add(-time.Second))).
		All(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query time window: %w", err)
	}

	it.current = windowEnd
	return items, it.current.Before(it.end), nil
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// QueryBuilder provides a fluent interface for building key queries. Names and
// values are substituted through placeholders, so attribute names that collide
// with reserved words need no special handling.
type QueryBuilder struct {
	client *Client
	table  string
	index  string

	partitionName  string
	partitionValue attr.Value
	sortName       string
	sortCond       func(expression.KeyBuilder) expression.KeyConditionBuilder

	filters    []expression.ConditionBuilder
	projection []string

	limit      int32
	forward    *bool
	consistent bool
	startKey   attr.Record
	now        func() time.Time
}

// NewQuery starts a query against table.
func (c *Client) NewQuery(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, now: time.Now}
}

// OnIndex targets a secondary index instead of the table.
func (q *QueryBuilder) OnIndex(name string) *QueryBuilder {
	q.index = name
	return q
}

// WithPartitionKey sets the required partition key equality.
func (q *QueryBuilder) WithPartitionKey(name string, value attr.Value) *QueryBuilder {
	q.partitionName = name
	q.partitionValue = value
	return q
}

// WithSortKey matches the sort key exactly.
func (q *QueryBuilder) WithSortKey(name string, value attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.Equal(wireValue(value))
	})
}

// WithSortKeyPrefix matches sort keys starting with prefix.
func (q *QueryBuilder) WithSortKeyPrefix(name, prefix string) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.BeginsWith(prefix)
	})
}

// WithSortKeyGreaterThan matches sort keys strictly after value.
func (q *QueryBuilder) WithSortKeyGreaterThan(name string, value attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.GreaterThan(wireValue(value))
	})
}

// WithSortKeyAtLeast matches sort keys at or after value.
func (q *QueryBuilder) WithSortKeyAtLeast(name string, value attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.GreaterThanEqual(wireValue(value))
	})
}

// WithSortKeyLessThan matches sort keys strictly before value.
func (q *QueryBuilder) WithSortKeyLessThan(name string, value attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.LessThan(wireValue(value))
	})
}

// WithSortKeyAtMost matches sort keys at or before value.
func (q *QueryBuilder) WithSortKeyAtMost(name string, value attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.LessThanEqual(wireValue(value))
	})
}

// WithSortKeyBetween matches sort keys in [start, end].
func (q *QueryBuilder) WithSortKeyBetween(name string, start, end attr.Value) *QueryBuilder {
	return q.sortKey(name, func(k expression.KeyBuilder) expression.KeyConditionBuilder {
		return k.Between(wireValue(start), wireValue(end))
	})
}

func (q *QueryBuilder) sortKey(name string, cond func(expression.KeyBuilder) expression.KeyConditionBuilder) *QueryBuilder {
	q.sortName = name
	q.sortCond = cond
	return q
}

// Where adds a filter condition. Conditions are combined with AND.
func (q *QueryBuilder) Where(cond expression.ConditionBuilder) *QueryBuilder {
	q.filters = append(q.filters, cond)
	return q
}

// WhereEquals filters on an attribute's value.
func (q *QueryBuilder) WhereEquals(name string, value attr.Value) *QueryBuilder {
	return q.Where(expression.Name(name).Equal(wireValue(value)))
}

// WhereExists keeps items that carry name.
func (q *QueryBuilder) WhereExists(name string) *QueryBuilder {
	return q.Where(expression.AttributeExists(expression.Name(name)))
}

// Select limits the returned attributes.
func (q *QueryBuilder) Select(names ...string) *QueryBuilder {
	q.projection = append(q.projection, names...)
	return q
}

// WithLimit sets the page size.
func (q *QueryBuilder) WithLimit(limit int32) *QueryBuilder {
	q.limit = limit
	return q
}

// Descending returns items in reverse sort key order.
func (q *QueryBuilder) Descending() *QueryBuilder {
	q.forward = aws.Bool(false)
	return q
}

// Ascending returns items in sort key order. This is the default.
func (q *QueryBuilder) Ascending() *QueryBuilder {
	q.forward = aws.Bool(true)
	return q
}

// Latest is Descending for time-ordered sort keys.
func (q *QueryBuilder) Latest() *QueryBuilder { return q.Descending() }

// Oldest is Ascending for time-ordered sort keys.
func (q *QueryBuilder) Oldest() *QueryBuilder { return q.Ascending() }

// Consistent requests a strongly consistent read.
func (q *QueryBuilder) Consistent() *QueryBuilder {
	q.consistent = true
	return q
}

// StartAfter resumes from a previous page's cursor.
func (q *QueryBuilder) StartAfter(cursor attr.Record) *QueryBuilder {
	q.startKey = cursor
	return q
}

// Build constructs the query options.
func (q *QueryBuilder) Build() (*storagemodels.QueryOptions, error) {
	if q.partitionName == "" || q.partitionValue == nil {
		return nil, errors.NewValidationError("KeyConditionExpression", "partition key value is required")
	}

	keyCond := expression.Key(q.partitionName).Equal(wireValue(q.partitionValue))
	if q.sortCond != nil {
		keyCond = keyCond.And(q.sortCond(expression.Key(q.sortName)))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	if len(q.filters) > 0 {
		filter := q.filters[0]
		for _, f := range q.filters[1:] {
			filter = filter.And(f)
		}
		builder = builder.WithFilter(filter)
	}
	if len(q.projection) > 0 {
		proj := expression.NamesList(expression.Name(q.projection[0]))
		for _, name := range q.projection[1:] {
			proj = proj.AddNames(expression.Name(name))
		}
		builder = builder.WithProjection(proj)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}
	params, err := storagemodels.FromExpression(expr)
	if err != nil {
		return nil, err
	}

	return &storagemodels.QueryOptions{
		IndexName:                 q.index,
		KeyConditionExpression:    params.KeyCondition,
		FilterExpression:          params.Filter,
		ProjectionExpression:      params.Projection,
		ExpressionAttributeNames:  params.Names,
		ExpressionAttributeValues: params.Values,
		Limit:                     q.limit,
		ConsistentRead:            q.consistent,
		ScanIndexForward:          q.forward,
		ExclusiveStartKey:         q.startKey,
	}, nil
}

// Execute runs the query and returns one page.
func (q *QueryBuilder) Execute(ctx context.Context) (*storagemodels.Page, error) {
	opts, err := q.Build()
	if err != nil {
		return nil, errors.Wrap("QueryTable", q.table, err)
	}
	return q.client.QueryTable(ctx, q.table, opts)
}

// All runs the query to exhaustion.
func (q *QueryBuilder) All(ctx context.Context) ([]attr.Record, error) {
	opts, err := q.Build()
	if err != nil {
		return nil, errors.Wrap("QueryAll", q.table, err)
	}
	return q.client.QueryAll(ctx, q.table, opts)
}

// Stream runs the query as a stream.
func (q *QueryBuilder) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult {
	query, err := q.Build()
	if err != nil {
		ch := make(chan storagemodels.StreamResult, 1)
		ch <- storagemodels.StreamResult{Error: errors.Wrap("Stream", q.table, err)}
		close(ch)
		return ch
	}
	return q.client.Stream(ctx, q.table, query, opts...)
}

// Time range helpers for sort keys holding RFC3339 timestamps.

// InLast matches sort keys within the trailing window d.
func (q *QueryBuilder) InLast(sortKey string, d time.Duration) *QueryBuilder {
	return q.After(sortKey, q.now().Add(-d))
}

// InLastDays matches sort keys within the last n days.
func (q *QueryBuilder) InLastDays(sortKey string, days int) *QueryBuilder {
	return q.After(sortKey, q.now().AddDate(0, 0, -days))
}

// After matches sort keys after t.
func (q *QueryBuilder) After(sortKey string, t time.Time) *QueryBuilder {
	return q.WithSortKeyGreaterThan(sortKey, timeValue(t))
}

// Before matches sort keys before t.
func (q *QueryBuilder) Before(sortKey string, t time.Time) *QueryBuilder {
	return q.WithSortKeyLessThan(sortKey, timeValue(t))
}

// Between matches sort keys in [start, end].
func (q *QueryBuilder) Between(sortKey string, start, end time.Time) *QueryBuilder {
	return q.WithSortKeyBetween(sortKey, timeValue(start), timeValue(end))
}

// Today matches sort keys from the start of the current day.
func (q *QueryBuilder) Today(sortKey string) *QueryBuilder {
	now := q.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return q.Between(sortKey, start, start.Add(24*time.Hour))
}

// ThisWeek matches sort keys from Monday of the current week.
func (q *QueryBuilder) ThisWeek(sortKey string) *QueryBuilder {
	now := q.now()
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := now.AddDate(0, 0, 1-weekday)
	return q.After(sortKey, time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location()))
}

// ThisMonth matches sort keys from the first of the current month.
func (q *QueryBuilder) ThisMonth(sortKey string) *QueryBuilder {
	now := q.now()
	return q.After(sortKey, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
}

func timeValue(t time.Time) attr.Value {
	return attr.String(t.UTC().Format(time.RFC3339))
}

// wireMarshaler lets the expression package carry an attr.Value unchanged.
type wireMarshaler struct {
	value attr.Value
}

func (m wireMarshaler) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return attr.EncodeValue(m.value)
}

func wireValue(v attr.Value) expression.ValueBuilder {
	return expression.Value(wireMarshaler{value: v})
}

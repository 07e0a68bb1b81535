/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/datastore/mock"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

func valueSet(r attr.Record) []attr.Value {
	out := make([]attr.Value, 0, len(r))
	for _, v := range r {
		out = append(out, v)
	}
	return out
}

func nameSet(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func TestQueryBuilderBuild(t *testing.T) {
	c := New(nil)
	opts, err := c.NewQuery("orders").
		OnIndex("by-status").
		WithPartitionKey("status", attr.String("open")).
		WithSortKeyPrefix("created", "2025-").
		WhereEquals("region", attr.String("eu")).
		WhereExists("total").
		Select("pk", "total").
		WithLimit(25).
		Descending().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "by-status", opts.IndexName)
	assert.NotEmpty(t, opts.KeyConditionExpression)
	assert.NotEmpty(t, opts.FilterExpression)
	assert.NotEmpty(t, opts.ProjectionExpression)
	assert.Equal(t, int32(25), opts.Limit)
	require.NotNil(t, opts.ScanIndexForward)
	assert.False(t, *opts.ScanIndexForward)
	assert.False(t, opts.ConsistentRead)

	assert.ElementsMatch(t, []string{"status", "created", "region", "total", "pk"}, nameSet(opts.ExpressionAttributeNames))
	assert.ElementsMatch(t, []attr.Value{attr.String("open"), attr.String("2025-"), attr.String("eu")}, valueSet(opts.ExpressionAttributeValues))
}

func TestQueryBuilderDefaultsLeaveFieldsUnset(t *testing.T) {
	opts, err := New(nil).NewQuery("orders").WithPartitionKey("pk", attr.Int(7)).Build()
	require.NoError(t, err)
	assert.Empty(t, opts.IndexName)
	assert.Empty(t, opts.FilterExpression)
	assert.Empty(t, opts.ProjectionExpression)
	assert.Zero(t, opts.Limit)
	assert.Nil(t, opts.ScanIndexForward)
	assert.Equal(t, []attr.Value{attr.Number("7")}, valueSet(opts.ExpressionAttributeValues))
}

func TestQueryBuilderRequiresPartitionKey(t *testing.T) {
	q := New(nil).NewQuery("orders").WithSortKey("sk", attr.String("a"))
	_, err := q.Build()
	assert.True(t, errors.IsValidationError(err))

	_, err = q.Execute(context.Background())
	var oe *errors.OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "QueryTable", oe.Op)
	assert.Equal(t, "orders", oe.Table)
}

func TestQueryBuilderTimeHelpers(t *testing.T) {
	// Wednesday afternoon.
	now := time.Date(2025, 3, 5, 15, 4, 0, 0, time.UTC)
	build := func(apply func(*QueryBuilder) *QueryBuilder) []attr.Value {
		q := New(nil).NewQuery("feed").WithPartitionKey("pk", attr.String("user#1"))
		q.now = func() time.Time { return now }
		opts, err := apply(q).Build()
		require.NoError(t, err)
		return valueSet(opts.ExpressionAttributeValues)
	}

	tests := []struct {
		name  string
		apply func(*QueryBuilder) *QueryBuilder
		want  []attr.Value
	}{
		{"today", func(q *QueryBuilder) *QueryBuilder { return q.Today("ts") },
			[]attr.Value{attr.String("2025-03-05T00:00:00Z"), attr.String("2025-03-06T00:00:00Z")}},
		{"this week", func(q *QueryBuilder) *QueryBuilder { return q.ThisWeek("ts") },
			[]attr.Value{attr.String("2025-03-03T00:00:00Z")}},
		{"this month", func(q *QueryBuilder) *QueryBuilder { return q.ThisMonth("ts") },
			[]attr.Value{attr.String("2025-03-01T00:00:00Z")}},
		{"last days", func(q *QueryBuilder) *QueryBuilder { return q.InLastDays("ts", 7) },
			[]attr.Value{attr.String("2025-02-26T15:04:00Z")}},
		{"last hour", func(q *QueryBuilder) *QueryBuilder { return q.InLast("ts", time.Hour) },
			[]attr.Value{attr.String("2025-03-05T14:04:00Z")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := append([]attr.Value{attr.String("user#1")}, tt.want...)
			assert.ElementsMatch(t, want, build(tt.apply))
		})
	}
}

func TestThisWeekOnSunday(t *testing.T) {
	q := New(nil).NewQuery("feed").WithPartitionKey("pk", attr.String("u"))
	q.now = func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC) }
	opts, err := q.ThisWeek("ts").Build()
	require.NoError(t, err)
	assert.Contains(t, valueSet(opts.ExpressionAttributeValues), attr.String("2025-03-03T00:00:00Z"))
}

func newFeed(t *testing.T) *Client {
	t.Helper()
	c := New(mock.New())
	require.NoError(t, c.CreateTable(context.Background(), storagemodels.TableDescriptor{
		Name: "feed",
		AttributeDefinitions: []storagemodels.AttributeDefinition{
			{Name: "pk", Type: storagemodels.ScalarString},
			{Name: "ts", Type: storagemodels.ScalarString},
		},
		KeySchema:   storagemodels.KeySchema{PartitionKey: "pk", SortKey: "ts"},
		BillingMode: storagemodels.BillingOnDemand,
	}))
	return c
}

func post(ts time.Time) attr.Record {
	return attr.Record{"pk": attr.String("user#1"), "ts": timeValue(ts)}
}

func TestQueryBuilderAgainstStore(t *testing.T) {
	ctx := context.Background()
	c := newFeed(t)
	base := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := c.PutItem(ctx, "feed", post(base.Add(time.Duration(i)*time.Hour)), nil)
		require.NoError(t, err)
	}

	page, err := c.NewQuery("feed").
		WithPartitionKey("pk", attr.String("user#1")).
		After("ts", base.Add(time.Hour)).
		Latest().
		WithLimit(2).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, timeValue(base.Add(4*time.Hour)), page.Items[0]["ts"])
	assert.True(t, page.HasMore())

	rest, err := c.NewQuery("feed").
		WithPartitionKey("pk", attr.String("user#1")).
		After("ts", base.Add(time.Hour)).
		Latest().
		StartAfter(page.Cursor).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, timeValue(base.Add(2*time.Hour)), rest[0]["ts"])

	items, err := c.NewQuery("feed").
		WithPartitionKey("pk", attr.String("user#1")).
		Between("ts", base, base.Add(time.Hour)).
		Oldest().
		All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2, "between is inclusive")
}

func TestTimeWindowIterator(t *testing.T) {
	ctx := context.Background()
	c := newFeed(t)
	base := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 30 * time.Minute, time.Hour, 3*time.Hour - time.Second, 3 * time.Hour} {
		_, err := c.PutItem(ctx, "feed", post(base.Add(offset)), nil)
		require.NoError(t, err)
	}

	it := c.QueryTimeWindows("feed", "pk", attr.String("user#1"), "ts", base, base.Add(3*time.Hour), time.Hour)
	var sizes []int
	for {
		items, more, err := it.Next(ctx)
		require.NoError(t, err)
		sizes = append(sizes, len(items))
		if !more {
			break
		}
	}
	assert.Equal(t, []int{2, 1, 1}, sizes, "the end bound is excluded")

	items, more, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.False(t, more)
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/datastore/mock"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

func TestCreateTableValidatesDescriptor(t *testing.T) {
	ctx := context.Background()
	backend := mock.New()
	c := ddb.New(backend)

	bad := eventsDescriptor()
	bad.KeySchema.SortKey = "missing"
	err := c.CreateTable(ctx, bad)
	assert.True(t, errors.IsInvalidSchema(err), "got %v", err)

	bad = eventsDescriptor()
	bad.BillingMode = storagemodels.BillingProvisioned
	err = c.CreateTable(ctx, bad)
	assert.True(t, errors.IsThroughputConfig(err), "got %v", err)

	assert.Zero(t, backend.Calls("CreateTable"), "invalid descriptors never reach the store")
}

func TestCreateExistingTable(t *testing.T) {
	c, _ := newStore(t)
	err := c.CreateTable(context.Background(), eventsDescriptor())
	assert.True(t, errors.IsTableAlreadyExists(err))

	var oe *errors.OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "CreateTable", oe.Op)
	assert.Equal(t, "events", oe.Table)
}

func TestMissingTable(t *testing.T) {
	ctx := context.Background()
	c := ddb.New(mock.New())

	assert.True(t, errors.IsTableNotFound(c.DeleteTable(ctx, "ghost")))
	assert.True(t, errors.IsTableNotFound(c.UpdateTable(ctx, func() storagemodels.TableDescriptor {
		d := eventsDescriptor()
		d.Name = "ghost"
		return d
	}())))
	_, err := c.DescribeTable(ctx, "ghost")
	assert.True(t, errors.IsTableNotFound(err))

	status, err := c.Status(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestTableLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := mock.New().WithHeldTransitions()
	c := ddb.New(backend, ddb.WithWaitDelay(time.Millisecond))

	require.NoError(t, c.CreateTable(ctx, eventsDescriptor()))
	status, err := c.Status(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusCreating, status)

	_, err = c.PutItem(ctx, "events", event("a", 1), nil)
	assert.True(t, errors.IsTableUnavailable(err), "items wait for ACTIVE")
	assert.True(t, errors.IsRetryable(err))

	update := eventsDescriptor()
	update.DeletionProtection = true
	err = c.UpdateTable(ctx, update)
	assert.True(t, errors.IsConcurrentModification(err), "got %v", err)

	backend.Settle("events")
	require.NoError(t, c.WaitUntilActive(ctx, "events", time.Second))
	_, err = c.PutItem(ctx, "events", event("a", 1), nil)
	require.NoError(t, err)

	require.NoError(t, c.UpdateTable(ctx, update))
	status, err = c.Status(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusUpdating, status)

	_, err = c.GetItem(ctx, "events", event("a", 1), nil)
	require.NoError(t, err, "items stay available while updating")

	backend.Settle("events")
	desc, err := c.DescribeTable(ctx, "events")
	require.NoError(t, err)
	assert.True(t, desc.DeletionProtection)
	assert.Equal(t, int64(1), desc.ItemCount)

	err = c.DeleteTable(ctx, "events")
	assert.True(t, errors.IsValidationError(err), "protected tables cannot be deleted")

	update.DeletionProtection = false
	require.NoError(t, c.UpdateTable(ctx, update))
	backend.Settle("events")
	require.NoError(t, c.DeleteTable(ctx, "events"))

	status, err = c.Status(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusDeleting, status)
	_, err = c.GetItem(ctx, "events", event("a", 1), nil)
	assert.True(t, errors.IsTableUnavailable(err))

	go func() {
		time.Sleep(5 * time.Millisecond)
		backend.Settle("events")
	}()
	require.NoError(t, c.WaitUntilDeleted(ctx, "events", time.Second))
	status, err = c.Status(ctx, "events")
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestUpdateTableNoChangeSkipsStore(t *testing.T) {
	c, backend := newStore(t)
	require.NoError(t, c.UpdateTable(context.Background(), eventsDescriptor()))
	assert.Zero(t, backend.Calls("UpdateTable"))
}

func TestUpdateTableAddsIndex(t *testing.T) {
	ctx := context.Background()
	c, _ := newStore(t)

	desired := eventsDescriptor()
	desired.AttributeDefinitions = append(desired.AttributeDefinitions, storagemodels.AttributeDefinition{Name: "kind", Type: storagemodels.ScalarString})
	desired.GlobalSecondaryIndexes = []storagemodels.GlobalSecondaryIndex{{
		Name:      "by-kind",
		KeySchema: storagemodels.KeySchema{PartitionKey: "kind", SortKey: "sk"},
	}}
	require.NoError(t, c.UpdateTable(ctx, desired))

	desc, err := c.DescribeTable(ctx, "events")
	require.NoError(t, err)
	require.Len(t, desc.GlobalSecondaryIndexes, 1)
	assert.Equal(t, "by-kind", desc.GlobalSecondaryIndexes[0].Name)

	item := event("a", 1)
	item["kind"] = attr.String("click")
	_, err = c.PutItem(ctx, "events", item, nil)
	require.NoError(t, err)

	items, err := c.NewQuery("events").OnIndex("by-kind").WithPartitionKey("kind", attr.String("click")).All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// Changing the key schema of an existing index is rejected locally.
	desired.GlobalSecondaryIndexes[0].KeySchema.SortKey = ""
	err = c.UpdateTable(ctx, desired)
	assert.True(t, errors.IsInvalidSchema(err))
}

// twoIndexes adds by-kind and by-region to the events table and protects it.
func twoIndexes() storagemodels.TableDescriptor {
	desired := eventsDescriptor()
	desired.AttributeDefinitions = append(desired.AttributeDefinitions,
		storagemodels.AttributeDefinition{Name: "kind", Type: storagemodels.ScalarString},
		storagemodels.AttributeDefinition{Name: "region", Type: storagemodels.ScalarString},
	)
	desired.GlobalSecondaryIndexes = []storagemodels.GlobalSecondaryIndex{
		{Name: "by-kind", KeySchema: storagemodels.KeySchema{PartitionKey: "kind", SortKey: "sk"}},
		{Name: "by-region", KeySchema: storagemodels.KeySchema{PartitionKey: "region"}},
	}
	desired.DeletionProtection = true
	return desired
}

func TestUpdateTableAppliesIndexChangesInSteps(t *testing.T) {
	ctx := context.Background()
	backend := mock.New().WithHeldTransitions()
	c := ddb.New(backend, ddb.WithWaitDelay(time.Millisecond))
	require.NoError(t, c.CreateTable(ctx, eventsDescriptor()))
	backend.Settle("events")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.Settle("events")
			}
		}
	}()

	require.NoError(t, c.UpdateTable(ctx, twoIndexes()))
	assert.Equal(t, 3, backend.Calls("UpdateTable"), "one request per index plus one for settings")

	require.NoError(t, c.WaitUntilActive(ctx, "events", time.Second))
	desc, err := c.DescribeTable(ctx, "events")
	require.NoError(t, err)
	require.Len(t, desc.GlobalSecondaryIndexes, 2)
	assert.True(t, desc.DeletionProtection)

	// Dropping both indexes again also takes one request each.
	require.NoError(t, c.UpdateTable(ctx, eventsDescriptor()))
	assert.Equal(t, 6, backend.Calls("UpdateTable"))
	require.NoError(t, c.WaitUntilActive(ctx, "events", time.Second))
	desc, err = c.DescribeTable(ctx, "events")
	require.NoError(t, err)
	assert.Empty(t, desc.GlobalSecondaryIndexes)
	assert.False(t, desc.DeletionProtection)
}

func TestUpdateTableStepTimeout(t *testing.T) {
	ctx := context.Background()
	backend := mock.New().WithHeldTransitions()
	c := ddb.New(backend, ddb.WithWaitDelay(time.Millisecond), ddb.WithSettleTimeout(20*time.Millisecond))
	require.NoError(t, c.CreateTable(ctx, eventsDescriptor()))
	backend.Settle("events")

	// Nothing settles the first step, so the second is never sent.
	err := c.UpdateTable(ctx, twoIndexes())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "update step 2 of 3")
	assert.Equal(t, 1, backend.Calls("UpdateTable"))
}

func TestListTables(t *testing.T) {
	ctx := context.Background()
	c := ddb.New(mock.New())

	names, err := c.ListTables(ctx)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	for i := 0; i < 105; i++ {
		d := eventsDescriptor()
		d.Name = fmt.Sprintf("table-%03d", i)
		require.NoError(t, c.CreateTable(ctx, d))
	}
	names, err = c.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 105, "every page is followed")

	page, err := c.ListTablesPage(ctx, storagemodels.ListTablesOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, page.Names, 100)
	assert.Equal(t, "table-099", page.LastTableName)

	page, err = c.ListTablesPage(ctx, storagemodels.ListTablesOptions{ExclusiveStartTableName: page.LastTableName})
	require.NoError(t, err)
	assert.Equal(t, []string{"table-100", "table-101", "table-102", "table-103", "table-104"}, page.Names)
	assert.Empty(t, page.LastTableName)
}

func TestEnsureTable(t *testing.T) {
	ctx := context.Background()
	backend := mock.New()
	c := ddb.New(backend, ddb.WithWaitDelay(time.Millisecond))

	require.NoError(t, c.EnsureTable(ctx, eventsDescriptor(), time.Second))
	require.NoError(t, c.EnsureTable(ctx, eventsDescriptor(), time.Second))
	assert.Equal(t, 2, backend.Calls("CreateTable"))
	assert.Zero(t, backend.Calls("UpdateTable"), "matching table is left alone")

	changed := eventsDescriptor()
	changed.DeletionProtection = true
	require.NoError(t, c.EnsureTable(ctx, changed, time.Second))
	assert.Equal(t, 1, backend.Calls("UpdateTable"))
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	backend := mock.New().WithHeldTransitions()
	c := ddb.New(backend, ddb.WithWaitDelay(time.Millisecond))

	require.NoError(t, c.CreateTable(ctx, eventsDescriptor()))
	go func() {
		time.Sleep(5 * time.Millisecond)
		backend.Settle("events")
	}()
	require.NoError(t, c.WaitUntilActive(ctx, "events", time.Second))

	names, err := c.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, names)

	for i := int64(1); i <= 3; i++ {
		item := event("user#1", i)
		item["title"] = attr.String(fmt.Sprintf("post %d", i))
		_, err := c.PutItem(ctx, "events", item, nil)
		require.NoError(t, err)
	}

	got, err := c.GetItem(ctx, "events", event("user#1", 2), nil)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, attr.String("post 2"), got.Item["title"])

	page, err := c.NewQuery("events").
		WithPartitionKey("pk", attr.String("user#1")).
		WithSortKeyAtLeast("sk", attr.Int(2)).
		Descending().
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, sortKeys(page.Items))

	_, err = c.DeleteItem(ctx, "events", event("user#1", 1), nil)
	require.NoError(t, err)
	scanned, err := c.ScanAll(ctx, "events", nil)
	require.NoError(t, err)
	assert.Len(t, scanned, 2)

	require.NoError(t, c.DeleteTable(ctx, "events"))
	go func() {
		time.Sleep(5 * time.Millisecond)
		backend.Settle("events")
	}()
	require.NoError(t, c.WaitUntilDeleted(ctx, "events", time.Second))

	names, err = c.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

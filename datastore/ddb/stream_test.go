/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/datastore/mock"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// flakyAPI throttles the first failures Query calls.
type flakyAPI struct {
	ddb.API

	mu       sync.Mutex
	failures int
}

func (f *flakyAPI) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}
	f.mu.Unlock()
	return f.API.Query(ctx, in, optFns...)
}

func seed(t *testing.T, c *ddb.Client, partitions, perPartition int) {
	t.Helper()
	for p := 0; p < partitions; p++ {
		for i := 1; i <= perPartition; i++ {
			_, err := c.PutItem(context.Background(), "events", event(fmt.Sprintf("user#%d", p), int64(i)), nil)
			require.NoError(t, err)
		}
	}
}

func collect(ch <-chan storagemodels.StreamResult) (items []storagemodels.StreamResult, failures []error) {
	for r := range ch {
		if r.Error != nil {
			failures = append(failures, r.Error)
			continue
		}
		items = append(items, r)
	}
	return items, failures
}

func TestStreamFollowsCursors(t *testing.T) {
	c, _ := newStore(t)
	seed(t, c, 1, 25)

	var progress []storagemodels.StreamProgress
	results, failures := collect(c.Stream(context.Background(), "events", partitionQuery("user#0"),
		storagemodels.WithPageSize(10),
		storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) { progress = append(progress, p) }),
	))
	require.Empty(t, failures)
	require.Len(t, results, 25)

	for i, r := range results {
		assert.Equal(t, int64(i), r.Meta.Index)
		n, _ := r.Item.GetNumber("sk")
		v, _ := n.Int64()
		assert.Equal(t, int64(i+1), v)
	}
	assert.Equal(t, 1, results[0].Meta.PageNumber)
	assert.Equal(t, 3, results[24].Meta.PageNumber)

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, int64(25), last.ItemsProcessed)
	assert.Equal(t, 3, last.PagesProcessed)
	assert.Nil(t, last.LastKey)
}

func TestStreamRetriesThrottledPages(t *testing.T) {
	c, backend := newStore(t)
	seed(t, c, 1, 5)

	flaky := ddb.New(&flakyAPI{API: backend, failures: 2})
	results, failures := collect(flaky.Stream(context.Background(), "events", partitionQuery("user#0"),
		storagemodels.WithMaxRetries(3),
		storagemodels.WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	))
	assert.Empty(t, failures)
	assert.Len(t, results, 5)
}

func TestStreamWithoutRetriesFails(t *testing.T) {
	c, backend := newStore(t)
	seed(t, c, 1, 5)

	flaky := ddb.New(&flakyAPI{API: backend, failures: 1})
	results, failures := collect(flaky.Stream(context.Background(), "events", partitionQuery("user#0")))
	assert.Empty(t, results)
	require.Len(t, failures, 1)
	assert.True(t, errors.IsThrottling(failures[0]))
}

func TestStreamRetriesStopOnPermanentErrors(t *testing.T) {
	c, backend := newStore(t)
	backend.WithError("Query", &types.ResourceNotFoundException{Message: aws.String("gone")})

	_, failures := collect(c.Stream(context.Background(), "events", partitionQuery("user#0"),
		storagemodels.WithMaxRetries(5),
		storagemodels.WithRetryBackoff(time.Millisecond, time.Millisecond),
	))
	require.Len(t, failures, 1)
	assert.True(t, errors.IsTableUnavailable(failures[0]))
	assert.Equal(t, 6, backend.Calls("Query"), "unavailable tables are retried")

	backend.WithError("Query", &smithy.GenericAPIError{Code: "ValidationException", Message: "bad request"})
	_, failures = collect(c.Stream(context.Background(), "events", partitionQuery("user#0"),
		storagemodels.WithMaxRetries(5),
		storagemodels.WithRetryBackoff(time.Millisecond, time.Millisecond),
	))
	require.Len(t, failures, 1)
	assert.True(t, errors.IsValidationError(failures[0]))
	assert.Equal(t, 7, backend.Calls("Query"), "validation errors are not retried")
}

func TestStreamErrorHandlerEndsSegmentQuietly(t *testing.T) {
	c, backend := newStore(t)
	backend.WithError("Scan", &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")})

	var handled []error
	var final storagemodels.StreamProgress
	results, failures := collect(c.StreamScan(context.Background(), "events", nil,
		storagemodels.WithErrorHandler(func(err error) bool {
			handled = append(handled, err)
			return true
		}),
		storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) { final = p }),
	))
	assert.Empty(t, results)
	assert.Empty(t, failures)
	require.Len(t, handled, 1)
	assert.True(t, errors.IsThrottling(handled[0]))
	assert.Len(t, final.Errors, 1)
}

func TestStreamScanSegments(t *testing.T) {
	c, _ := newStore(t)
	seed(t, c, 20, 2)

	results, failures := collect(c.StreamScan(context.Background(), "events", nil,
		storagemodels.WithSegments(4),
		storagemodels.WithPageSize(3),
	))
	require.Empty(t, failures)
	require.Len(t, results, 40)

	seen := map[string]bool{}
	indexes := map[int64]bool{}
	for _, r := range results {
		pk, _ := r.Item.GetString("pk")
		n, _ := r.Item.GetNumber("sk")
		key := fmt.Sprintf("%s/%s", pk, n)
		assert.False(t, seen[key], "item %s delivered twice", key)
		seen[key] = true
		indexes[r.Meta.Index] = true

		assert.Equal(t, mock.SegmentOf(attr.String(pk), 4), r.Meta.Segment)
	}
	assert.Len(t, indexes, 40, "indexes are unique across segments")
}

func TestStreamStopsWhenCanceled(t *testing.T) {
	c, _ := newStore(t)
	seed(t, c, 1, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Stream(ctx, "events", partitionQuery("user#0"), storagemodels.WithBufferSize(0), storagemodels.WithPageSize(5))
	first := <-ch
	require.NoError(t, first.Error)
	cancel()

	received := 1
	done := make(chan struct{})
	go func() {
		for range ch {
			received++
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not close after cancel")
	}
	assert.Less(t, received, 50)
}

func TestQueryBuilderStream(t *testing.T) {
	c, _ := newStore(t)
	seed(t, c, 1, 3)

	results, failures := collect(c.NewQuery("events").WithPartitionKey("pk", attr.String("user#0")).Latest().Stream(context.Background()))
	require.Empty(t, failures)
	require.Len(t, results, 3)
	first, _ := results[0].Item.GetNumber("sk")
	assert.Equal(t, attr.Number("3"), first)

	_, failures = collect(c.NewQuery("events").Stream(context.Background()))
	require.Len(t, failures, 1)
	assert.True(t, errors.IsValidationError(failures[0]))
}

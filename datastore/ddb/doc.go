/*
Package ddb provides the DynamoDB implementation of the datastore.Store interface.

The Client supports:
  - Table lifecycle management with waiters for ACTIVE and deleted states
  - Conditional puts and deletes with typed condition failures
  - Query and scan pages with opaque cursors
  - Parallel scans over a fixed number of segments
  - Streaming with opt-in retry of throttled pages
  - A fluent query builder with time range helpers

Connecting:
Endpoint and static credentials are optional. Without them the SDK resolves the
regional endpoint and the default credential chain:

	client, err := ddb.Connect(ctx, ddb.Connection{
	    Region:   "us-east-1",
	    Endpoint: "http://localhost:8000",
	})

Queries:

	page, err := client.NewQuery("events").
	    WithPartitionKey("pk", attr.String("user#1")).
	    InLastDays("ts", 7).
	    Latest().
	    WithLimit(20).
	    Execute(ctx)

Streaming:

	results := client.StreamScan(ctx, "events", nil,
	    storagemodels.WithSegments(4),
	    storagemodels.WithMaxRetries(3),
	    storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) {
	        log.Printf("Processed %d items", p.ItemsProcessed)
	    }),
	)

Every error returned by the Client is an *errors.OpError naming the operation
and table; use the predicates in the errors package to inspect the cause.
*/
package ddb

/*
Package storagemodels defines the data structures shared by the store client
and its callers.

TableDescriptor:
The full desired shape of a table. It loads from YAML as well as Go:

	desc := storagemodels.TableDescriptor{
	    Name: "pages",
	    AttributeDefinitions: []storagemodels.AttributeDefinition{
	        {Name: "id", Type: storagemodels.ScalarString},
	    },
	    KeySchema:   storagemodels.KeySchema{PartitionKey: "id"},
	    BillingMode: storagemodels.BillingOnDemand,
	}
	if err := desc.Validate(); err != nil { ... }

Options:
One struct per item operation. Zero-valued fields are never sent:

	opts := &storagemodels.QueryOptions{
	    KeyConditionExpression: "#pk = :pk",
	    ExpressionAttributeNames:  map[string]string{"#pk": "folder"},
	    ExpressionAttributeValues: attr.Record{":pk": attr.String("root")},
	    Limit:            25,
	    ScanIndexForward: aws.Bool(false),
	}

Page:
Query and scan results with a continuation cursor. EncodeCursor and
DecodeCursor turn the cursor into an opaque token for text channels.

StreamOptions:
Configuration for streaming reads:

	opts := []StreamOption{
	    WithBufferSize(100),
	    WithPageSize(25),
	    WithMaxRetries(3),
	    WithProgressHandler(progressFunc),
	}
*/
package storagemodels

/*
Package recordstore provides a data-access layer that maps schema-flexible
records onto DynamoDB tables.

Records are maps of typed attribute values (package attr). The store client
(package datastore/ddb) creates and alters tables, reads and writes items, and
pages through queries and scans, including parallel scans. All failures belong
to the taxonomy in package errors and carry the operation and table name.

Basic Usage:

	cfg, _ := config.Load("recordstore.yaml")
	storage, _ := recordstore.Open(cfg)
	defer storage.Close()

	// Create or update every table declared in cfg.TablesDir
	err := storage.EnsureTables(ctx)

	client, _ := storage.Client(ctx, "")
	_, err = client.PutItem(ctx, storage.TableName("pages"), attr.Record{
	    "id":      attr.String("home"),
	    "version": attr.Int(1),
	}, nil)

Storage is safe for concurrent use; clients are connected on first use and
shared afterwards.
*/
package recordstore

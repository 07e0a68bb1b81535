/*
Package datastore defines the contract between record-level callers and a
backing store.

	type Store interface {
	    TableManager // CreateTable, UpdateTable, DeleteTable, ListTables
	    ItemStore    // PutItem, DeleteItem, GetItem, QueryTable, ScanTable
	}

Implementations:
  - ddb: DynamoDB implementation
  - mock: in-memory DynamoDB API used to test the ddb client without a network

Callers that only read and write items should depend on ItemStore.
*/
package datastore

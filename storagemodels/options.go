/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
)

// Every option struct below follows the same rule: a zero-valued field is left
// out of the outgoing request entirely. A nil options pointer means all defaults.

// PutOptions configures a PutItem call.
type PutOptions struct {
	// ConditionExpression must hold against the stored item for the write to apply.
	ConditionExpression string
	// ExpressionAttributeNames maps #placeholders to attribute names.
	ExpressionAttributeNames map[string]string
	// ExpressionAttributeValues maps :placeholders to values.
	ExpressionAttributeValues attr.Record
	// ReturnOldItem returns the replaced item, if any.
	ReturnOldItem bool
	// ReturnItemOnConditionFailure attaches the stored item to a ConditionalCheckFailedError.
	ReturnItemOnConditionFailure bool
	ReturnConsumedCapacity       types.ReturnConsumedCapacity
	ReturnItemCollectionMetrics  types.ReturnItemCollectionMetrics
}

// DeleteOptions configures a DeleteItem call. Without a condition, deleting an
// absent item succeeds.
type DeleteOptions struct {
	ConditionExpression          string
	ExpressionAttributeNames     map[string]string
	ExpressionAttributeValues    attr.Record
	ReturnOldItem                bool
	ReturnItemOnConditionFailure bool
	ReturnConsumedCapacity       types.ReturnConsumedCapacity
	ReturnItemCollectionMetrics  types.ReturnItemCollectionMetrics
}

// GetOptions configures a GetItem call.
type GetOptions struct {
	// ConsistentRead selects a strongly consistent read. Default is eventually consistent.
	ConsistentRead           bool
	ProjectionExpression     string
	ExpressionAttributeNames map[string]string
	ReturnConsumedCapacity   types.ReturnConsumedCapacity
}

// QueryOptions configures a QueryTable call. KeyConditionExpression is required.
type QueryOptions struct {
	IndexName                 string
	KeyConditionExpression    string
	FilterExpression          string
	ProjectionExpression      string
	Select                    types.Select
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attr.Record
	// Limit caps the number of items evaluated per page. Zero means store default.
	Limit          int32
	ConsistentRead bool
	// ScanIndexForward false returns items in descending sort key order. Nil is ascending.
	ScanIndexForward *bool
	// ExclusiveStartKey resumes from a previous page's Cursor.
	ExclusiveStartKey      attr.Record
	ReturnConsumedCapacity types.ReturnConsumedCapacity
}

// ScanOptions configures a ScanTable call. TotalSegments zero means a serial scan;
// otherwise Segment selects the slice this call reads.
type ScanOptions struct {
	IndexName                 string
	FilterExpression          string
	ProjectionExpression      string
	Select                    types.Select
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues attr.Record
	Limit                     int32
	ConsistentRead            bool
	ExclusiveStartKey         attr.Record
	Segment                   int32
	TotalSegments             int32
	ReturnConsumedCapacity    types.ReturnConsumedCapacity
}

// ListTablesOptions configures a single ListTables page.
type ListTablesOptions struct {
	Limit                   int32
	ExclusiveStartTableName string
}

// PutResult is the outcome of a successful PutItem.
type PutResult struct {
	// OldItem is the replaced item when ReturnOldItem was set and an item existed.
	OldItem               attr.Record
	ConsumedCapacity      *types.ConsumedCapacity
	ItemCollectionMetrics *types.ItemCollectionMetrics
}

// DeleteResult is the outcome of a successful DeleteItem.
type DeleteResult struct {
	OldItem               attr.Record
	ConsumedCapacity      *types.ConsumedCapacity
	ItemCollectionMetrics *types.ItemCollectionMetrics
}

// GetResult is the outcome of a GetItem. Found is false when no item matches the key.
type GetResult struct {
	Item             attr.Record
	Found            bool
	ConsumedCapacity *types.ConsumedCapacity
}

// Page is one page of query or scan results. A nil Cursor means no more pages.
type Page struct {
	Items            []attr.Record
	Cursor           attr.Record
	Count            int32
	ScannedCount     int32
	ConsumedCapacity *types.ConsumedCapacity
}

// HasMore reports whether another page can be requested with Cursor.
func (p *Page) HasMore() bool {
	return len(p.Cursor) > 0
}

// TablesPage is one page of table names.
type TablesPage struct {
	Names []string
	// LastTableName is the start name for the next page; empty when done.
	LastTableName string
}

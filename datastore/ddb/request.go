/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// maxTotalSegments is the store's upper bound for a parallel scan.
const maxTotalSegments = 1000000

// The builders below translate option structs into SDK inputs. A zero-valued
// option never reaches the input: pointer fields stay nil and maps stay empty.

func buildPutItemInput(table string, item attr.Record, o *storagemodels.PutOptions) (*dynamodb.PutItemInput, error) {
	if len(item) == 0 {
		return nil, errors.NewValidationError("item", "item must not be empty")
	}
	wire, err := attr.Encode(item)
	if err != nil {
		return nil, err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      wire,
	}
	if o == nil {
		return in, nil
	}

	in.ConditionExpression = optString(o.ConditionExpression)
	in.ExpressionAttributeNames = optNames(o.ExpressionAttributeNames)
	if in.ExpressionAttributeValues, err = optValues(o.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if o.ReturnOldItem {
		in.ReturnValues = types.ReturnValueAllOld
	}
	if o.ReturnItemOnConditionFailure {
		in.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	in.ReturnConsumedCapacity = o.ReturnConsumedCapacity
	in.ReturnItemCollectionMetrics = o.ReturnItemCollectionMetrics
	return in, nil
}

func buildDeleteItemInput(table string, key attr.Record, o *storagemodels.DeleteOptions) (*dynamodb.DeleteItemInput, error) {
	wire, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	in := &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       wire,
	}
	if o == nil {
		return in, nil
	}

	in.ConditionExpression = optString(o.ConditionExpression)
	in.ExpressionAttributeNames = optNames(o.ExpressionAttributeNames)
	if in.ExpressionAttributeValues, err = optValues(o.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if o.ReturnOldItem {
		in.ReturnValues = types.ReturnValueAllOld
	}
	if o.ReturnItemOnConditionFailure {
		in.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	in.ReturnConsumedCapacity = o.ReturnConsumedCapacity
	in.ReturnItemCollectionMetrics = o.ReturnItemCollectionMetrics
	return in, nil
}

func buildGetItemInput(table string, key attr.Record, o *storagemodels.GetOptions) (*dynamodb.GetItemInput, error) {
	wire, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	in := &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       wire,
	}
	if o == nil {
		return in, nil
	}

	in.ConsistentRead = optBool(o.ConsistentRead)
	in.ProjectionExpression = optString(o.ProjectionExpression)
	in.ExpressionAttributeNames = optNames(o.ExpressionAttributeNames)
	in.ReturnConsumedCapacity = o.ReturnConsumedCapacity
	return in, nil
}

func buildQueryInput(table string, o *storagemodels.QueryOptions) (*dynamodb.QueryInput, error) {
	if o == nil || o.KeyConditionExpression == "" {
		return nil, errors.NewValidationError("KeyConditionExpression", "query requires a key condition")
	}
	if o.Limit < 0 {
		return nil, errors.NewValidationError("Limit", "limit must not be negative")
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String(o.KeyConditionExpression),
		IndexName:              optString(o.IndexName),
		FilterExpression:       optString(o.FilterExpression),
		ProjectionExpression:   optString(o.ProjectionExpression),
		Select:                 o.Select,
		Limit:                  optInt32(o.Limit),
		ConsistentRead:         optBool(o.ConsistentRead),
		ScanIndexForward:       o.ScanIndexForward,
		ReturnConsumedCapacity: o.ReturnConsumedCapacity,
	}
	in.ExpressionAttributeNames = optNames(o.ExpressionAttributeNames)

	var err error
	if in.ExpressionAttributeValues, err = optValues(o.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if in.ExclusiveStartKey, err = optCursor(o.ExclusiveStartKey); err != nil {
		return nil, err
	}
	return in, nil
}

func buildScanInput(table string, o *storagemodels.ScanOptions) (*dynamodb.ScanInput, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(table)}
	if o == nil {
		return in, nil
	}
	if o.Limit < 0 {
		return nil, errors.NewValidationError("Limit", "limit must not be negative")
	}
	if err := checkSegments(o.Segment, o.TotalSegments); err != nil {
		return nil, err
	}

	in.IndexName = optString(o.IndexName)
	in.FilterExpression = optString(o.FilterExpression)
	in.ProjectionExpression = optString(o.ProjectionExpression)
	in.Select = o.Select
	in.ExpressionAttributeNames = optNames(o.ExpressionAttributeNames)
	in.Limit = optInt32(o.Limit)
	in.ConsistentRead = optBool(o.ConsistentRead)
	in.ReturnConsumedCapacity = o.ReturnConsumedCapacity
	if o.TotalSegments > 0 {
		// Segment 0 is meaningful once TotalSegments is set.
		in.Segment = aws.Int32(o.Segment)
		in.TotalSegments = aws.Int32(o.TotalSegments)
	}

	var err error
	if in.ExpressionAttributeValues, err = optValues(o.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if in.ExclusiveStartKey, err = optCursor(o.ExclusiveStartKey); err != nil {
		return nil, err
	}
	return in, nil
}

func buildListTablesInput(o storagemodels.ListTablesOptions) (*dynamodb.ListTablesInput, error) {
	if o.Limit < 0 || o.Limit > 100 {
		return nil, errors.NewValidationError("Limit", "limit must be between 0 and 100 (0 = default)")
	}
	return &dynamodb.ListTablesInput{
		Limit:                   optInt32(o.Limit),
		ExclusiveStartTableName: optString(o.ExclusiveStartTableName),
	}, nil
}

// checkSegments enforces 0 <= segment < total <= maxTotalSegments. A zero total
// means a serial scan and then segment must be zero too.
func checkSegments(segment, total int32) error {
	switch {
	case total < 0 || total > maxTotalSegments:
		return errors.NewValidationError("TotalSegments", fmt.Sprintf("total segments must be between 0 and %d (0 = serial scan)", maxTotalSegments))
	case total == 0 && segment != 0:
		return errors.NewValidationError("Segment", "segment requires total segments")
	case segment < 0 || (total > 0 && segment >= total):
		return errors.NewValidationError("Segment", fmt.Sprintf("segment %d is outside [0, %d)", segment, total))
	}
	return nil
}

func encodeKey(key attr.Record) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.NewValidationError("key", "key must not be empty")
	}
	return attr.Encode(key)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func optBool(b bool) *bool {
	if !b {
		return nil
	}
	return aws.Bool(true)
}

func optInt32(n int32) *int32 {
	if n == 0 {
		return nil
	}
	return aws.Int32(n)
}

func optNames(names map[string]string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	return names
}

func optValues(values attr.Record) (map[string]types.AttributeValue, error) {
	if len(values) == 0 {
		return nil, nil
	}
	wire, err := attr.Encode(values)
	if err != nil {
		return nil, fmt.Errorf("expression attribute values: %w", err)
	}
	return wire, nil
}

func optCursor(cursor attr.Record) (map[string]types.AttributeValue, error) {
	if len(cursor) == 0 {
		return nil, nil
	}
	wire, err := attr.Encode(cursor)
	if err != nil {
		return nil, fmt.Errorf("exclusive start key: %w", err)
	}
	return wire, nil
}

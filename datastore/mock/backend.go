/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory DynamoDB backend for testing. Backend
// implements the API the ddb client calls, so tests exercise the real client
// code against it.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/suparena/recordstore/attr"
)

// Backend is an in-memory table store. It is safe for concurrent use.
type Backend struct {
	mu     sync.RWMutex
	tables map[string]*table
	hold   bool
	errs   map[string]error
	calls  map[string]int
	now    func() time.Time
}

type table struct {
	desc    types.TableDescription
	items   map[string]attr.Record
	pending bool
}

// New creates an empty backend. Table transitions complete immediately unless
// WithHeldTransitions is set.
func New() *Backend {
	return &Backend{
		tables: make(map[string]*table),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		now:    time.Now,
	}
}

// WithHeldTransitions keeps tables in CREATING, UPDATING and DELETING until
// Settle is called.
func (b *Backend) WithHeldTransitions() *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = true
	return b
}

// WithError makes every call of op (for example "PutItem") return err. A nil
// err clears it.
func (b *Backend) WithError(op string, err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, op)
	} else {
		b.errs[op] = err
	}
	return b
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[op]
}

// Settle completes the pending transition of name: CREATING and UPDATING
// become ACTIVE, and a DELETING table disappears.
func (b *Backend) Settle(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[name]
	if !ok || !t.pending {
		return
	}
	t.pending = false
	switch t.desc.TableStatus {
	case types.TableStatusDeleting:
		delete(b.tables, name)
	default:
		t.desc.TableStatus = types.TableStatusActive
	}
}

// begin records a call and returns any injected failure. Callers hold b.mu.
func (b *Backend) begin(ctx context.Context, op string) error {
	b.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.errs[op]
}

func (b *Backend) transition(t *table, status types.TableStatus) {
	if b.hold {
		t.desc.TableStatus = status
		t.pending = true
		return
	}
	t.desc.TableStatus = types.TableStatusActive
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + name + " not found")}
}

func inUse(name string, status types.TableStatus) error {
	return &types.ResourceInUseException{Message: aws.String(fmt.Sprintf("Table %s is in use (status %s)", name, status))}
}

// CreateTable registers a new table.
func (b *Backend) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "CreateTable"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	if name == "" {
		return nil, validationError("TableName is required")
	}
	if _, ok := b.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	if err := checkKeySchema(in.KeySchema, in.AttributeDefinitions); err != nil {
		return nil, err
	}
	mode := in.BillingMode
	if mode == "" {
		mode = types.BillingModeProvisioned
	}
	if mode == types.BillingModeProvisioned && in.ProvisionedThroughput == nil {
		return nil, validationError("No provisioned throughput specified for the table")
	}

	desc := types.TableDescription{
		TableName:                 aws.String(name),
		TableArn:                  aws.String("arn:aws:dynamodb:local:000000000000:table/" + name),
		TableId:                   aws.String(fmt.Sprintf("%08d", len(b.tables)+1)),
		AttributeDefinitions:      in.AttributeDefinitions,
		KeySchema:                 in.KeySchema,
		BillingModeSummary:        &types.BillingModeSummary{BillingMode: mode},
		ProvisionedThroughput:     throughputDescription(in.ProvisionedThroughput),
		StreamSpecification:       in.StreamSpecification,
		CreationDateTime:          aws.Time(b.now()),
		DeletionProtectionEnabled: in.DeletionProtectionEnabled,
	}
	for _, lsi := range in.LocalSecondaryIndexes {
		if err := checkKeySchema(lsi.KeySchema, in.AttributeDefinitions); err != nil {
			return nil, err
		}
		desc.LocalSecondaryIndexes = append(desc.LocalSecondaryIndexes, types.LocalSecondaryIndexDescription{
			IndexName:  lsi.IndexName,
			KeySchema:  lsi.KeySchema,
			Projection: lsi.Projection,
		})
	}
	for _, gsi := range in.GlobalSecondaryIndexes {
		if err := checkKeySchema(gsi.KeySchema, in.AttributeDefinitions); err != nil {
			return nil, err
		}
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, gsiDescription(gsi.IndexName, gsi.KeySchema, gsi.Projection, gsi.ProvisionedThroughput))
	}
	if in.SSESpecification != nil {
		desc.SSEDescription = sseDescription(in.SSESpecification)
	}
	if in.TableClass != "" {
		desc.TableClassSummary = &types.TableClassSummary{TableClass: in.TableClass}
	}

	t := &table{desc: desc, items: make(map[string]attr.Record)}
	b.transition(t, types.TableStatusCreating)
	b.tables[name] = t
	return &dynamodb.CreateTableOutput{TableDescription: b.describe(t)}, nil
}

// UpdateTable applies billing, throughput, index, stream, encryption, table
// class and deletion protection changes.
func (b *Backend) UpdateTable(ctx context.Context, in *dynamodb.UpdateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "UpdateTable"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, ok := b.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	if t.desc.TableStatus != types.TableStatusActive {
		return nil, inUse(name, t.desc.TableStatus)
	}

	if err := checkIndexActions(in); err != nil {
		return nil, err
	}

	desc := t.desc
	changed := false
	if in.BillingMode != "" {
		desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: in.BillingMode}
		changed = true
	}
	if in.ProvisionedThroughput != nil {
		desc.ProvisionedThroughput = throughputDescription(in.ProvisionedThroughput)
		changed = true
	}
	if len(in.AttributeDefinitions) > 0 {
		desc.AttributeDefinitions = in.AttributeDefinitions
	}
	for _, u := range in.GlobalSecondaryIndexUpdates {
		var err error
		if desc.GlobalSecondaryIndexes, err = applyIndexUpdate(desc.GlobalSecondaryIndexes, u, desc.AttributeDefinitions); err != nil {
			return nil, err
		}
		changed = true
	}
	if in.StreamSpecification != nil {
		desc.StreamSpecification = in.StreamSpecification
		changed = true
	}
	if in.SSESpecification != nil {
		desc.SSEDescription = sseDescription(in.SSESpecification)
		changed = true
	}
	if in.TableClass != "" {
		desc.TableClassSummary = &types.TableClassSummary{TableClass: in.TableClass}
		changed = true
	}
	if in.DeletionProtectionEnabled != nil {
		desc.DeletionProtectionEnabled = in.DeletionProtectionEnabled
		changed = true
	}
	if !changed {
		return nil, validationError("At least one of ProvisionedThroughput, BillingMode, UpdateStreamEnabled, GlobalSecondaryIndexUpdates or SSESpecification or ReplicaUpdates is required")
	}

	t.desc = desc
	b.transition(t, types.TableStatusUpdating)
	return &dynamodb.UpdateTableOutput{TableDescription: b.describe(t)}, nil
}

// DeleteTable removes a table and its items.
func (b *Backend) DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "DeleteTable"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, ok := b.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	if aws.ToBool(t.desc.DeletionProtectionEnabled) {
		return nil, validationError("Resource cannot be deleted as it is currently protected against deletion. Disable deletion protection first.")
	}
	if t.desc.TableStatus != types.TableStatusActive {
		return nil, inUse(name, t.desc.TableStatus)
	}

	if b.hold {
		t.desc.TableStatus = types.TableStatusDeleting
		t.pending = true
	} else {
		t.desc.TableStatus = types.TableStatusDeleting
		delete(b.tables, name)
	}
	return &dynamodb.DeleteTableOutput{TableDescription: b.describe(t)}, nil
}

// DescribeTable returns a table's description with its current item count.
func (b *Backend) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "DescribeTable"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, ok := b.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	return &dynamodb.DescribeTableOutput{Table: b.describe(t)}, nil
}

// ListTables returns table names in lexical order, honouring Limit and
// ExclusiveStartTableName.
func (b *Backend) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "ListTables"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(b.tables))
	start := aws.ToString(in.ExclusiveStartTableName)
	for name := range b.tables {
		if name > start {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	limit := int(aws.ToInt32(in.Limit))
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	out := &dynamodb.ListTablesOutput{TableNames: names}
	if len(names) > limit {
		out.TableNames = names[:limit]
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	return out, nil
}

func (b *Backend) describe(t *table) *types.TableDescription {
	desc := t.desc
	desc.ItemCount = aws.Int64(int64(len(t.items)))
	var size int64
	for _, item := range t.items {
		size += itemSize(item)
	}
	desc.TableSizeBytes = aws.Int64(size)
	return &desc
}

// itemSize approximates the stored size of item.
func itemSize(item attr.Record) int64 {
	data, err := attr.MarshalWireJSON(item)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

func checkKeySchema(keys []types.KeySchemaElement, defs []types.AttributeDefinition) error {
	if len(keys) == 0 || keys[0].KeyType != types.KeyTypeHash {
		return validationError("Invalid KeySchema: The first KeySchemaElement is not a HASH key type")
	}
	for _, k := range keys {
		if _, ok := attributeType(defs, aws.ToString(k.AttributeName)); !ok {
			return validationError("One or more parameter values were invalid: Some index key attributes are not defined in AttributeDefinitions. Keys: [%s]", aws.ToString(k.AttributeName))
		}
	}
	return nil
}

func attributeType(defs []types.AttributeDefinition, name string) (types.ScalarAttributeType, bool) {
	for _, d := range defs {
		if aws.ToString(d.AttributeName) == name {
			return d.AttributeType, true
		}
	}
	return "", false
}

func throughputDescription(t *types.ProvisionedThroughput) *types.ProvisionedThroughputDescription {
	if t == nil {
		return &types.ProvisionedThroughputDescription{ReadCapacityUnits: aws.Int64(0), WriteCapacityUnits: aws.Int64(0)}
	}
	return &types.ProvisionedThroughputDescription{
		ReadCapacityUnits:  t.ReadCapacityUnits,
		WriteCapacityUnits: t.WriteCapacityUnits,
	}
}

// checkIndexActions enforces the store's limit of one index creation or
// deletion per request, which also cannot be combined with capacity or stream
// changes.
func checkIndexActions(in *dynamodb.UpdateTableInput) error {
	online := 0
	for _, u := range in.GlobalSecondaryIndexUpdates {
		if u.Create != nil || u.Delete != nil {
			online++
		}
	}
	if online == 0 {
		return nil
	}
	if online > 1 {
		return validationError("One or more parameter values were invalid: Only 1 online index can be created or deleted simultaneously per table")
	}
	if len(in.GlobalSecondaryIndexUpdates) > 1 || in.BillingMode != "" || in.ProvisionedThroughput != nil || in.StreamSpecification != nil {
		return validationError("One or more parameter values were invalid: an index creation or deletion cannot be combined with other table updates")
	}
	return nil
}

func gsiDescription(name *string, keys []types.KeySchemaElement, proj *types.Projection, tp *types.ProvisionedThroughput) types.GlobalSecondaryIndexDescription {
	return types.GlobalSecondaryIndexDescription{
		IndexName:             name,
		KeySchema:             keys,
		Projection:            proj,
		IndexStatus:           types.IndexStatusActive,
		ProvisionedThroughput: throughputDescription(tp),
	}
}

func applyIndexUpdate(indexes []types.GlobalSecondaryIndexDescription, u types.GlobalSecondaryIndexUpdate, defs []types.AttributeDefinition) ([]types.GlobalSecondaryIndexDescription, error) {
	find := func(name string) int {
		for i, idx := range indexes {
			if aws.ToString(idx.IndexName) == name {
				return i
			}
		}
		return -1
	}
	out := append([]types.GlobalSecondaryIndexDescription(nil), indexes...)

	switch {
	case u.Create != nil:
		name := aws.ToString(u.Create.IndexName)
		if find(name) >= 0 {
			return nil, validationError("Index %s already exists", name)
		}
		if err := checkKeySchema(u.Create.KeySchema, defs); err != nil {
			return nil, err
		}
		out = append(out, gsiDescription(u.Create.IndexName, u.Create.KeySchema, u.Create.Projection, u.Create.ProvisionedThroughput))
	case u.Delete != nil:
		i := find(aws.ToString(u.Delete.IndexName))
		if i < 0 {
			return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Index " + aws.ToString(u.Delete.IndexName))}
		}
		out = append(out[:i], out[i+1:]...)
	case u.Update != nil:
		i := find(aws.ToString(u.Update.IndexName))
		if i < 0 {
			return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Index " + aws.ToString(u.Update.IndexName))}
		}
		out[i].ProvisionedThroughput = throughputDescription(u.Update.ProvisionedThroughput)
	}
	return out, nil
}

func sseDescription(s *types.SSESpecification) *types.SSEDescription {
	if !aws.ToBool(s.Enabled) {
		return &types.SSEDescription{Status: types.SSEStatusDisabled}
	}
	sseType := s.SSEType
	if sseType == "" {
		sseType = types.SSETypeKms
	}
	desc := &types.SSEDescription{Status: types.SSEStatusEnabled, SSEType: sseType}
	if s.KMSMasterKeyId != nil {
		desc.KMSMasterKeyArn = s.KMSMasterKeyId
	}
	return desc
}

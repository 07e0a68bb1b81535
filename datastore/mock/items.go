/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"
	"encoding/base64"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/attr"
)

// keyDef is the key schema of a table or index.
type keyDef struct {
	pk, sk         string
	pkType, skType types.ScalarAttributeType
}

// indexView describes what a query or scan reads: the table itself or one of
// its secondary indexes.
type indexView struct {
	keys       keyDef
	table      keyDef
	global     bool
	projection *types.Projection
}

// active returns the named table if it accepts item operations. The store
// reports absent, creating and deleting tables the same way.
func (b *Backend) active(name string) (*table, error) {
	t, ok := b.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	switch t.desc.TableStatus {
	case types.TableStatusActive, types.TableStatusUpdating:
		return t, nil
	}
	return nil, notFound(name)
}

func (t *table) keyDef(elems []types.KeySchemaElement) keyDef {
	var kd keyDef
	for _, e := range elems {
		typ, _ := attributeType(t.desc.AttributeDefinitions, aws.ToString(e.AttributeName))
		switch e.KeyType {
		case types.KeyTypeHash:
			kd.pk, kd.pkType = aws.ToString(e.AttributeName), typ
		case types.KeyTypeRange:
			kd.sk, kd.skType = aws.ToString(e.AttributeName), typ
		}
	}
	return kd
}

func (t *table) view(index string) (indexView, error) {
	primary := t.keyDef(t.desc.KeySchema)
	if index == "" {
		return indexView{keys: primary, table: primary}, nil
	}
	for _, gsi := range t.desc.GlobalSecondaryIndexes {
		if aws.ToString(gsi.IndexName) == index {
			return indexView{keys: t.keyDef(gsi.KeySchema), table: primary, global: true, projection: gsi.Projection}, nil
		}
	}
	for _, lsi := range t.desc.LocalSecondaryIndexes {
		if aws.ToString(lsi.IndexName) == index {
			return indexView{keys: t.keyDef(lsi.KeySchema), table: primary, projection: lsi.Projection}, nil
		}
	}
	return indexView{}, validationError("The table does not have the specified index: %s", index)
}

func scalarMatches(v attr.Value, typ types.ScalarAttributeType) bool {
	switch typ {
	case types.ScalarAttributeTypeS:
		_, ok := v.(attr.String)
		return ok
	case types.ScalarAttributeTypeN:
		_, ok := v.(attr.Number)
		return ok
	case types.ScalarAttributeTypeB:
		_, ok := v.(attr.Binary)
		return ok
	}
	return false
}

func canonical(v attr.Value) string {
	switch v := v.(type) {
	case attr.String:
		return "S:" + string(v)
	case attr.Number:
		if r, ok := v.Rat(); ok {
			return "N:" + r.RatString()
		}
		return "N:" + string(v)
	case attr.Binary:
		return "B:" + base64.StdEncoding.EncodeToString(v)
	}
	return ""
}

// primaryKey returns the canonical key string of item under kd.
func primaryKey(kd keyDef, item attr.Record) (string, error) {
	pk, ok := item[kd.pk]
	if !ok {
		return "", validationError("One or more parameter values were invalid: Missing the key %s in the item", kd.pk)
	}
	if !scalarMatches(pk, kd.pkType) {
		return "", validationError("One or more parameter values were invalid: Type mismatch for key %s expected: %s", kd.pk, kd.pkType)
	}
	key := canonical(pk)
	if kd.sk == "" {
		return key, nil
	}
	sk, ok := item[kd.sk]
	if !ok {
		return "", validationError("One or more parameter values were invalid: Missing the key %s in the item", kd.sk)
	}
	if !scalarMatches(sk, kd.skType) {
		return "", validationError("One or more parameter values were invalid: Type mismatch for key %s expected: %s", kd.sk, kd.skType)
	}
	return key + "\x00" + canonical(sk), nil
}

// exactKey validates a GetItem or DeleteItem key: exactly the key attributes.
func exactKey(kd keyDef, key attr.Record) (string, error) {
	want := 1
	if kd.sk != "" {
		want = 2
	}
	if len(key) != want {
		return "", validationError("The provided key element does not match the schema")
	}
	return primaryKey(kd, key)
}

// hasIndexKeys reports whether item appears in the index.
func hasIndexKeys(kd keyDef, item attr.Record) bool {
	pk, ok := item[kd.pk]
	if !ok || !scalarMatches(pk, kd.pkType) {
		return false
	}
	if kd.sk == "" {
		return true
	}
	sk, ok := item[kd.sk]
	return ok && scalarMatches(sk, kd.skType)
}

func (t *table) checkIndexKeys(item attr.Record) error {
	check := func(elems []types.KeySchemaElement) error {
		for _, e := range elems {
			name := aws.ToString(e.AttributeName)
			v, ok := item[name]
			if !ok {
				continue
			}
			typ, _ := attributeType(t.desc.AttributeDefinitions, name)
			if !scalarMatches(v, typ) {
				return validationError("One or more parameter values were invalid: Type mismatch for Index Key %s Expected: %s", name, typ)
			}
		}
		return nil
	}
	for _, gsi := range t.desc.GlobalSecondaryIndexes {
		if err := check(gsi.KeySchema); err != nil {
			return err
		}
	}
	for _, lsi := range t.desc.LocalSecondaryIndexes {
		if err := check(lsi.KeySchema); err != nil {
			return err
		}
	}
	return nil
}

func decodeValues(values map[string]types.AttributeValue) (attr.Record, error) {
	decoded, err := attr.Decode(values)
	if err != nil {
		return nil, validationError("ExpressionAttributeValues contains invalid value: %v", err)
	}
	return decoded, nil
}

// checkCondition evaluates a write condition against the stored item.
func checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current attr.Record) (bool, error) {
	if expr == nil {
		return true, nil
	}
	vals, err := decodeValues(values)
	if err != nil {
		return false, err
	}
	c, err := parseCondition(*expr, names, vals)
	if err != nil {
		return false, validationError("Invalid ConditionExpression: %v", err)
	}
	return c.eval(&env{item: current}), nil
}

func consumed(table string, mode types.ReturnConsumedCapacity, units float64) *types.ConsumedCapacity {
	if mode == "" || mode == types.ReturnConsumedCapacityNone {
		return nil
	}
	return &types.ConsumedCapacity{TableName: aws.String(table), CapacityUnits: aws.Float64(units)}
}

func encode(item attr.Record) map[string]types.AttributeValue {
	wire, _ := attr.Encode(item)
	return wire
}

// PutItem stores an item, evaluating the condition against the current one.
func (b *Backend) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "PutItem"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, err := b.active(name)
	if err != nil {
		return nil, err
	}
	item, err := attr.Decode(in.Item)
	if err != nil {
		return nil, validationError("Supplied AttributeValue is invalid: %v", err)
	}
	key, err := primaryKey(t.keyDef(t.desc.KeySchema), item)
	if err != nil {
		return nil, err
	}
	if err := t.checkIndexKeys(item); err != nil {
		return nil, err
	}
	if in.ReturnValues != "" && in.ReturnValues != types.ReturnValueNone && in.ReturnValues != types.ReturnValueAllOld {
		return nil, validationError("ReturnValues can only be ALL_OLD or NONE")
	}

	old := t.items[key]
	ok, err := checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(old, in.ReturnValuesOnConditionCheckFailure)
	}

	t.items[key] = item.Clone()
	out := &dynamodb.PutItemOutput{ConsumedCapacity: consumed(name, in.ReturnConsumedCapacity, 1)}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = encode(old)
	}
	return out, nil
}

// GetItem returns the item with the given key, or no item.
func (b *Backend) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "GetItem"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, err := b.active(name)
	if err != nil {
		return nil, err
	}
	keyRec, err := attr.Decode(in.Key)
	if err != nil {
		return nil, validationError("Supplied AttributeValue is invalid: %v", err)
	}
	key, err := exactKey(t.keyDef(t.desc.KeySchema), keyRec)
	if err != nil {
		return nil, err
	}

	out := &dynamodb.GetItemOutput{ConsumedCapacity: consumed(name, in.ReturnConsumedCapacity, 0.5)}
	item, ok := t.items[key]
	if !ok {
		return out, nil
	}
	if in.ProjectionExpression != nil {
		if item, err = project(item, *in.ProjectionExpression, in.ExpressionAttributeNames); err != nil {
			return nil, err
		}
	}
	out.Item = encode(item)
	return out, nil
}

// DeleteItem removes an item. Deleting an absent item succeeds unless a
// condition says otherwise.
func (b *Backend) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "DeleteItem"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	t, err := b.active(name)
	if err != nil {
		return nil, err
	}
	keyRec, err := attr.Decode(in.Key)
	if err != nil {
		return nil, validationError("Supplied AttributeValue is invalid: %v", err)
	}
	key, err := exactKey(t.keyDef(t.desc.KeySchema), keyRec)
	if err != nil {
		return nil, err
	}

	old := t.items[key]
	ok, err := checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(old, in.ReturnValuesOnConditionCheckFailure)
	}

	delete(t.items, key)
	out := &dynamodb.DeleteItemOutput{ConsumedCapacity: consumed(name, in.ReturnConsumedCapacity, 1)}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = encode(old)
	}
	return out, nil
}

func conditionFailed(old attr.Record, ret types.ReturnValuesOnConditionCheckFailure) error {
	err := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	if ret == types.ReturnValuesOnConditionCheckFailureAllOld && old != nil {
		err.Item = encode(old)
	}
	return err
}

// readRequest is the part of Query and Scan input the read path shares.
type readRequest struct {
	table      string
	index      string
	filter     *string
	projection *string
	selectMode types.Select
	names      map[string]string
	values     map[string]types.AttributeValue
	limit      *int32
	consistent *bool
	startKey   map[string]types.AttributeValue
	capacity   types.ReturnConsumedCapacity
}

type readResult struct {
	items    []map[string]types.AttributeValue
	last     map[string]types.AttributeValue
	count    int32
	scanned  int32
	capacity *types.ConsumedCapacity
}

// Query reads the items of one partition in sort key order.
func (b *Backend) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Query"); err != nil {
		return nil, err
	}

	req := readRequest{
		table:      aws.ToString(in.TableName),
		index:      aws.ToString(in.IndexName),
		filter:     in.FilterExpression,
		projection: in.ProjectionExpression,
		selectMode: in.Select,
		names:      in.ExpressionAttributeNames,
		values:     in.ExpressionAttributeValues,
		limit:      in.Limit,
		consistent: in.ConsistentRead,
		startKey:   in.ExclusiveStartKey,
		capacity:   in.ReturnConsumedCapacity,
	}
	t, view, vals, err := b.prepare(req)
	if err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, validationError("Either the KeyConditions or KeyConditionExpression parameter must be specified in the request")
	}
	keyCond, err := parseCondition(*in.KeyConditionExpression, in.ExpressionAttributeNames, vals)
	if err != nil {
		return nil, validationError("Invalid KeyConditionExpression: %v", err)
	}
	if !hasPartitionEquality(keyCond, view.keys.pk) {
		return nil, validationError("Query condition missed key schema element: %s", view.keys.pk)
	}

	var matched []attr.Record
	for _, item := range t.items {
		if hasIndexKeys(view.keys, item) && keyCond.eval(&env{item: item}) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return view.order(matched[i], matched[j]) < 0 })

	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	if !forward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	start, err := b.startAfter(matched, req.startKey, view, func(item, startRec attr.Record) bool {
		cmp := view.order(item, startRec)
		if forward {
			return cmp > 0
		}
		return cmp < 0
	})
	if err != nil {
		return nil, err
	}

	res, err := read(matched[start:], req, view, vals)
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            res.items,
		LastEvaluatedKey: res.last,
		Count:            res.count,
		ScannedCount:     res.scanned,
		ConsumedCapacity: res.capacity,
	}, nil
}

// Scan reads every item of the table or index, optionally one segment of it.
func (b *Backend) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Scan"); err != nil {
		return nil, err
	}

	req := readRequest{
		table:      aws.ToString(in.TableName),
		index:      aws.ToString(in.IndexName),
		filter:     in.FilterExpression,
		projection: in.ProjectionExpression,
		selectMode: in.Select,
		names:      in.ExpressionAttributeNames,
		values:     in.ExpressionAttributeValues,
		limit:      in.Limit,
		consistent: in.ConsistentRead,
		startKey:   in.ExclusiveStartKey,
		capacity:   in.ReturnConsumedCapacity,
	}
	t, view, vals, err := b.prepare(req)
	if err != nil {
		return nil, err
	}
	if (in.Segment == nil) != (in.TotalSegments == nil) {
		return nil, validationError("The Segment parameter is required but was not present in the request when parameter TotalSegments is present")
	}
	var segment, total int32
	if in.TotalSegments != nil {
		segment, total = *in.Segment, *in.TotalSegments
		if total < 1 || total > 1000000 || segment < 0 || segment >= total {
			return nil, validationError("The Segment parameter is zero-based and must be less than parameter TotalSegments: Segment: %d is not less than TotalSegments: %d", segment, total)
		}
	}

	type keyed struct {
		key  string
		item attr.Record
	}
	var matched []keyed
	for key, item := range t.items {
		if !hasIndexKeys(view.keys, item) {
			continue
		}
		if total > 0 && SegmentOf(item[view.table.pk], total) != segment {
			continue
		}
		matched = append(matched, keyed{key: key, item: item})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].key < matched[j].key })

	items := make([]attr.Record, len(matched))
	for i, m := range matched {
		items[i] = m.item
	}
	start, err := b.startAfter(items, req.startKey, view, func(item, startRec attr.Record) bool {
		a, _ := primaryKey(view.table, item)
		s, _ := primaryKey(view.table, startRec)
		return a > s
	})
	if err != nil {
		return nil, err
	}

	res, err := read(items[start:], req, view, vals)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            res.items,
		LastEvaluatedKey: res.last,
		Count:            res.count,
		ScannedCount:     res.scanned,
		ConsumedCapacity: res.capacity,
	}, nil
}

// SegmentOf returns the parallel scan segment that holds partition key pk.
func SegmentOf(pk attr.Value, total int32) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(canonical(pk)))
	return int32(h.Sum32() % uint32(total))
}

func (b *Backend) prepare(req readRequest) (*table, indexView, attr.Record, error) {
	t, err := b.active(req.table)
	if err != nil {
		return nil, indexView{}, nil, err
	}
	view, err := t.view(req.index)
	if err != nil {
		return nil, indexView{}, nil, err
	}
	if view.global && aws.ToBool(req.consistent) {
		return nil, indexView{}, nil, validationError("Consistent reads are not supported on global secondary indexes")
	}
	if req.limit != nil && *req.limit < 1 {
		return nil, indexView{}, nil, validationError("Limit must be greater than or equal to 1")
	}
	vals, err := decodeValues(req.values)
	if err != nil {
		return nil, indexView{}, nil, err
	}
	return t, view, vals, nil
}

// startAfter returns the position of the first item past the exclusive start key.
func (b *Backend) startAfter(items []attr.Record, startKey map[string]types.AttributeValue, view indexView, after func(item, start attr.Record) bool) (int, error) {
	if len(startKey) == 0 {
		return 0, nil
	}
	start, err := attr.Decode(startKey)
	if err != nil {
		return 0, validationError("The provided starting key is invalid: %v", err)
	}
	if _, err := primaryKey(view.table, start); err != nil {
		return 0, validationError("The provided starting key is invalid: %v", err)
	}
	for i, item := range items {
		if after(item, start) {
			return i, nil
		}
	}
	return len(items), nil
}

// order sorts items by the view's sort key, then by table key.
func (v indexView) order(a, b attr.Record) int {
	if v.keys.sk != "" {
		if cmp, ok := compareScalars(a[v.keys.sk], b[v.keys.sk]); ok && cmp != 0 {
			return cmp
		}
	}
	ka, _ := primaryKey(v.table, a)
	kb, _ := primaryKey(v.table, b)
	return strings.Compare(ka, kb)
}

// read applies limit, filter, projection and select to the ordered candidates.
func read(candidates []attr.Record, req readRequest, view indexView, vals attr.Record) (readResult, error) {
	var filter cond
	if req.filter != nil {
		var err error
		if filter, err = parseCondition(*req.filter, req.names, vals); err != nil {
			return readResult{}, validationError("Invalid FilterExpression: %v", err)
		}
	}

	evaluated := candidates
	more := false
	if req.limit != nil && int(*req.limit) < len(candidates) {
		evaluated = candidates[:*req.limit]
		more = true
	}

	res := readResult{
		items:   []map[string]types.AttributeValue{},
		scanned: int32(len(evaluated)),
	}
	for _, item := range evaluated {
		if filter != nil && !filter.eval(&env{item: item}) {
			continue
		}
		res.count++
		if req.selectMode == types.SelectCount {
			continue
		}
		out := view.projectIndex(item)
		if req.projection != nil {
			var err error
			if out, err = project(out, *req.projection, req.names); err != nil {
				return readResult{}, err
			}
		}
		res.items = append(res.items, encode(out))
	}
	if req.selectMode == types.SelectCount {
		res.items = nil
	}

	if more && len(evaluated) > 0 {
		res.last = encode(view.lastKey(evaluated[len(evaluated)-1]))
	}
	res.capacity = consumed(req.table, req.capacity, float64(len(evaluated))*0.5)
	return res, nil
}

// lastKey holds the table key and, for an index, the index key of item.
func (v indexView) lastKey(item attr.Record) attr.Record {
	names := []string{v.table.pk, v.table.sk, v.keys.pk, v.keys.sk}
	out := attr.Record{}
	for _, name := range names {
		if name == "" {
			continue
		}
		if val, ok := item[name]; ok {
			out[name] = val
		}
	}
	return out
}

// projectIndex restricts item to the attributes the index carries.
func (v indexView) projectIndex(item attr.Record) attr.Record {
	if v.projection == nil || v.projection.ProjectionType == types.ProjectionTypeAll {
		return item
	}
	out := v.lastKey(item)
	if v.projection.ProjectionType == types.ProjectionTypeInclude {
		for _, name := range v.projection.NonKeyAttributes {
			if val, ok := item[name]; ok {
				out[name] = val
			}
		}
	}
	return out
}

// project keeps the top-level attributes named by a projection expression.
// Nested paths keep their whole top-level attribute.
func project(item attr.Record, expr string, names map[string]string) (attr.Record, error) {
	paths, err := parseProjection(expr, names)
	if err != nil {
		return nil, validationError("Invalid ProjectionExpression: %v", err)
	}
	out := attr.Record{}
	for _, p := range paths {
		if v, ok := item[p.top()]; ok {
			out[p.top()] = v
		}
	}
	return out, nil
}

// hasPartitionEquality reports whether c constrains pk with "=".
func hasPartitionEquality(c cond, pk string) bool {
	switch c := c.(type) {
	case andCond:
		return hasPartitionEquality(c.left, pk) || hasPartitionEquality(c.right, pk)
	case compareCond:
		if c.op != "=" {
			return false
		}
		for _, side := range []operand{c.left, c.right} {
			if p, ok := side.(pathOperand); ok && len(p.path) == 1 && p.top() == pk {
				return true
			}
		}
	}
	return false
}

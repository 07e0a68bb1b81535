/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// buildCreateTableInput converts a validated descriptor into a CreateTable request.
func buildCreateTableInput(d storagemodels.TableDescriptor) *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:             aws.String(d.Name),
		AttributeDefinitions:  attributeDefinitions(d.AttributeDefinitions),
		KeySchema:             keySchemaElements(d.KeySchema),
		BillingMode:           types.BillingMode(d.EffectiveBillingMode()),
		ProvisionedThroughput: throughput(d.Throughput),
		StreamSpecification:   streamSpecification(d.Stream),
		SSESpecification:      sseSpecification(d.Encryption),
		TableClass:            types.TableClass(d.TableClass),
		Tags:                  tags(d.Tags),
	}
	if d.DeletionProtection {
		in.DeletionProtectionEnabled = aws.Bool(true)
	}

	for _, lsi := range d.LocalSecondaryIndexes {
		in.LocalSecondaryIndexes = append(in.LocalSecondaryIndexes, types.LocalSecondaryIndex{
			IndexName: aws.String(lsi.Name),
			KeySchema: keySchemaElements(storagemodels.KeySchema{
				PartitionKey: d.KeySchema.PartitionKey,
				SortKey:      lsi.SortKey,
			}),
			Projection: projection(lsi.Projection),
		})
	}
	for _, gsi := range d.GlobalSecondaryIndexes {
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:             aws.String(gsi.Name),
			KeySchema:             keySchemaElements(gsi.KeySchema),
			Projection:            projection(gsi.Projection),
			ProvisionedThroughput: throughput(gsi.Throughput),
		})
	}
	return in
}

// buildUpdateSteps computes the requests that move current to desired, in the
// order they must be sent. The store accepts one index creation or deletion per
// request and will not combine it with capacity or stream changes, so each of
// those gets its own step. An empty plan means nothing differs.
func buildUpdateSteps(current storagemodels.TableDescription, desired storagemodels.TableDescriptor) ([]*dynamodb.UpdateTableInput, error) {
	if current.KeySchema != desired.KeySchema {
		return nil, errors.NewInvalidSchemaError(desired.KeySchema.PartitionKey, "table key schema cannot change")
	}
	if !sameLocalIndexes(current.LocalSecondaryIndexes, desired.LocalSecondaryIndexes) {
		return nil, errors.NewInvalidSchemaError("", "local secondary indexes cannot change after creation")
	}

	newStep := func() *dynamodb.UpdateTableInput {
		return &dynamodb.UpdateTableInput{TableName: aws.String(desired.Name)}
	}
	var steps []*dynamodb.UpdateTableInput

	mode := desired.EffectiveBillingMode()
	creates, deletes, updates, err := indexUpdates(current.GlobalSecondaryIndexes, desired.GlobalSecondaryIndexes, mode)
	if err != nil {
		return nil, err
	}

	capacity := newStep()
	if mode != current.EffectiveBillingMode() {
		capacity.BillingMode = types.BillingMode(mode)
		capacity.ProvisionedThroughput = throughput(desired.Throughput)
	} else if mode == storagemodels.BillingProvisioned && !sameThroughput(current.Throughput, desired.Throughput) {
		capacity.ProvisionedThroughput = throughput(desired.Throughput)
	}
	capacity.GlobalSecondaryIndexUpdates = updates
	if capacity.BillingMode != "" || capacity.ProvisionedThroughput != nil || len(updates) > 0 {
		steps = append(steps, capacity)
	}

	for _, u := range deletes {
		step := newStep()
		step.GlobalSecondaryIndexUpdates = []types.GlobalSecondaryIndexUpdate{u}
		steps = append(steps, step)
	}
	for _, u := range creates {
		step := newStep()
		step.AttributeDefinitions = attributeDefinitions(desired.AttributeDefinitions)
		step.GlobalSecondaryIndexUpdates = []types.GlobalSecondaryIndexUpdate{u}
		steps = append(steps, step)
	}

	if !sameStream(current.Stream, desired.Stream) {
		step := newStep()
		step.StreamSpecification = streamSpecification(desired.Stream)
		if step.StreamSpecification == nil {
			step.StreamSpecification = &types.StreamSpecification{StreamEnabled: aws.Bool(false)}
		}
		steps = append(steps, step)
	}

	settings := newStep()
	changed := false
	if desired.Encryption != nil && !sameEncryption(current.Encryption, desired.Encryption) {
		settings.SSESpecification = sseSpecification(desired.Encryption)
		changed = true
	}
	if desired.TableClass != "" && desired.TableClass != tableClassOrDefault(current.TableClass) {
		settings.TableClass = types.TableClass(desired.TableClass)
		changed = true
	}
	if desired.DeletionProtection != current.DeletionProtection {
		settings.DeletionProtectionEnabled = aws.Bool(desired.DeletionProtection)
		changed = true
	}
	if changed {
		steps = append(steps, settings)
	}
	return steps, nil
}

// indexUpdates splits the global index delta into creations, deletions and
// throughput updates. Deletions are ordered by name.
func indexUpdates(current, desired []storagemodels.GlobalSecondaryIndex, mode storagemodels.BillingMode) (creates, deletes, updates []types.GlobalSecondaryIndexUpdate, err error) {
	existing := make(map[string]storagemodels.GlobalSecondaryIndex, len(current))
	for _, gsi := range current {
		existing[gsi.Name] = gsi
	}
	wanted := make(map[string]bool, len(desired))

	for _, gsi := range desired {
		wanted[gsi.Name] = true
		old, ok := existing[gsi.Name]
		if !ok {
			creates = append(creates, types.GlobalSecondaryIndexUpdate{
				Create: &types.CreateGlobalSecondaryIndexAction{
					IndexName:             aws.String(gsi.Name),
					KeySchema:             keySchemaElements(gsi.KeySchema),
					Projection:            projection(gsi.Projection),
					ProvisionedThroughput: throughput(gsi.Throughput),
				},
			})
			continue
		}
		if old.KeySchema != gsi.KeySchema || !sameProjection(old.Projection, gsi.Projection) {
			return nil, nil, nil, errors.NewInvalidSchemaError(gsi.Name, "index key schema and projection cannot change; create a new index")
		}
		if mode == storagemodels.BillingProvisioned && gsi.Throughput != nil && !sameThroughput(old.Throughput, gsi.Throughput) {
			updates = append(updates, types.GlobalSecondaryIndexUpdate{
				Update: &types.UpdateGlobalSecondaryIndexAction{
					IndexName:             aws.String(gsi.Name),
					ProvisionedThroughput: throughput(gsi.Throughput),
				},
			})
		}
	}

	names := make([]string, 0, len(existing))
	for name := range existing {
		if !wanted[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		deletes = append(deletes, types.GlobalSecondaryIndexUpdate{
			Delete: &types.DeleteGlobalSecondaryIndexAction{IndexName: aws.String(name)},
		})
	}
	return creates, deletes, updates, nil
}

// describeTable converts the store's description into the package model.
func describeTable(t *types.TableDescription) (storagemodels.TableDescription, error) {
	if t == nil {
		return storagemodels.TableDescription{}, errors.NewMalformedAttributeError("Table", "missing table description")
	}
	out := storagemodels.TableDescription{
		TableDescriptor: storagemodels.TableDescriptor{
			Name:        aws.ToString(t.TableName),
			KeySchema:   fromKeySchemaElements(t.KeySchema),
			BillingMode: storagemodels.BillingProvisioned,
		},
		Status:    t.TableStatus,
		ItemCount: aws.ToInt64(t.ItemCount),
		SizeBytes: aws.ToInt64(t.TableSizeBytes),
		ARN:       aws.ToString(t.TableArn),
	}
	if t.CreationDateTime != nil {
		out.CreatedAt = strfmt.DateTime(*t.CreationDateTime)
	}

	for _, def := range t.AttributeDefinitions {
		out.AttributeDefinitions = append(out.AttributeDefinitions, storagemodels.AttributeDefinition{
			Name: aws.ToString(def.AttributeName),
			Type: storagemodels.ScalarType(def.AttributeType),
		})
	}
	if t.BillingModeSummary != nil && t.BillingModeSummary.BillingMode != "" {
		out.BillingMode = storagemodels.BillingMode(t.BillingModeSummary.BillingMode)
	}
	if out.BillingMode == storagemodels.BillingProvisioned {
		out.Throughput = fromThroughputDescription(t.ProvisionedThroughput)
	}

	for _, lsi := range t.LocalSecondaryIndexes {
		out.LocalSecondaryIndexes = append(out.LocalSecondaryIndexes, storagemodels.LocalSecondaryIndex{
			Name:       aws.ToString(lsi.IndexName),
			SortKey:    fromKeySchemaElements(lsi.KeySchema).SortKey,
			Projection: fromProjection(lsi.Projection),
		})
	}
	for _, gsi := range t.GlobalSecondaryIndexes {
		index := storagemodels.GlobalSecondaryIndex{
			Name:       aws.ToString(gsi.IndexName),
			KeySchema:  fromKeySchemaElements(gsi.KeySchema),
			Projection: fromProjection(gsi.Projection),
		}
		if out.BillingMode == storagemodels.BillingProvisioned {
			index.Throughput = fromThroughputDescription(gsi.ProvisionedThroughput)
		}
		out.GlobalSecondaryIndexes = append(out.GlobalSecondaryIndexes, index)
	}

	if s := t.StreamSpecification; s != nil && aws.ToBool(s.StreamEnabled) {
		out.Stream = &storagemodels.StreamSettings{Enabled: true, ViewType: string(s.StreamViewType)}
	}
	if s := t.SSEDescription; s != nil && s.Status == types.SSEStatusEnabled {
		out.Encryption = &storagemodels.EncryptionSettings{
			Enabled:  true,
			Type:     string(s.SSEType),
			KMSKeyID: aws.ToString(s.KMSMasterKeyArn),
		}
	}
	if t.TableClassSummary != nil {
		out.TableClass = string(t.TableClassSummary.TableClass)
	}
	out.DeletionProtection = aws.ToBool(t.DeletionProtectionEnabled)
	return out, nil
}

func attributeDefinitions(defs []storagemodels.AttributeDefinition) []types.AttributeDefinition {
	out := make([]types.AttributeDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, types.AttributeDefinition{
			AttributeName: aws.String(def.Name),
			AttributeType: types.ScalarAttributeType(def.Type),
		})
	}
	return out
}

func keySchemaElements(k storagemodels.KeySchema) []types.KeySchemaElement {
	out := []types.KeySchemaElement{{AttributeName: aws.String(k.PartitionKey), KeyType: types.KeyTypeHash}}
	if k.SortKey != "" {
		out = append(out, types.KeySchemaElement{AttributeName: aws.String(k.SortKey), KeyType: types.KeyTypeRange})
	}
	return out
}

func fromKeySchemaElements(elems []types.KeySchemaElement) storagemodels.KeySchema {
	var k storagemodels.KeySchema
	for _, e := range elems {
		switch e.KeyType {
		case types.KeyTypeHash:
			k.PartitionKey = aws.ToString(e.AttributeName)
		case types.KeyTypeRange:
			k.SortKey = aws.ToString(e.AttributeName)
		}
	}
	return k
}

func projection(p storagemodels.Projection) *types.Projection {
	kind := p.Type
	if kind == "" {
		kind = storagemodels.ProjectAll
	}
	out := &types.Projection{ProjectionType: types.ProjectionType(kind)}
	if kind == storagemodels.ProjectInclude {
		out.NonKeyAttributes = p.NonKeyAttributes
	}
	return out
}

func fromProjection(p *types.Projection) storagemodels.Projection {
	if p == nil {
		return storagemodels.Projection{Type: storagemodels.ProjectAll}
	}
	return storagemodels.Projection{
		Type:             storagemodels.ProjectionType(p.ProjectionType),
		NonKeyAttributes: p.NonKeyAttributes,
	}
}

func throughput(t *storagemodels.Throughput) *types.ProvisionedThroughput {
	if t == nil {
		return nil
	}
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(t.ReadCapacityUnits),
		WriteCapacityUnits: aws.Int64(t.WriteCapacityUnits),
	}
}

// fromThroughputDescription treats zero capacity, which the store reports for
// on-demand tables, as no throughput.
func fromThroughputDescription(t *types.ProvisionedThroughputDescription) *storagemodels.Throughput {
	if t == nil || (aws.ToInt64(t.ReadCapacityUnits) == 0 && aws.ToInt64(t.WriteCapacityUnits) == 0) {
		return nil
	}
	return &storagemodels.Throughput{
		ReadCapacityUnits:  aws.ToInt64(t.ReadCapacityUnits),
		WriteCapacityUnits: aws.ToInt64(t.WriteCapacityUnits),
	}
}

func streamSpecification(s *storagemodels.StreamSettings) *types.StreamSpecification {
	if s == nil {
		return nil
	}
	out := &types.StreamSpecification{StreamEnabled: aws.Bool(s.Enabled)}
	if s.Enabled {
		view := s.ViewType
		if view == "" {
			view = string(types.StreamViewTypeNewAndOldImages)
		}
		out.StreamViewType = types.StreamViewType(view)
	}
	return out
}

func sseSpecification(e *storagemodels.EncryptionSettings) *types.SSESpecification {
	if e == nil {
		return nil
	}
	out := &types.SSESpecification{Enabled: aws.Bool(e.Enabled)}
	if e.Enabled {
		out.SSEType = types.SSEType(e.Type)
		if e.KMSKeyID != "" {
			out.KMSMasterKeyId = aws.String(e.KMSKeyID)
		}
	}
	return out
}

func tags(in map[string]string) []types.Tag {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(in[k])})
	}
	return out
}

func sameThroughput(a, b *storagemodels.Throughput) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameProjection(a, b storagemodels.Projection) bool {
	pa, pb := projection(a), projection(b)
	if pa.ProjectionType != pb.ProjectionType || len(pa.NonKeyAttributes) != len(pb.NonKeyAttributes) {
		return false
	}
	seen := make(map[string]bool, len(pa.NonKeyAttributes))
	for _, name := range pa.NonKeyAttributes {
		seen[name] = true
	}
	for _, name := range pb.NonKeyAttributes {
		if !seen[name] {
			return false
		}
	}
	return true
}

func sameLocalIndexes(a, b []storagemodels.LocalSecondaryIndex) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string]storagemodels.LocalSecondaryIndex, len(a))
	for _, lsi := range a {
		byName[lsi.Name] = lsi
	}
	for _, lsi := range b {
		old, ok := byName[lsi.Name]
		if !ok || old.SortKey != lsi.SortKey || !sameProjection(old.Projection, lsi.Projection) {
			return false
		}
	}
	return true
}

func sameStream(current, desired *storagemodels.StreamSettings) bool {
	enabled := func(s *storagemodels.StreamSettings) bool { return s != nil && s.Enabled }
	if enabled(current) != enabled(desired) {
		return false
	}
	if !enabled(desired) {
		return true
	}
	return streamSpecification(current).StreamViewType == streamSpecification(desired).StreamViewType
}

func sameEncryption(current, desired *storagemodels.EncryptionSettings) bool {
	if current == nil {
		return !desired.Enabled
	}
	if current.Enabled != desired.Enabled {
		return false
	}
	if desired.Type != "" && desired.Type != current.Type {
		return false
	}
	return desired.KMSKeyID == "" || desired.KMSKeyID == current.KMSKeyID
}

func tableClassOrDefault(class string) string {
	if class == "" {
		return string(types.TableClassStandard)
	}
	return class
}

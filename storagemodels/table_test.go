/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"testing"

	"github.com/suparena/recordstore/errors"
	"gopkg.in/yaml.v3"
)

func validDescriptor() TableDescriptor {
	return TableDescriptor{
		Name: "pages",
		AttributeDefinitions: []AttributeDefinition{
			{Name: "id", Type: ScalarString},
			{Name: "version", Type: ScalarNumber},
			{Name: "location", Type: ScalarString},
		},
		KeySchema: KeySchema{PartitionKey: "id", SortKey: "version"},
		GlobalSecondaryIndexes: []GlobalSecondaryIndex{
			{Name: "by-location", KeySchema: KeySchema{PartitionKey: "location"}},
		},
		BillingMode: BillingOnDemand,
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *TableDescriptor)
		check  func(error) bool
	}{
		{
			name:   "valid on-demand",
			mutate: func(d *TableDescriptor) {},
			check:  func(err error) bool { return err == nil },
		},
		{
			name: "valid provisioned",
			mutate: func(d *TableDescriptor) {
				d.BillingMode = BillingProvisioned
				d.Throughput = &Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5}
				d.GlobalSecondaryIndexes[0].Throughput = &Throughput{ReadCapacityUnits: 1, WriteCapacityUnits: 1}
			},
			check: func(err error) bool { return err == nil },
		},
		{
			name: "partition key not defined",
			mutate: func(d *TableDescriptor) {
				d.KeySchema.PartitionKey = "missing"
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "sort key not defined",
			mutate: func(d *TableDescriptor) {
				d.AttributeDefinitions = d.AttributeDefinitions[:1]
				d.GlobalSecondaryIndexes = nil
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "unused attribute definition",
			mutate: func(d *TableDescriptor) {
				d.AttributeDefinitions = append(d.AttributeDefinitions, AttributeDefinition{Name: "extra", Type: ScalarString})
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "local index without table sort key",
			mutate: func(d *TableDescriptor) {
				d.KeySchema.SortKey = ""
				d.LocalSecondaryIndexes = []LocalSecondaryIndex{{Name: "by-version", SortKey: "version"}}
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "duplicate index name",
			mutate: func(d *TableDescriptor) {
				d.LocalSecondaryIndexes = []LocalSecondaryIndex{{Name: "by-location", SortKey: "location"}}
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "include projection without attributes",
			mutate: func(d *TableDescriptor) {
				d.GlobalSecondaryIndexes[0].Projection = Projection{Type: ProjectInclude}
			},
			check: errors.IsInvalidSchema,
		},
		{
			name: "provisioned without throughput",
			mutate: func(d *TableDescriptor) {
				d.BillingMode = BillingProvisioned
			},
			check: errors.IsThroughputConfig,
		},
		{
			name: "default mode is provisioned",
			mutate: func(d *TableDescriptor) {
				d.BillingMode = ""
			},
			check: errors.IsThroughputConfig,
		},
		{
			name: "provisioned index without throughput",
			mutate: func(d *TableDescriptor) {
				d.BillingMode = BillingProvisioned
				d.Throughput = &Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5}
			},
			check: errors.IsThroughputConfig,
		},
		{
			name: "on-demand with throughput",
			mutate: func(d *TableDescriptor) {
				d.Throughput = &Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5}
			},
			check: errors.IsThroughputConfig,
		},
		{
			name: "bad attribute type",
			mutate: func(d *TableDescriptor) {
				d.AttributeDefinitions[0].Type = "BOOL"
			},
			check: errors.IsValidationError,
		},
		{
			name: "short table name",
			mutate: func(d *TableDescriptor) {
				d.Name = "ab"
			},
			check: errors.IsValidationError,
		},
		{
			name: "zero capacity",
			mutate: func(d *TableDescriptor) {
				d.BillingMode = BillingProvisioned
				d.Throughput = &Throughput{ReadCapacityUnits: 0, WriteCapacityUnits: 5}
			},
			check: errors.IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(&d)
			err := d.Validate()
			if !tt.check(err) {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	d := validDescriptor()
	d.AttributeDefinitions[1].Type = "X"

	err := d.Validate()
	var ve *errors.ValidationError
	if !asValidation(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if ve.Field != "AttributeDefinitions[1].Type" {
		t.Errorf("Unexpected field %q", ve.Field)
	}
}

func asValidation(err error, target **errors.ValidationError) bool {
	ve, ok := err.(*errors.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

func TestDescriptorFromYAML(t *testing.T) {
	src := `
name: folders
attributes:
  - name: id
    type: S
  - name: parent
    type: S
key_schema:
  partition_key: id
global_indexes:
  - name: by-parent
    key_schema:
      partition_key: parent
    projection:
      type: KEYS_ONLY
billing_mode: PAY_PER_REQUEST
stream:
  enabled: true
  view_type: NEW_AND_OLD_IMAGES
deletion_protection: true
tags:
  team: content
`
	var d TableDescriptor
	if err := yaml.Unmarshal([]byte(src), &d); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if d.GlobalSecondaryIndexes[0].Projection.Type != ProjectKeysOnly {
		t.Errorf("Unexpected projection %q", d.GlobalSecondaryIndexes[0].Projection.Type)
	}
	if !d.Stream.Enabled || !d.DeletionProtection || d.Tags["team"] != "content" {
		t.Errorf("Unexpected descriptor %+v", d)
	}
	if got := d.KeySchema.Attributes(); len(got) != 1 || got[0] != "id" {
		t.Errorf("Unexpected key attributes %v", got)
	}
}

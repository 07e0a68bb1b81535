/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"
	"github.com/go-playground/validator/v10"
	"github.com/suparena/recordstore/errors"
)

// BillingMode selects provisioned or on-demand capacity.
type BillingMode string

const (
	BillingProvisioned BillingMode = "PROVISIONED"
	BillingOnDemand    BillingMode = "PAY_PER_REQUEST"
)

// ScalarType is the type of a key attribute.
type ScalarType string

const (
	ScalarString ScalarType = "S"
	ScalarNumber ScalarType = "N"
	ScalarBinary ScalarType = "B"
)

// ProjectionType selects which attributes an index carries.
type ProjectionType string

const (
	ProjectAll      ProjectionType = "ALL"
	ProjectKeysOnly ProjectionType = "KEYS_ONLY"
	ProjectInclude  ProjectionType = "INCLUDE"
)

// AttributeDefinition declares the type of an attribute used in a key schema.
type AttributeDefinition struct {
	Name string     `yaml:"name" json:"name" validate:"required"`
	Type ScalarType `yaml:"type" json:"type" validate:"required,oneof=S N B"`
}

// KeySchema names the partition key and the optional sort key.
type KeySchema struct {
	PartitionKey string `yaml:"partition_key" json:"partitionKey" validate:"required"`
	SortKey      string `yaml:"sort_key,omitempty" json:"sortKey,omitempty"`
}

// Attributes returns the key attribute names, partition key first.
func (k KeySchema) Attributes() []string {
	if k.SortKey == "" {
		return []string{k.PartitionKey}
	}
	return []string{k.PartitionKey, k.SortKey}
}

// Throughput holds provisioned capacity units.
type Throughput struct {
	ReadCapacityUnits  int64 `yaml:"read" json:"read" validate:"gte=1"`
	WriteCapacityUnits int64 `yaml:"write" json:"write" validate:"gte=1"`
}

// Projection describes the attributes copied into an index. An empty Type means ALL.
type Projection struct {
	Type             ProjectionType `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=ALL KEYS_ONLY INCLUDE"`
	NonKeyAttributes []string       `yaml:"non_key_attributes,omitempty" json:"nonKeyAttributes,omitempty"`
}

// LocalSecondaryIndex shares the table's partition key with a different sort key.
type LocalSecondaryIndex struct {
	Name       string     `yaml:"name" json:"name" validate:"required,min=3,max=255"`
	SortKey    string     `yaml:"sort_key" json:"sortKey" validate:"required"`
	Projection Projection `yaml:"projection,omitempty" json:"projection,omitempty"`
}

// GlobalSecondaryIndex has its own key schema and, in provisioned mode, its own throughput.
type GlobalSecondaryIndex struct {
	Name       string      `yaml:"name" json:"name" validate:"required,min=3,max=255"`
	KeySchema  KeySchema   `yaml:"key_schema" json:"keySchema"`
	Projection Projection  `yaml:"projection,omitempty" json:"projection,omitempty"`
	Throughput *Throughput `yaml:"throughput,omitempty" json:"throughput,omitempty"`
}

// StreamSettings configures the table's change stream.
type StreamSettings struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	ViewType string `yaml:"view_type,omitempty" json:"viewType,omitempty" validate:"omitempty,oneof=KEYS_ONLY NEW_IMAGE OLD_IMAGE NEW_AND_OLD_IMAGES"`
}

// EncryptionSettings configures server-side encryption.
type EncryptionSettings struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=AES256 KMS"`
	KMSKeyID string `yaml:"kms_key_id,omitempty" json:"kmsKeyId,omitempty"`
}

// TableDescriptor is the full desired shape of a table. Updates take a complete
// descriptor, never a partial patch.
type TableDescriptor struct {
	Name                   string                 `yaml:"name" json:"name" validate:"required,min=3,max=255"`
	AttributeDefinitions   []AttributeDefinition  `yaml:"attributes" json:"attributes" validate:"required,min=1,dive"`
	KeySchema              KeySchema              `yaml:"key_schema" json:"keySchema"`
	LocalSecondaryIndexes  []LocalSecondaryIndex  `yaml:"local_indexes,omitempty" json:"localIndexes,omitempty" validate:"max=5,dive"`
	GlobalSecondaryIndexes []GlobalSecondaryIndex `yaml:"global_indexes,omitempty" json:"globalIndexes,omitempty" validate:"max=20,dive"`
	BillingMode            BillingMode            `yaml:"billing_mode,omitempty" json:"billingMode,omitempty" validate:"omitempty,oneof=PROVISIONED PAY_PER_REQUEST"`
	Throughput             *Throughput            `yaml:"throughput,omitempty" json:"throughput,omitempty"`
	Stream                 *StreamSettings        `yaml:"stream,omitempty" json:"stream,omitempty"`
	Encryption             *EncryptionSettings    `yaml:"encryption,omitempty" json:"encryption,omitempty"`
	TableClass             string                 `yaml:"table_class,omitempty" json:"tableClass,omitempty" validate:"omitempty,oneof=STANDARD STANDARD_INFREQUENT_ACCESS"`
	DeletionProtection     bool                   `yaml:"deletion_protection,omitempty" json:"deletionProtection,omitempty"`
	Tags                   map[string]string      `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// EffectiveBillingMode returns the billing mode, defaulting to provisioned as the store does.
func (d *TableDescriptor) EffectiveBillingMode() BillingMode {
	if d.BillingMode == "" {
		return BillingProvisioned
	}
	return d.BillingMode
}

// AttributeType returns the declared type of name.
func (d *TableDescriptor) AttributeType(name string) (ScalarType, bool) {
	for _, def := range d.AttributeDefinitions {
		if def.Name == name {
			return def.Type, true
		}
	}
	return "", false
}

// TableDescription is a descriptor as reported by the store, plus its runtime state.
type TableDescription struct {
	TableDescriptor `yaml:",inline"`

	Status    types.TableStatus `json:"status"`
	ItemCount int64             `json:"itemCount"`
	SizeBytes int64             `json:"sizeBytes"`
	ARN       string            `json:"arn,omitempty"`
	CreatedAt strfmt.DateTime   `json:"createdAt"`
}

// Active reports whether the table accepts item operations and updates.
func (d *TableDescription) Active() bool {
	return d.Status == types.TableStatusActive
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the descriptor's fields and the consistency of its key schema
// and billing settings. Field problems are ValidationErrors; key schema problems
// are InvalidSchemaErrors; billing problems are ThroughputConfigErrors.
func (d *TableDescriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fieldError(err)
	}
	if err := d.validateSchema(); err != nil {
		return err
	}
	return d.validateThroughput()
}

func (d *TableDescriptor) validateSchema() error {
	defined := make(map[string]bool, len(d.AttributeDefinitions))
	for _, def := range d.AttributeDefinitions {
		if _, dup := defined[def.Name]; dup {
			return errors.NewInvalidSchemaError(def.Name, "attribute defined more than once")
		}
		defined[def.Name] = false
	}

	use := func(name, role string) error {
		if name == "" {
			return nil
		}
		if _, ok := defined[name]; !ok {
			return errors.NewInvalidSchemaError(name, role+" is not listed in attribute definitions")
		}
		defined[name] = true
		return nil
	}

	if err := use(d.KeySchema.PartitionKey, "partition key"); err != nil {
		return err
	}
	if err := use(d.KeySchema.SortKey, "sort key"); err != nil {
		return err
	}

	indexNames := make(map[string]bool)
	for _, lsi := range d.LocalSecondaryIndexes {
		if d.KeySchema.SortKey == "" {
			return errors.NewInvalidSchemaError(lsi.Name, "local indexes require a table sort key")
		}
		if indexNames[lsi.Name] {
			return errors.NewInvalidSchemaError(lsi.Name, "duplicate index name")
		}
		indexNames[lsi.Name] = true
		if err := use(lsi.SortKey, "local index "+lsi.Name+" sort key"); err != nil {
			return err
		}
		if err := checkProjection(lsi.Name, lsi.Projection); err != nil {
			return err
		}
	}
	for _, gsi := range d.GlobalSecondaryIndexes {
		if indexNames[gsi.Name] {
			return errors.NewInvalidSchemaError(gsi.Name, "duplicate index name")
		}
		indexNames[gsi.Name] = true
		if gsi.KeySchema.PartitionKey == "" {
			return errors.NewInvalidSchemaError(gsi.Name, "global index requires a partition key")
		}
		if err := use(gsi.KeySchema.PartitionKey, "global index "+gsi.Name+" partition key"); err != nil {
			return err
		}
		if err := use(gsi.KeySchema.SortKey, "global index "+gsi.Name+" sort key"); err != nil {
			return err
		}
		if err := checkProjection(gsi.Name, gsi.Projection); err != nil {
			return err
		}
	}

	for _, def := range d.AttributeDefinitions {
		if !defined[def.Name] {
			return errors.NewInvalidSchemaError(def.Name, "attribute definition is not used by any key schema")
		}
	}
	return nil
}

func checkProjection(index string, p Projection) error {
	if p.Type == ProjectInclude && len(p.NonKeyAttributes) == 0 {
		return errors.NewInvalidSchemaError(index, "INCLUDE projection requires non-key attributes")
	}
	if p.Type != ProjectInclude && len(p.NonKeyAttributes) > 0 {
		return errors.NewInvalidSchemaError(index, "non-key attributes are only allowed with INCLUDE projection")
	}
	return nil
}

func (d *TableDescriptor) validateThroughput() error {
	mode := d.EffectiveBillingMode()
	switch mode {
	case BillingProvisioned:
		if d.Throughput == nil {
			return errors.NewThroughputConfigError(string(mode), "provisioned mode requires table throughput")
		}
		for _, gsi := range d.GlobalSecondaryIndexes {
			if gsi.Throughput == nil {
				return errors.NewThroughputConfigError(string(mode), fmt.Sprintf("provisioned mode requires throughput for index %q", gsi.Name))
			}
		}
	case BillingOnDemand:
		if d.Throughput != nil {
			return errors.NewThroughputConfigError(string(mode), "on-demand mode must omit table throughput")
		}
		for _, gsi := range d.GlobalSecondaryIndexes {
			if gsi.Throughput != nil {
				return errors.NewThroughputConfigError(string(mode), fmt.Sprintf("on-demand mode must omit throughput for index %q", gsi.Name))
			}
		}
	}
	return nil
}

func fieldError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &errors.ValidationError{Message: err.Error(), Err: err}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	msg := fmt.Sprintf("failed %q constraint", fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param())
	}
	return &errors.ValidationError{Field: field, Message: msg, Err: err}
}


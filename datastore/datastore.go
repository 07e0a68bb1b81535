/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/storagemodels"
)

// TableManager creates, alters, drops and lists tables.
type TableManager interface {
	CreateTable(ctx context.Context, desc storagemodels.TableDescriptor) error

	UpdateTable(ctx context.Context, desc storagemodels.TableDescriptor) error

	DeleteTable(ctx context.Context, name string) error

	ListTables(ctx context.Context) ([]string, error)
}

// ItemStore reads and writes records in a table.
type ItemStore interface {
	PutItem(ctx context.Context, table string, item attr.Record, opts *storagemodels.PutOptions) (*storagemodels.PutResult, error)

	DeleteItem(ctx context.Context, table string, key attr.Record, opts *storagemodels.DeleteOptions) (*storagemodels.DeleteResult, error)

	GetItem(ctx context.Context, table string, key attr.Record, opts *storagemodels.GetOptions) (*storagemodels.GetResult, error)

	QueryTable(ctx context.Context, table string, opts *storagemodels.QueryOptions) (*storagemodels.Page, error)

	ScanTable(ctx context.Context, table string, opts *storagemodels.ScanOptions) (*storagemodels.Page, error)
}

// Store is the full contract consumed by resolver layers.
type Store interface {
	TableManager
	ItemStore
}

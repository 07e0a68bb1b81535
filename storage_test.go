/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package recordstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore"
	"github.com/suparena/recordstore/config"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/datastore/mock"
	"github.com/suparena/recordstore/registry"
	"github.com/suparena/recordstore/storagemodels"
)

func notesTable() storagemodels.TableDescriptor {
	return storagemodels.TableDescriptor{
		Name: "notes",
		AttributeDefinitions: []storagemodels.AttributeDefinition{
			{Name: "id", Type: storagemodels.ScalarString},
		},
		KeySchema:   storagemodels.KeySchema{PartitionKey: "id"},
		BillingMode: storagemodels.BillingOnDemand,
	}
}

func TestEnsureTables(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.TablePrefix = "test-"

	tables := registry.NewTables()
	require.NoError(t, tables.Register(notesTable()))

	backend := mock.New()
	log, hook := test.NewNullLogger()
	s, err := recordstore.Open(cfg,
		recordstore.WithTables(tables),
		recordstore.WithLogger(log),
		recordstore.WithClient(config.DefaultConnection, ddb.New(backend, ddb.WithWaitDelay(time.Millisecond))),
	)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EnsureTables(ctx))
	require.NoError(t, s.EnsureTables(ctx), "ensuring twice is harmless")

	client, err := s.Client(ctx, "")
	require.NoError(t, err)
	names, err := client.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"test-notes"}, names)
	assert.Equal(t, "test-notes", s.TableName("notes"))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "table ready", hook.LastEntry().Message)
}

func TestClientUnknownConnection(t *testing.T) {
	s, err := recordstore.Open(config.Default(), recordstore.WithTables(registry.NewTables()))
	require.NoError(t, err)

	_, err = s.Client(context.Background(), "reporting")
	assert.ErrorContains(t, err, `connection "reporting" is not configured`)
}

func TestClientConnectsOnce(t *testing.T) {
	cfg := config.Default()
	cfg.Connections["local"] = ddb.Connection{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:8000",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
	}
	s, err := recordstore.Open(cfg, recordstore.WithTables(registry.NewTables()))
	require.NoError(t, err)

	first, err := s.Client(context.Background(), "local")
	require.NoError(t, err)
	second, err := s.Client(context.Background(), "local")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestOpenLoadsTablesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte(`
name: notes
attributes:
  - name: id
    type: S
key_schema:
  partition_key: id
billing_mode: PAY_PER_REQUEST
`), 0o600))

	cfg := config.Default()
	cfg.TablesDir = dir
	tables := registry.NewTables()
	_, err := recordstore.Open(cfg, recordstore.WithTables(tables))
	require.NoError(t, err)

	_, ok := tables.Get("notes")
	assert.True(t, ok)

	cfg.TablesDir = filepath.Join(dir, "absent")
	_, err = recordstore.Open(cfg, recordstore.WithTables(registry.NewTables()))
	assert.Error(t, err)
}

func TestOpenRejectsBadLogConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	_, err := recordstore.Open(cfg, recordstore.WithTables(registry.NewTables()))
	assert.ErrorContains(t, err, "invalid log level")
}

func TestVersionInfo(t *testing.T) {
	info := recordstore.GetVersionInfo()
	assert.Equal(t, recordstore.Version, info.Version)
	assert.NotEmpty(t, info.GitCommit)
}

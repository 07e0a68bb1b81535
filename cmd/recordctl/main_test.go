/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/recordstore"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/config"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/datastore/mock"
	"github.com/suparena/recordstore/registry"
)

const eventsYAML = `
name: events
attributes:
  - name: pk
    type: S
  - name: sk
    type: N
key_schema:
  partition_key: pk
  sort_key: sk
billing_mode: PAY_PER_REQUEST
`

type cli func(args ...string) (code int, stdout, stderr string)

func newCLI(t *testing.T) cli {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	client := ddb.New(mock.New(), ddb.WithWaitDelay(time.Millisecond))
	log, _ := test.NewNullLogger()
	return func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, &stdout, &stderr,
			recordstore.WithClient(config.DefaultConnection, client),
			recordstore.WithLogger(log),
			recordstore.WithTables(registry.NewTables()),
		)
		return code, stdout.String(), stderr.String()
	}
}

func createEvents(t *testing.T, run cli) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(eventsYAML), 0o600))
	code, out, errOut := run("tables", "create", "-f", path, "-wait")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "events: created\n", out)
}

// pageOutput items are indented by the page encoder, so they are compared
// after decoding rather than as text.
func pageItem(t *testing.T, page pageOutput, i int) attr.Record {
	t.Helper()
	rec, err := attr.UnmarshalWireJSON(page.Items[i])
	require.NoError(t, err)
	return rec
}

func TestVersionFlag(t *testing.T) {
	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &stdout, &bytes.Buffer{})
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "RecordStore recordctl version "+recordstore.Version)
}

func TestUsageErrors(t *testing.T) {
	run := newCLI(t)

	code, _, errOut := run()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: recordctl")

	code, _, errOut = run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, _, errOut = run("get", "-key", `{"pk":{"S":"a"}}`)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "-table is required")
}

func TestTables(t *testing.T) {
	run := newCLI(t)
	createEvents(t, run)

	code, out, _ := run("tables", "list")
	require.Equal(t, 0, code)
	assert.Equal(t, "events\n", out)

	code, out, _ = run("tables", "describe", "events")
	require.Equal(t, 0, code)
	var desc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "ACTIVE", desc["status"])

	code, _, errOut := run("tables", "describe", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing")

	code, out, errOut = run("tables", "delete", "-wait", "events")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "events: deleted\n", out)

	_, out, _ = run("tables", "list")
	assert.Empty(t, out)
}

func TestItemCommands(t *testing.T) {
	run := newCLI(t)
	createEvents(t, run)

	for _, sk := range []string{"1", "2", "3"} {
		code, _, errOut := run("put", "-table", "events", "-item", `{"pk":{"S":"user#1"},"sk":{"N":"`+sk+`"},"score":{"N":"1.50"}}`)
		require.Equal(t, 0, code, errOut)
	}

	code, out, errOut := run("get", "-table", "events", "-key", `{"pk":{"S":"user#1"},"sk":{"N":"2"}}`)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"score":{"N":"1.50"}`)

	code, _, errOut = run("put", "-table", "events",
		"-item", `{"pk":{"S":"user#1"},"sk":{"N":"2"}}`,
		"-condition", "attribute_not_exists(pk)")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "condition")

	code, out, errOut = run("query", "-table", "events",
		"-key-condition", "pk = :pk",
		"-values", `{":pk":{"S":"user#1"}}`,
		"-limit", "1", "-desc")
	require.Equal(t, 0, code, errOut)
	var page pageOutput
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, attr.Number("3"), pageItem(t, page, 0)["sk"])
	assert.NotEmpty(t, page.Cursor)

	code, out, errOut = run("query", "-table", "events",
		"-key-condition", "pk = :pk",
		"-values", `{":pk":{"S":"user#1"}}`,
		"-limit", "1", "-desc", "-cursor", page.Cursor)
	require.Equal(t, 0, code, errOut)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, attr.Number("2"), pageItem(t, page, 0)["sk"])
	assert.Equal(t, attr.Number("1.50"), pageItem(t, page, 0)["score"])

	code, _, errOut = run("delete", "-table", "events", "-key", `{"pk":{"S":"user#1"},"sk":{"N":"2"}}`)
	require.Equal(t, 0, code, errOut)
	code, _, errOut = run("get", "-table", "events", "-key", `{"pk":{"S":"user#1"},"sk":{"N":"2"}}`)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "item not found")

	code, out, errOut = run("query", "-table", "events", "-all",
		"-key-condition", "pk = :pk",
		"-values", `{":pk":{"S":"user#1"}}`)
	require.Equal(t, 0, code, errOut)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestParallelScan(t *testing.T) {
	run := newCLI(t)
	createEvents(t, run)

	for p := 0; p < 4; p++ {
		for i := 1; i <= 5; i++ {
			item := map[string]any{"pk": "user#" + string(rune('a'+p)), "sk": i}
			data, err := json.Marshal(item)
			require.NoError(t, err)
			code, _, errOut := run("-plain", "put", "-table", "events", "-item", string(data))
			require.Equal(t, 0, code, errOut)
		}
	}

	code, out, errOut := run("scan", "-table", "events", "-segments", "4")
	require.Equal(t, 0, code, errOut)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 20)

	code, _, errOut = run("scan", "-table", "events", "-segments", "1000001")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "segments")
}

func TestPlainItems(t *testing.T) {
	run := newCLI(t)
	createEvents(t, run)

	path := filepath.Join(t.TempDir(), "item.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pk":"user#1","sk":7,"price":12.50,"tags":[],"meta":{}}`), 0o600))
	code, _, errOut := run("-plain", "put", "-table", "events", "-item", "@"+path)
	require.Equal(t, 0, code, errOut)

	code, out, errOut := run("-plain", "get", "-table", "events", "-key", `{"pk":"user#1","sk":7}`)
	require.Equal(t, 0, code, errOut)
	var item map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "user#1", item["pk"])
	assert.Equal(t, []any{}, item["tags"])
	assert.Equal(t, map[string]any{}, item["meta"])
	assert.Contains(t, out, `"price":12.50`)
}

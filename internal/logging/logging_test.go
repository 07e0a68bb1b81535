/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.log")

	log, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	log.WithFields(logrus.Fields{"op": "PutItem", "table": "pages"}).Debug("request completed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "PutItem", entry["op"])
	assert.Equal(t, "pages", entry["table"])
	assert.Equal(t, "debug", entry["level"])
}

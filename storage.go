/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package recordstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/suparena/recordstore/config"
	"github.com/suparena/recordstore/datastore/ddb"
	"github.com/suparena/recordstore/internal/logging"
	"github.com/suparena/recordstore/internal/metrics"
	"github.com/suparena/recordstore/registry"
)

// Storage manages the store clients of a process, one per named connection,
// together with the tables the process declares.
type Storage struct {
	cfg     *config.Config
	log     logrus.FieldLogger
	metrics metrics.Provider
	tables  *registry.Tables

	mu      sync.RWMutex
	clients map[string]*ddb.Client
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger overrides the logger built from the config.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Storage) {
		s.log = log
	}
}

// WithMetrics overrides the metrics provider built from the config.
func WithMetrics(p metrics.Provider) Option {
	return func(s *Storage) {
		s.metrics = p
	}
}

// WithTables uses tables instead of the process-wide table registry.
func WithTables(tables *registry.Tables) Option {
	return func(s *Storage) {
		s.tables = tables
	}
}

// WithClient registers client under the connection name instead of dialing it.
func WithClient(name string, client *ddb.Client) Option {
	return func(s *Storage) {
		s.clients[name] = client
	}
}

// Open builds the logger and metrics provider cfg asks for and loads the table
// descriptors in cfg.TablesDir. Clients are connected on first use.
func Open(cfg *config.Config, opts ...Option) (*Storage, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Storage{
		cfg:     cfg,
		tables:  registry.Default(),
		clients: make(map[string]*ddb.Client),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		log, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		s.log = log
	}
	if s.metrics == nil {
		p, err := metrics.Setup(cfg.Metrics)
		if err != nil {
			return nil, err
		}
		s.metrics = p
	}
	if cfg.TablesDir != "" {
		if err := s.tables.LoadDir(cfg.TablesDir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Client returns the client of the named connection, connecting it on first
// use. An empty name selects the default connection.
func (s *Storage) Client(ctx context.Context, name string) (*ddb.Client, error) {
	if name == "" {
		name = config.DefaultConnection
	}

	s.mu.RLock()
	client, ok := s.clients[name]
	s.mu.RUnlock()
	if ok {
		return client, nil
	}

	conn, err := s.cfg.Connection(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[name]; ok {
		return client, nil
	}
	client, err = ddb.Connect(ctx, conn,
		ddb.WithLogger(s.log.WithField("connection", name)),
		ddb.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	s.clients[name] = client
	return client, nil
}

// TableName applies the configured table prefix to name.
func (s *Storage) TableName(name string) string {
	return s.cfg.TableName(name)
}

// EnsureTables creates or updates every registered table on the default
// connection and waits for each to become active.
func (s *Storage) EnsureTables(ctx context.Context) error {
	client, err := s.Client(ctx, "")
	if err != nil {
		return err
	}
	for _, desc := range s.tables.All() {
		desc.Name = s.TableName(desc.Name)
		if err := client.EnsureTable(ctx, desc, s.cfg.WaitTimeout); err != nil {
			return fmt.Errorf("failed to ensure table %s: %w", desc.Name, err)
		}
		s.log.WithField("table", desc.Name).Info("table ready")
	}
	return nil
}

// Close flushes metrics.
func (s *Storage) Close() error {
	return s.metrics.Close()
}

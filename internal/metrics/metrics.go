/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Metric names emitted by the store client.
const (
	RequestMetric = "request"
	LatencyMetric = "latency"
)

// DefaultNamespace prefixes every metric sent through DogStatsD.
const DefaultNamespace = "recordstore."

// Provider receives client request metrics.
type Provider interface {
	Count(name string, value int64, tags []string) error
	Timing(name string, value time.Duration, tags []string) error
	Close() error
}

// NoopProvider drops everything. It is used when metrics are disabled.
type NoopProvider struct{}

func (NoopProvider) Count(string, int64, []string) error          { return nil }
func (NoopProvider) Timing(string, time.Duration, []string) error { return nil }
func (NoopProvider) Close() error                                 { return nil }

// Config selects and configures a provider.
type Config struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr" validate:"required_if=Enabled true"`
	Namespace string   `yaml:"namespace"`
	Tags      []string `yaml:"tags"`
}

// DatadogProvider adapts the DogStatsD client to Provider.
type DatadogProvider struct {
	client statsd.ClientInterface
}

// NewDatadogProvider wraps an existing DogStatsD client.
func NewDatadogProvider(client statsd.ClientInterface) *DatadogProvider {
	return &DatadogProvider{client: client}
}

func (d *DatadogProvider) Count(name string, value int64, tags []string) error {
	return d.client.Count(name, value, tags, 1)
}

func (d *DatadogProvider) Timing(name string, value time.Duration, tags []string) error {
	return d.client.Timing(name, value, tags, 1)
}

// Close flushes buffered metrics and releases the client.
func (d *DatadogProvider) Close() error {
	return d.client.Close()
}

// Setup returns the provider the config asks for.
func Setup(cfg Config) (Provider, error) {
	if !cfg.Enabled {
		return NoopProvider{}, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	opts := []statsd.Option{
		statsd.WithNamespace(namespace),
		statsd.WithTags(cfg.Tags),
		statsd.WithoutTelemetry(),
		statsd.WithoutClientSideAggregation(),
	}

	client, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dogstatsd at %s: %w", cfg.Addr, err)
	}
	return NewDatadogProvider(client), nil
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
	"github.com/suparena/recordstore/datastore"
	"github.com/suparena/recordstore/internal/metrics"
)

// API is the subset of the DynamoDB client the store uses. *dynamodb.Client
// satisfies it; the in-memory backend in datastore/mock does too.
type API interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var (
	_ API             = (*dynamodb.Client)(nil)
	_ datastore.Store = (*Client)(nil)
)

// Client implements datastore.Store on DynamoDB. It holds no mutable state and
// is safe for concurrent use.
type Client struct {
	api           API
	log           logrus.FieldLogger
	metrics       metrics.Provider
	waitDelay     time.Duration
	settleTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards all output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetrics sets the metrics provider. The default is a no-op provider.
func WithMetrics(p metrics.Provider) Option {
	return func(c *Client) {
		c.metrics = p
	}
}

// WithWaitDelay sets the minimum poll interval of WaitUntilActive and WaitUntilDeleted.
func WithWaitDelay(d time.Duration) Option {
	return func(c *Client) {
		c.waitDelay = d
	}
}

// WithSettleTimeout bounds how long UpdateTable waits between the requests of a
// multi-step update.
func WithSettleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.settleTimeout = d
	}
}

// New wraps an API implementation.
func New(api API, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		api:           api,
		log:           discard,
		metrics:       metrics.NoopProvider{},
		waitDelay:     2 * time.Second,
		settleTimeout: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connection describes how to reach the store. Endpoint and the credential pair
// are optional; without them the SDK resolves the regional endpoint and the
// default credential chain.
type Connection struct {
	Region          string `yaml:"region" validate:"required"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `yaml:"session_token"`
	// RetryMaxAttempts overrides the SDK retryer. Zero keeps the SDK default.
	RetryMaxAttempts int `yaml:"retry_max_attempts" validate:"gte=0"`
}

// Connect loads the AWS configuration for conn and returns a Client on a new
// DynamoDB service client.
func Connect(ctx context.Context, conn Connection, opts ...Option) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(conn.Region),
	}
	if conn.AccessKeyID != "" && conn.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.AccessKeyID, conn.SecretAccessKey, conn.SessionToken),
		))
	}
	if conn.RetryMaxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(conn.RetryMaxAttempts))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	api := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
		}
	})

	c := New(api, opts...)
	c.log.WithFields(logrus.Fields{
		"region":   conn.Region,
		"endpoint": conn.Endpoint,
		"static":   conn.AccessKeyID != "",
	}).Debug("DynamoDB client initialized")
	return c, nil
}

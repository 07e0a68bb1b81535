/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// CreateTable validates desc and asks the store to create it. The table starts
// in CREATING; use WaitUntilActive to block until it accepts item operations.
func (c *Client) CreateTable(ctx context.Context, desc storagemodels.TableDescriptor) (err error) {
	defer func(start time.Time) { err = c.finish("CreateTable", desc.Name, start, err) }(time.Now())

	if err := desc.Validate(); err != nil {
		return err
	}
	_, err = c.api.CreateTable(ctx, buildCreateTableInput(desc))
	return translate(createOp, desc.Name, "", err)
}

// UpdateTable moves an existing table to the shape desc describes. Only the
// differences are sent; an identical descriptor is a no-op. Index creations and
// deletions go out one request at a time, and each request after the first
// waits for the table and its indexes to become ACTIVE again.
func (c *Client) UpdateTable(ctx context.Context, desc storagemodels.TableDescriptor) (err error) {
	defer func(start time.Time) { err = c.finish("UpdateTable", desc.Name, start, err) }(time.Now())

	if err := desc.Validate(); err != nil {
		return err
	}
	current, err := c.describe(ctx, desc.Name)
	if err != nil {
		return err
	}
	if !current.Active() {
		return &errors.ConcurrentModificationError{Table: desc.Name, Status: string(current.Status)}
	}

	steps, err := buildUpdateSteps(current, desc)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		c.log.WithField("table", desc.Name).Debug("table already matches descriptor")
		return nil
	}
	for i, in := range steps {
		if i > 0 {
			if err := c.waitSettled(ctx, desc.Name); err != nil {
				return fmt.Errorf("update step %d of %d: %w", i+1, len(steps), err)
			}
		}
		if _, err := c.api.UpdateTable(ctx, in); err != nil {
			return translate(tableOp, desc.Name, "", err)
		}
		c.log.WithFields(logrus.Fields{"table": desc.Name, "step": i + 1, "steps": len(steps)}).Debug("table update accepted")
	}
	return nil
}

// waitSettled polls until the table and all of its global indexes are ACTIVE,
// so the next update step is accepted.
func (c *Client) waitSettled(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.settleTimeout)
	defer cancel()

	check := func() error {
		out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return backoff.Permanent(translate(tableOp, name, "", err))
		}
		if status := pendingStatus(out.Table); status != "" {
			return &errors.ConcurrentModificationError{Table: name, Status: status}
		}
		return nil
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(c.waitDelay), ctx)
	if err := backoff.Retry(check, policy); err != nil {
		return fmt.Errorf("waiting for table to settle: %w", err)
	}
	return nil
}

// pendingStatus names what is still in transition, or returns "" when the
// table and its indexes are ACTIVE.
func pendingStatus(t *types.TableDescription) string {
	if t == nil {
		return "UNKNOWN"
	}
	if t.TableStatus != types.TableStatusActive {
		return string(t.TableStatus)
	}
	for _, gsi := range t.GlobalSecondaryIndexes {
		if gsi.IndexStatus != types.IndexStatusActive {
			return fmt.Sprintf("index %s %s", aws.ToString(gsi.IndexName), gsi.IndexStatus)
		}
	}
	return ""
}

// DeleteTable asks the store to delete name. It returns once the request is
// accepted; the table passes through DELETING before it is gone.
func (c *Client) DeleteTable(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { err = c.finish("DeleteTable", name, start, err) }(time.Now())

	if name == "" {
		return errors.NewValidationError("name", "table name is required")
	}
	_, err = c.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	return translate(tableOp, name, "", err)
}

// ListTables returns every table name, following pages to the end.
func (c *Client) ListTables(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { err = c.finish("ListTables", "", start, err) }(time.Now())

	paginator := dynamodb.NewListTablesPaginator(c.api, &dynamodb.ListTablesInput{})
	names = []string{}
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(tableOp, "", "", err)
		}
		names = append(names, out.TableNames...)
	}
	return names, nil
}

// ListTablesPage returns a single page of table names.
func (c *Client) ListTablesPage(ctx context.Context, opts storagemodels.ListTablesOptions) (page *storagemodels.TablesPage, err error) {
	defer func(start time.Time) { err = c.finish("ListTables", "", start, err) }(time.Now())

	in, err := buildListTablesInput(opts)
	if err != nil {
		return nil, err
	}
	out, err := c.api.ListTables(ctx, in)
	if err != nil {
		return nil, translate(tableOp, "", "", err)
	}
	return &storagemodels.TablesPage{
		Names:         append([]string{}, out.TableNames...),
		LastTableName: aws.ToString(out.LastEvaluatedTableName),
	}, nil
}

// DescribeTable returns the table's current shape and status.
func (c *Client) DescribeTable(ctx context.Context, name string) (desc *storagemodels.TableDescription, err error) {
	defer func(start time.Time) { err = c.finish("DescribeTable", name, start, err) }(time.Now())

	d, err := c.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) describe(ctx context.Context, name string) (storagemodels.TableDescription, error) {
	out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return storagemodels.TableDescription{}, translate(tableOp, name, "", err)
	}
	return describeTable(out.Table)
}

// WaitUntilActive polls until name reports ACTIVE or maxWait elapses.
func (c *Client) WaitUntilActive(ctx context.Context, name string, maxWait time.Duration) (err error) {
	defer func(start time.Time) { err = c.finish("WaitUntilActive", name, start, err) }(time.Now())

	waiter := dynamodb.NewTableExistsWaiter(c.api, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = c.waitDelay
		o.MaxDelay = maxDelay(c.waitDelay, maxWait)
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, maxWait); err != nil {
		return fmt.Errorf("waiting for table to become active: %w", translate(tableOp, name, "", err))
	}
	return nil
}

// WaitUntilDeleted polls until name no longer exists or maxWait elapses.
func (c *Client) WaitUntilDeleted(ctx context.Context, name string, maxWait time.Duration) (err error) {
	defer func(start time.Time) { err = c.finish("WaitUntilDeleted", name, start, err) }(time.Now())

	waiter := dynamodb.NewTableNotExistsWaiter(c.api, func(o *dynamodb.TableNotExistsWaiterOptions) {
		o.MinDelay = c.waitDelay
		o.MaxDelay = maxDelay(c.waitDelay, maxWait)
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, maxWait); err != nil {
		return fmt.Errorf("waiting for table deletion: %w", translate(tableOp, name, "", err))
	}
	return nil
}

// EnsureTable creates desc when it is missing and updates it otherwise, then
// waits for the table to become active.
func (c *Client) EnsureTable(ctx context.Context, desc storagemodels.TableDescriptor, maxWait time.Duration) error {
	err := c.CreateTable(ctx, desc)
	switch {
	case err == nil:
		c.log.WithField("table", desc.Name).Info("table created")
	case errors.IsTableAlreadyExists(err):
		if err := c.WaitUntilActive(ctx, desc.Name, maxWait); err != nil {
			return err
		}
		if err := c.UpdateTable(ctx, desc); err != nil {
			return err
		}
	default:
		return err
	}
	return c.WaitUntilActive(ctx, desc.Name, maxWait)
}

// Status returns the table's lifecycle state, or "" when the table is absent.
func (c *Client) Status(ctx context.Context, name string) (types.TableStatus, error) {
	desc, err := c.DescribeTable(ctx, name)
	if errors.IsTableNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	c.log.WithFields(logrus.Fields{"table": name, "status": desc.Status}).Debug("table status")
	return desc.Status, nil
}

func maxDelay(minDelay, maxWait time.Duration) time.Duration {
	d := 20 * time.Second
	if maxWait > 0 && maxWait < d {
		d = maxWait
	}
	if d < minDelay {
		d = minDelay
	}
	return d
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	storeerrors "github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/internal/metrics"
)

// opKind selects how table-level store signals are read.
type opKind int

const (
	createOp opKind = iota
	tableOp
	itemOp
)

// translate maps a store failure onto the error taxonomy. Errors it does not
// recognise are returned unchanged.
func translate(kind opKind, table, condition string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return storeerrors.NewConditionalCheckFailedError(condition, ccf.Item, err)
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		if kind == itemOp {
			return &storeerrors.TableUnavailableError{Table: table, Err: err}
		}
		return &storeerrors.TableNotFoundError{Table: table, Err: err}
	}

	var riu *types.ResourceInUseException
	if errors.As(err, &riu) {
		if kind == createOp {
			return &storeerrors.TableAlreadyExistsError{Table: table, Err: err}
		}
		return &storeerrors.ConcurrentModificationError{Table: table, Err: err}
	}

	var pte *types.ProvisionedThroughputExceededException
	var rle *types.RequestLimitExceeded
	var lee *types.LimitExceededException
	if errors.As(err, &pte) || errors.As(err, &rle) || errors.As(err, &lee) {
		return &storeerrors.ThrottlingError{Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "Throttling", "TooManyRequestsException":
			return &storeerrors.ThrottlingError{Err: err}
		case "ValidationException":
			return &storeerrors.ValidationError{Message: apiErr.ErrorMessage(), Err: err}
		}
	}
	return err
}

// outcome names the result of an operation for metrics and logs.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case storeerrors.IsConditionFailed(err):
		return "condition_failed"
	case storeerrors.IsThrottling(err):
		return "throttled"
	case storeerrors.IsTableUnavailable(err):
		return "unavailable"
	case storeerrors.IsTableNotFound(err):
		return "not_found"
	case storeerrors.IsValidationError(err), storeerrors.IsInvalidSchema(err), storeerrors.IsThroughputConfig(err):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// finish wraps err with the operation and table, then records the call in the
// log and metrics sinks.
func (c *Client) finish(op, table string, start time.Time, err error) error {
	err = storeerrors.Wrap(op, table, err)
	elapsed := time.Since(start)
	result := outcome(err)

	tags := []string{"op:" + op, "outcome:" + result}
	if table != "" {
		tags = append(tags, "table:"+table)
	}
	if mErr := c.metrics.Count(metrics.RequestMetric, 1, tags); mErr != nil {
		c.log.WithError(mErr).Debug("failed to send request metric")
	}
	if mErr := c.metrics.Timing(metrics.LatencyMetric, elapsed, tags); mErr != nil {
		c.log.WithError(mErr).Debug("failed to send latency metric")
	}

	entry := c.log.WithFields(logrus.Fields{
		"op":       op,
		"table":    table,
		"duration": elapsed,
		"outcome":  result,
	})
	switch {
	case err == nil, result == "condition_failed":
		entry.Debug("request completed")
	case storeerrors.IsRetryable(err):
		entry.WithError(err).Warn("request failed")
	default:
		entry.WithError(err).Debug("request failed")
	}
	return err
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
	"golang.org/x/sync/errgroup"
)

// PageFunc receives each page of a parallel scan together with its segment.
// It is called from several goroutines at once.
type PageFunc func(segment int32, page *storagemodels.Page) error

// ParallelScan reads the whole table with totalSegments concurrent workers. Each
// worker holds its segment fixed and pages through it, handing every page to fn.
// The first error from a worker or from fn cancels the others.
func (c *Client) ParallelScan(ctx context.Context, table string, totalSegments int32, opts *storagemodels.ScanOptions, fn PageFunc) error {
	if totalSegments < 1 || totalSegments > maxTotalSegments {
		err := errors.NewValidationError("TotalSegments", fmt.Sprintf("total segments must be between 1 and %d", maxTotalSegments))
		return c.finish("ParallelScan", table, time.Now(), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for segment := int32(0); segment < totalSegments; segment++ {
		g.Go(func() error {
			return c.scanSegment(gctx, table, segment, totalSegments, opts, fn)
		})
	}
	return g.Wait()
}

func (c *Client) scanSegment(ctx context.Context, table string, segment, total int32, opts *storagemodels.ScanOptions, fn PageFunc) error {
	segOpts := storagemodels.ScanOptions{}
	if opts != nil {
		segOpts = *opts
	}
	segOpts.Segment = segment
	segOpts.TotalSegments = total
	segOpts.ExclusiveStartKey = nil

	pages := 0
	for {
		page, err := c.ScanTable(ctx, table, &segOpts)
		if err != nil {
			return err
		}
		pages++
		if err := fn(segment, page); err != nil {
			return fmt.Errorf("segment %d: %w", segment, err)
		}
		if !page.HasMore() {
			break
		}
		segOpts.ExclusiveStartKey = page.Cursor
	}

	c.log.WithFields(logrus.Fields{
		"table":   table,
		"segment": segment,
		"pages":   pages,
	}).Debug("segment scan complete")
	return nil
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/storagemodels"
)

// pageFetcher reads the page that starts after cursor.
type pageFetcher func(ctx context.Context, cursor attr.Record) (*storagemodels.Page, error)

// Stream runs a query and delivers its items on the returned channel, following
// cursors until the result set is exhausted. The channel is closed when the
// stream ends; a failure arrives as a final result with Error set.
func (c *Client) Stream(ctx context.Context, table string, opts *storagemodels.QueryOptions, streamOpts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult {
	options := applyStreamOptions(streamOpts)
	resultCh := make(chan storagemodels.StreamResult, options.BufferSize)

	query := storagemodels.QueryOptions{}
	if opts != nil {
		query = *opts
	}
	if query.Limit == 0 {
		query.Limit = options.PageSize
	}
	fetch := func(ctx context.Context, cursor attr.Record) (*storagemodels.Page, error) {
		page := query
		page.ExclusiveStartKey = cursor
		return c.QueryTable(ctx, table, &page)
	}

	go func() {
		defer close(resultCh)
		s := newStreamState(c.log.WithField("table", table), options, resultCh)
		s.run(ctx, 0, query.ExclusiveStartKey, fetch)
		s.report(nil)
	}()
	return resultCh
}

// StreamScan scans the table and delivers its items on the returned channel.
// With more than one segment configured, segments are read concurrently and
// their items interleave.
func (c *Client) StreamScan(ctx context.Context, table string, opts *storagemodels.ScanOptions, streamOpts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult {
	options := applyStreamOptions(streamOpts)
	resultCh := make(chan storagemodels.StreamResult, options.BufferSize)

	scan := storagemodels.ScanOptions{}
	if opts != nil {
		scan = *opts
	}
	if scan.Limit == 0 {
		scan.Limit = options.PageSize
	}
	total := options.Segments
	if total > 1 {
		scan.TotalSegments = total
		scan.ExclusiveStartKey = nil
	}

	go func() {
		defer close(resultCh)
		s := newStreamState(c.log.WithField("table", table), options, resultCh)

		if total <= 1 {
			s.run(ctx, scan.Segment, scan.ExclusiveStartKey, c.scanFetcher(table, scan))
			s.report(nil)
			return
		}

		var wg sync.WaitGroup
		for segment := int32(0); segment < total; segment++ {
			segOpts := scan
			segOpts.Segment = segment
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.run(ctx, segment, nil, c.scanFetcher(table, segOpts))
			}()
		}
		wg.Wait()
		s.report(nil)
	}()
	return resultCh
}

func (c *Client) scanFetcher(table string, scan storagemodels.ScanOptions) pageFetcher {
	return func(ctx context.Context, cursor attr.Record) (*storagemodels.Page, error) {
		page := scan
		page.ExclusiveStartKey = cursor
		return c.ScanTable(ctx, table, &page)
	}
}

func applyStreamOptions(streamOpts []storagemodels.StreamOption) storagemodels.StreamOptions {
	options := storagemodels.DefaultStreamOptions()
	for _, opt := range streamOpts {
		opt(&options)
	}
	if options.BufferSize < 0 {
		options.BufferSize = 0
	}
	return options
}

// streamState is shared by the workers of one stream.
type streamState struct {
	log     logrus.FieldLogger
	options storagemodels.StreamOptions
	out     chan<- storagemodels.StreamResult
	start   time.Time

	items atomic.Int64
	pages atomic.Int64

	mu     sync.Mutex
	errors []error
}

func newStreamState(log logrus.FieldLogger, options storagemodels.StreamOptions, out chan<- storagemodels.StreamResult) *streamState {
	return &streamState{
		log:     log,
		options: options,
		out:     out,
		start:   time.Now(),
	}
}

// run pages through one cursor chain. It returns when the chain is exhausted,
// the context ends, or a page fails.
func (s *streamState) run(ctx context.Context, segment int32, cursor attr.Record, fetch pageFetcher) {
	pageNumber := 0
	for {
		if ctx.Err() != nil {
			return
		}

		page, err := s.fetch(ctx, cursor, fetch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.options.ErrorHandler != nil && s.options.ErrorHandler(err) {
				s.mu.Lock()
				s.errors = append(s.errors, err)
				s.mu.Unlock()
				s.log.WithError(err).WithField("segment", segment).Warn("stream segment abandoned")
				return
			}
			s.send(ctx, storagemodels.StreamResult{
				Error: err,
				Meta: storagemodels.StreamMeta{
					Index:      s.items.Load(),
					PageNumber: pageNumber,
					Segment:    segment,
					Timestamp:  time.Now(),
				},
			})
			return
		}

		pageNumber++
		s.pages.Add(1)
		for _, item := range page.Items {
			result := storagemodels.StreamResult{
				Item: item,
				Meta: storagemodels.StreamMeta{
					Index:      s.items.Add(1) - 1,
					PageNumber: pageNumber,
					Segment:    segment,
					Timestamp:  time.Now(),
				},
			}
			if !s.send(ctx, result) {
				return
			}
		}

		s.report(page.Cursor)
		if !page.HasMore() {
			return
		}
		cursor = page.Cursor
	}
}

// fetch reads one page, retrying throttled and unavailable failures with
// exponential backoff when MaxRetries allows it.
func (s *streamState) fetch(ctx context.Context, cursor attr.Record, fetch pageFetcher) (*storagemodels.Page, error) {
	if s.options.MaxRetries <= 0 {
		return fetch(ctx, cursor)
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = s.options.RetryBackoff
	boff.MaxInterval = s.options.MaxRetryBackoff
	boff.MaxElapsedTime = 0

	var page *storagemodels.Page
	operation := func() error {
		var err error
		page, err = fetch(ctx, cursor)
		if err != nil && !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.WithError(err).WithField("wait", wait).Debug("retrying page")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(boff, uint64(s.options.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *streamState) send(ctx context.Context, result storagemodels.StreamResult) bool {
	select {
	case <-ctx.Done():
		return false
	case s.out <- result:
		return true
	}
}

func (s *streamState) report(lastKey attr.Record) {
	if s.options.ProgressHandler == nil {
		return
	}

	s.mu.Lock()
	errs := append([]error(nil), s.errors...)
	s.mu.Unlock()

	progress := storagemodels.StreamProgress{
		ItemsProcessed: s.items.Load(),
		PagesProcessed: int(s.pages.Load()),
		LastKey:        lastKey,
		Errors:         errs,
		StartTime:      s.start,
	}
	if elapsed := time.Since(s.start).Seconds(); elapsed > 0 {
		progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
	}
	s.options.ProgressHandler(progress)
}

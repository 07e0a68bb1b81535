/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"

	"github.com/suparena/recordstore/attr"
)

// StreamResult represents a single item in a stream with metadata
type StreamResult struct {
	Item  attr.Record // The decoded item
	Error error       // Set on the final result when the stream stops on a failure
	Meta  StreamMeta  // Metadata about this item
}

// StreamMeta contains metadata about a streamed item
type StreamMeta struct {
	Index      int64     // Item index in stream (0-based)
	PageNumber int       // Page number within the segment (1-based)
	Segment    int32     // Scan segment that produced the item
	Timestamp  time.Time // When item was retrieved
}

// StreamOptions configures streaming behavior
type StreamOptions struct {
	BufferSize      int                  // Channel buffer size (default: 100)
	MaxRetries      int                  // Retry attempts for transient errors (default: 0, no retry)
	RetryBackoff    time.Duration        // Initial backoff between retries (default: 100ms)
	MaxRetryBackoff time.Duration        // Cap on a single backoff interval (default: 5s)
	PageSize        int32                // Items per page (default: 100)
	Segments        int32                // Parallel scan segments for StreamScan (default: 1)
	ProgressHandler func(StreamProgress) // Optional progress callback; scan segments call it concurrently
	ErrorHandler    func(error) bool     // Return true to record the error and end the segment without failing the stream
}

// StreamProgress tracks streaming progress
type StreamProgress struct {
	ItemsProcessed int64       // Total items processed
	PagesProcessed int         // Total pages processed
	LastKey        attr.Record // Cursor after the last page
	Errors         []error     // Accumulated non-fatal errors
	StartTime      time.Time   // When streaming started
	CurrentRate    float64     // Items per second
}

// StreamOption is a functional option for configuring streaming
type StreamOption func(*StreamOptions)

// DefaultStreamOptions returns default streaming options
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		BufferSize:      100,
		MaxRetries:      0,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
		PageSize:        100,
		Segments:        1,
	}
}

// WithBufferSize sets the channel buffer size
func WithBufferSize(size int) StreamOption {
	return func(opts *StreamOptions) {
		opts.BufferSize = size
	}
}

// WithMaxRetries enables retrying throttled or unavailable pages
func WithMaxRetries(retries int) StreamOption {
	return func(opts *StreamOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the initial and maximum retry backoff
func WithRetryBackoff(initial, maxBackoff time.Duration) StreamOption {
	return func(opts *StreamOptions) {
		opts.RetryBackoff = initial
		opts.MaxRetryBackoff = maxBackoff
	}
}

// WithPageSize sets the page size
func WithPageSize(size int32) StreamOption {
	return func(opts *StreamOptions) {
		opts.PageSize = size
	}
}

// WithSegments sets the number of parallel scan segments
func WithSegments(segments int32) StreamOption {
	return func(opts *StreamOptions) {
		opts.Segments = segments
	}
}

// WithProgressHandler sets a progress callback
func WithProgressHandler(handler func(StreamProgress)) StreamOption {
	return func(opts *StreamOptions) {
		opts.ProgressHandler = handler
	}
}

// WithErrorHandler sets an error handler that can decide whether to continue
func WithErrorHandler(handler func(error) bool) StreamOption {
	return func(opts *StreamOptions) {
		opts.ErrorHandler = handler
	}
}

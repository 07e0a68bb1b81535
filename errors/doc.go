/*
Package errors provides semantic error types for the recordstore library.

Every failure kind has a sentinel that can be checked with the standard
errors.Is function or with the provided helper functions. The store client
wraps each failure in an *OpError carrying the operation and table name.

Sentinels:

	var (
	    ErrValidation             = errors.New("validation failed")
	    ErrConditionalCheckFailed = errors.New("conditional check failed")
	    ErrTableUnavailable       = errors.New("table unavailable")
	    ErrThrottling             = errors.New("request throttled")
	    ErrTableNotFound          = errors.New("table not found")
	    ErrTableAlreadyExists     = errors.New("table already exists")
	    ErrInvalidSchema          = errors.New("invalid table schema")
	    ErrThroughputConfig       = errors.New("inconsistent throughput configuration")
	    ErrConcurrentModification = errors.New("table is being modified")
	    ErrMalformedAttribute     = errors.New("malformed attribute")
	)

Usage:

	_, err := store.PutItem(ctx, "pages", rec, &storagemodels.PutOptions{
	    ConditionExpression: "attribute_not_exists(id)",
	})
	switch {
	case errors.IsConditionFailed(err):
	    // someone else created it first
	case errors.IsRetryable(err):
	    // back off and try again
	case err != nil:
	    return err
	}

Throttling and table-unavailable errors are transient; the library never
retries them on its own.
*/
package errors

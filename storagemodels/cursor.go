/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/base64"

	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/errors"
)

// EncodeCursor renders a page cursor as an opaque URL-safe token. An empty cursor
// yields an empty token.
func EncodeCursor(cursor attr.Record) (string, error) {
	if len(cursor) == 0 {
		return "", nil
	}
	data, err := attr.MarshalWireJSON(cursor)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields a nil cursor.
func DecodeCursor(token string) (attr.Record, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, &errors.ValidationError{Field: "cursor", Message: "invalid cursor token", Err: err}
	}
	cursor, err := attr.UnmarshalWireJSON(data)
	if err != nil {
		return nil, &errors.ValidationError{Field: "cursor", Message: "invalid cursor token", Err: err}
	}
	return cursor, nil
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package attr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Marshal converts a Go struct or map into a Record using the attributevalue
// encoder, so `dynamodbav` struct tags apply.
func Marshal(in any) (Record, error) {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return Decode(item)
}

// Unmarshal populates out (a pointer to a struct or map) from r.
func Unmarshal(r Record, out any) error {
	item, err := Encode(r)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// UnmarshalAll populates out (a pointer to a slice) from records.
func UnmarshalAll(records []Record, out any) error {
	items := make([]map[string]types.AttributeValue, 0, len(records))
	for _, r := range records {
		item, err := Encode(r)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal records: %w", err)
	}
	return nil
}

// FromGo converts JSON-shaped Go data into a Value. json.Number keeps its
// text. Anything else goes through the attributevalue encoder.
func FromGo(in any) (Value, error) {
	switch v := in.(type) {
	case Value:
		return v, nil
	case nil:
		return Null{}, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case json.Number:
		return ParseNumber(string(v))
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case int32:
		return Int(int64(v)), nil
	case uint64:
		return Uint(v), nil
	case float64:
		return Float(v), nil
	case []byte:
		return Binary(v), nil
	case []any:
		list := make(List, len(v))
		for i, e := range v {
			ev, err := FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(v))
		for k, e := range v {
			ev, err := FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = ev
		}
		return m, nil
	default:
		av, err := attributevalue.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", in, err)
		}
		return DecodeValue(av)
	}
}

// RecordFromGo converts a JSON-shaped object into a Record.
func RecordFromGo(in map[string]any) (Record, error) {
	out := make(Record, len(in))
	for k, e := range in {
		v, err := FromGo(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ToGo converts v into JSON-shaped Go data. Numbers become json.Number.
func ToGo(v Value) any {
	switch v := v.(type) {
	case String:
		return string(v)
	case Number:
		return json.Number(v)
	case Binary:
		return []byte(v)
	case Bool:
		return bool(v)
	case Null:
		return nil
	case List:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ToGo(e)
		}
		return out
	case Map:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = ToGo(e)
		}
		return out
	case StringSet:
		return []string(v)
	case NumberSet:
		out := make([]json.Number, len(v))
		for i, n := range v {
			out[i] = json.Number(n)
		}
		return out
	case BinarySet:
		return [][]byte(v)
	default:
		return nil
	}
}

// ToGo converts r into a JSON-shaped map.
func (r Record) ToGo() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = ToGo(v)
	}
	return out
}

// Equal reports whether a and b hold the same value. Sets compare without
// regard to order; numbers compare by text.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case String, Number, Bool, Null:
		return a == b
	case Binary:
		return bytes.Equal(av, b.(Binary))
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		return mapsEqual(av, b.(Map))
	case StringSet:
		return sameElements(av, b.(StringSet))
	case NumberSet:
		bv := b.(NumberSet)
		as, bs := make([]string, len(av)), make([]string, len(bv))
		for i := range av {
			as[i] = string(av[i])
		}
		for i := range bv {
			bs[i] = string(bv[i])
		}
		return sameElements(as, bs)
	case BinarySet:
		bv := b.(BinarySet)
		as, bs := make([]string, len(av)), make([]string, len(bv))
		for i := range av {
			as[i] = string(av[i])
		}
		for i := range bv {
			bs[i] = string(bv[i])
		}
		return sameElements(as, bs)
	}
	return false
}

// Equal reports whether r and other hold the same fields and values.
func (r Record) Equal(other Record) bool {
	return mapsEqual(Map(r), Map(other))
}

func mapsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func sameElements(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

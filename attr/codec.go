/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package attr

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/recordstore/errors"
)

// Encode converts r into the store's wire representation.
// Malformed values (nil, empty or duplicate sets, bad number text) fail with a
// ValidationError naming the field path.
func Encode(r Record) (map[string]types.AttributeValue, error) {
	if r == nil {
		return nil, nil
	}
	out := make(map[string]types.AttributeValue, len(r))
	for name, v := range r {
		av, err := encodeValue(name, v)
		if err != nil {
			return nil, err
		}
		out[name] = av
	}
	return out, nil
}

// EncodeValue converts a single value.
func EncodeValue(v Value) (types.AttributeValue, error) {
	return encodeValue("", v)
}

// Decode converts a wire item into a Record. An attribute without a recognized
// tag fails with a MalformedAttributeError naming its path.
func Decode(item map[string]types.AttributeValue) (Record, error) {
	if item == nil {
		return nil, nil
	}
	out := make(Record, len(item))
	for name, av := range item {
		v, err := decodeValue(name, av)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// DecodeValue converts a single wire value.
func DecodeValue(av types.AttributeValue) (Value, error) {
	return decodeValue("", av)
}

// DecodeAll decodes a page of wire items.
func DecodeAll(items []map[string]types.AttributeValue) ([]Record, error) {
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeValue(path string, v Value) (types.AttributeValue, error) {
	switch v := v.(type) {
	case String:
		return &types.AttributeValueMemberS{Value: string(v)}, nil
	case Number:
		if !v.Valid() {
			return nil, errors.NewValidationError(path, fmt.Sprintf("invalid number %q", string(v)))
		}
		return &types.AttributeValueMemberN{Value: string(v)}, nil
	case Binary:
		return &types.AttributeValueMemberB{Value: []byte(v)}, nil
	case Bool:
		return &types.AttributeValueMemberBOOL{Value: bool(v)}, nil
	case Null:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case List:
		list := make([]types.AttributeValue, len(v))
		for i, e := range v {
			av, err := encodeValue(indexPath(path, i), e)
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case Map:
		m := make(map[string]types.AttributeValue, len(v))
		for k, e := range v {
			av, err := encodeValue(fieldPath(path, k), e)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case StringSet:
		if err := checkSet(path, len(v), func(i int) string { return v[i] }); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v...)}, nil
	case NumberSet:
		if err := checkSet(path, len(v), func(i int) string { return string(v[i]) }); err != nil {
			return nil, err
		}
		ns := make([]string, len(v))
		for i, n := range v {
			if !n.Valid() {
				return nil, errors.NewValidationError(indexPath(path, i), fmt.Sprintf("invalid number %q", string(n)))
			}
			ns[i] = string(n)
		}
		return &types.AttributeValueMemberNS{Value: ns}, nil
	case BinarySet:
		if err := checkSet(path, len(v), func(i int) string { return string(v[i]) }); err != nil {
			return nil, err
		}
		bs := make([][]byte, len(v))
		copy(bs, v)
		return &types.AttributeValueMemberBS{Value: bs}, nil
	case nil:
		return nil, errors.NewValidationError(path, "nil attribute value")
	default:
		return nil, errors.NewValidationError(path, fmt.Sprintf("unsupported attribute value %T", v))
	}
}

func checkSet(path string, n int, elem func(int) string) error {
	if n == 0 {
		return errors.NewValidationError(path, "sets must not be empty")
	}
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		e := elem(i)
		if _, dup := seen[e]; dup {
			return errors.NewValidationError(path, "sets must not contain duplicates")
		}
		seen[e] = struct{}{}
	}
	return nil
}

func decodeValue(path string, av types.AttributeValue) (Value, error) {
	switch av := av.(type) {
	case *types.AttributeValueMemberS:
		return String(av.Value), nil
	case *types.AttributeValueMemberN:
		return Number(av.Value), nil
	case *types.AttributeValueMemberB:
		return Binary(av.Value), nil
	case *types.AttributeValueMemberBOOL:
		return Bool(av.Value), nil
	case *types.AttributeValueMemberNULL:
		return Null{}, nil
	case *types.AttributeValueMemberL:
		list := make(List, len(av.Value))
		for i, e := range av.Value {
			v, err := decodeValue(indexPath(path, i), e)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case *types.AttributeValueMemberM:
		m := make(Map, len(av.Value))
		for k, e := range av.Value {
			v, err := decodeValue(fieldPath(path, k), e)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case *types.AttributeValueMemberSS:
		return StringSet(append([]string(nil), av.Value...)), nil
	case *types.AttributeValueMemberNS:
		ns := make(NumberSet, len(av.Value))
		for i, n := range av.Value {
			ns[i] = Number(n)
		}
		return ns, nil
	case *types.AttributeValueMemberBS:
		bs := make(BinarySet, len(av.Value))
		copy(bs, av.Value)
		return bs, nil
	case *types.UnknownUnionMember:
		return nil, errors.NewMalformedAttributeError(path, fmt.Sprintf("unknown attribute tag %q", av.Tag))
	case nil:
		return nil, errors.NewMalformedAttributeError(path, "missing attribute value")
	default:
		return nil, errors.NewMalformedAttributeError(path, fmt.Sprintf("unrecognized attribute value %T", av))
	}
}

func fieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// Names returns the record's field names in sorted order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

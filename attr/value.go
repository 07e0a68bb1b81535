/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package attr

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

// Kind identifies the variant held by a Value. The string form is the wire tag.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBinary
	KindBool
	KindNull
	KindList
	KindMap
	KindStringSet
	KindNumberSet
	KindBinarySet
)

var kindTags = map[Kind]string{
	KindString:    "S",
	KindNumber:    "N",
	KindBinary:    "B",
	KindBool:      "BOOL",
	KindNull:      "NULL",
	KindList:      "L",
	KindMap:       "M",
	KindStringSet: "SS",
	KindNumberSet: "NS",
	KindBinarySet: "BS",
}

func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a dynamically typed attribute value. The set of implementations is
// closed: String, Number, Binary, Bool, Null, List, Map, StringSet, NumberSet
// and BinarySet.
type Value interface {
	Kind() Kind
	isValue()
}

// Record maps field names to values. A table's key attributes are a subset.
type Record map[string]Value

// String is a UTF-8 string value.
type String string

// Number is a decimal number kept in its textual form.
type Number string

// Binary is an opaque byte string.
type Binary []byte

// Bool is a boolean value.
type Bool bool

// Null is the null value.
type Null struct{}

// List is an ordered, heterogeneous list of values.
type List []Value

// Map is a nested string-keyed map of values.
type Map map[string]Value

// StringSet is a non-empty set of distinct strings.
type StringSet []string

// NumberSet is a non-empty set of distinct numbers.
type NumberSet []Number

// BinarySet is a non-empty set of distinct byte strings.
type BinarySet [][]byte

func (String) Kind() Kind    { return KindString }
func (Number) Kind() Kind    { return KindNumber }
func (Binary) Kind() Kind    { return KindBinary }
func (Bool) Kind() Kind      { return KindBool }
func (Null) Kind() Kind      { return KindNull }
func (List) Kind() Kind      { return KindList }
func (Map) Kind() Kind       { return KindMap }
func (StringSet) Kind() Kind { return KindStringSet }
func (NumberSet) Kind() Kind { return KindNumberSet }
func (BinarySet) Kind() Kind { return KindBinarySet }

func (String) isValue()    {}
func (Number) isValue()    {}
func (Binary) isValue()    {}
func (Bool) isValue()      {}
func (Null) isValue()      {}
func (List) isValue()      {}
func (Map) isValue()       {}
func (StringSet) isValue() {}
func (NumberSet) isValue() {}
func (BinarySet) isValue() {}

var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Int returns the Number for i.
func Int(i int64) Number {
	return Number(strconv.FormatInt(i, 10))
}

// Uint returns the Number for u.
func Uint(u uint64) Number {
	return Number(strconv.FormatUint(u, 10))
}

// Float returns the shortest decimal Number that round-trips f.
func Float(f float64) Number {
	return Number(strconv.FormatFloat(f, 'f', -1, 64))
}

// ParseNumber validates s as decimal text and returns it unchanged.
func ParseNumber(s string) (Number, error) {
	if !numberPattern.MatchString(s) {
		return "", fmt.Errorf("invalid number %q", s)
	}
	return Number(s), nil
}

// Valid reports whether n is well-formed decimal text.
func (n Number) Valid() bool {
	return numberPattern.MatchString(string(n))
}

func (n Number) String() string {
	return string(n)
}

// Int64 parses n as a base-10 integer.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 parses n as a float. Precision beyond float64 is lost.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Rat returns n as an exact rational.
func (n Number) Rat() (*big.Rat, bool) {
	return new(big.Rat).SetString(string(n))
}

// Key returns the subset of r holding the named attributes. Missing names are skipped.
func (r Record) Key(names ...string) Record {
	key := make(Record, len(names))
	for _, name := range names {
		if v, ok := r[name]; ok {
			key[name] = v
		}
	}
	return key
}

// GetString returns the named attribute if it holds a String.
func (r Record) GetString(name string) (string, bool) {
	s, ok := r[name].(String)
	return string(s), ok
}

// GetNumber returns the named attribute if it holds a Number.
func (r Record) GetNumber(name string) (Number, bool) {
	n, ok := r[name].(Number)
	return n, ok
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch v := v.(type) {
	case Binary:
		return Binary(append([]byte(nil), v...))
	case List:
		out := make(List, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case Map:
		out := make(Map, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case StringSet:
		return append(StringSet(nil), v...)
	case NumberSet:
		return append(NumberSet(nil), v...)
	case BinarySet:
		out := make(BinarySet, len(v))
		for i, b := range v {
			out[i] = append([]byte(nil), b...)
		}
		return out
	default:
		return v
	}
}

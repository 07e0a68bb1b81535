/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package attr

import (
	"encoding/json"
	"fmt"

	"github.com/suparena/recordstore/errors"
)

// wireJSON mirrors the store's JSON attribute shape, e.g. {"S":"abc"} or {"L":[...]}.
type wireJSON struct {
	B    *[]byte              `json:"B,omitempty"`
	BOOL *bool                `json:"BOOL,omitempty"`
	BS   [][]byte             `json:"BS,omitempty"`
	L    *[]wireJSON          `json:"L,omitempty"`
	M    *map[string]wireJSON `json:"M,omitempty"`
	N    *string              `json:"N,omitempty"`
	NS   []string             `json:"NS,omitempty"`
	NULL *bool                `json:"NULL,omitempty"`
	S    *string              `json:"S,omitempty"`
	SS   []string             `json:"SS,omitempty"`
}

// MarshalWireJSON renders r in the store's typed JSON form.
func MarshalWireJSON(r Record) ([]byte, error) {
	out := make(map[string]wireJSON, len(r))
	for name, v := range r {
		w, err := toWireJSON(name, v)
		if err != nil {
			return nil, err
		}
		out[name] = w
	}
	return json.Marshal(out)
}

// UnmarshalWireJSON parses the store's typed JSON form.
func UnmarshalWireJSON(data []byte) (Record, error) {
	var in map[string]wireJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse attribute json: %w", err)
	}
	out := make(Record, len(in))
	for name, w := range in {
		v, err := fromWireJSON(name, w)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func toWireJSON(path string, v Value) (wireJSON, error) {
	switch v := v.(type) {
	case String:
		s := string(v)
		return wireJSON{S: &s}, nil
	case Number:
		n := string(v)
		return wireJSON{N: &n}, nil
	case Binary:
		b := []byte(v)
		if b == nil {
			b = []byte{}
		}
		return wireJSON{B: &b}, nil
	case Bool:
		b := bool(v)
		return wireJSON{BOOL: &b}, nil
	case Null:
		t := true
		return wireJSON{NULL: &t}, nil
	case List:
		list := make([]wireJSON, len(v))
		for i, e := range v {
			w, err := toWireJSON(indexPath(path, i), e)
			if err != nil {
				return wireJSON{}, err
			}
			list[i] = w
		}
		return wireJSON{L: &list}, nil
	case Map:
		m := make(map[string]wireJSON, len(v))
		for k, e := range v {
			w, err := toWireJSON(fieldPath(path, k), e)
			if err != nil {
				return wireJSON{}, err
			}
			m[k] = w
		}
		return wireJSON{M: &m}, nil
	case StringSet:
		return wireJSON{SS: []string(v)}, nil
	case NumberSet:
		ns := make([]string, len(v))
		for i, n := range v {
			ns[i] = string(n)
		}
		return wireJSON{NS: ns}, nil
	case BinarySet:
		return wireJSON{BS: [][]byte(v)}, nil
	default:
		return wireJSON{}, errors.NewValidationError(path, fmt.Sprintf("unsupported attribute value %T", v))
	}
}

func fromWireJSON(path string, w wireJSON) (Value, error) {
	switch {
	case w.S != nil:
		return String(*w.S), nil
	case w.N != nil:
		return Number(*w.N), nil
	case w.B != nil:
		return Binary(*w.B), nil
	case w.BOOL != nil:
		return Bool(*w.BOOL), nil
	case w.NULL != nil:
		return Null{}, nil
	case w.L != nil:
		list := make(List, len(*w.L))
		for i, e := range *w.L {
			v, err := fromWireJSON(indexPath(path, i), e)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case w.M != nil:
		m := make(Map, len(*w.M))
		for k, e := range *w.M {
			v, err := fromWireJSON(fieldPath(path, k), e)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case w.SS != nil:
		return StringSet(w.SS), nil
	case w.NS != nil:
		ns := make(NumberSet, len(w.NS))
		for i, n := range w.NS {
			ns[i] = Number(n)
		}
		return ns, nil
	case w.BS != nil:
		return BinarySet(w.BS), nil
	default:
		return nil, errors.NewMalformedAttributeError(path, "no recognized attribute tag")
	}
}

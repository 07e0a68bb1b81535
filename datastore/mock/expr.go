/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/suparena/recordstore/attr"
)

// The evaluator understands the condition grammar used by condition, key
// condition and filter expressions: comparisons, BETWEEN, IN, AND, OR, NOT,
// parentheses and the functions attribute_exists, attribute_not_exists,
// attribute_type, begins_with, contains and size.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokName
	tokValue
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '#' || c == ':':
			j := i + 1
			for j < len(src) && isIdentChar(rune(src[j])) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty placeholder at offset %d", i)
			}
			kind := tokName
			if c == ':' {
				kind = tokValue
			}
			out = append(out, token{kind: kind, text: src[i:j]})
			i = j
		case unicode.IsDigit(c):
			j := i
			for j < len(src) && unicode.IsDigit(rune(src[j])) {
				j++
			}
			out = append(out, token{kind: tokNumber, text: src[i:j]})
			i = j
		case isIdentChar(c):
			j := i
			for j < len(src) && isIdentChar(rune(src[j])) {
				j++
			}
			out = append(out, token{kind: tokIdent, text: src[i:j]})
			i = j
		case c == '<' || c == '>':
			if i+1 < len(src) && (src[i+1] == '=' || (c == '<' && src[i+1] == '>')) {
				out = append(out, token{kind: tokPunct, text: src[i : i+2]})
				i += 2
			} else {
				out = append(out, token{kind: tokPunct, text: string(c)})
				i++
			}
		case strings.ContainsRune("()[],.=", c):
			out = append(out, token{kind: tokPunct, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(out, token{kind: tokEOF}), nil
}

func isIdentChar(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// pathElem is one step of a document path: a name or a list index.
type pathElem struct {
	name  string
	index int
	isIdx bool
}

type operand interface {
	eval(e *env) (attr.Value, bool)
}

type pathOperand struct{ path []pathElem }
type valueOperand struct{ value attr.Value }
type sizeOperand struct{ path pathOperand }

type cond interface {
	eval(e *env) bool
}

type andCond struct{ left, right cond }
type orCond struct{ left, right cond }
type notCond struct{ inner cond }
type compareCond struct {
	op          string
	left, right operand
}
type betweenCond struct{ subject, low, high operand }
type inCond struct {
	subject operand
	list    []operand
}
type funcCond struct {
	name string
	path pathOperand
	arg  operand
}

// env is the item a condition is evaluated against.
type env struct {
	item attr.Record
}

type parser struct {
	toks   []token
	pos    int
	names  map[string]string
	values attr.Record
}

// parseCondition compiles a condition expression. Placeholders are resolved
// at parse time so a missing name or value is reported before evaluation.
func parseCondition(src string, names map[string]string, values attr.Record) (cond, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, names: names, values: values}
	c, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q", p.peek().text)
	}
	return c, nil
}

// parseProjection compiles a comma-separated list of document paths.
func parseProjection(src string, names map[string]string) ([]pathOperand, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, names: names}
	var out []pathOperand
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		out = append(out, path)
		if !p.acceptPunct(",") {
			break
		}
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q in projection", p.peek().text)
	}
	return out, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptPunct(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.acceptPunct(text) {
		return fmt.Errorf("expected %q, found %q", text, p.peek().text)
	}
	return nil
}

func (p *parser) acceptKeyword(word string) bool {
	if t := p.peek(); t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (cond, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orCond{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (cond, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andCond{left, right}
	}
	return left, nil
}

func (p *parser) parseNot() (cond, error) {
	if p.acceptKeyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notCond{inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (cond, error) {
	if p.acceptPunct("(") {
		c, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return c, p.expectPunct(")")
	}

	if t := p.peek(); t.kind == tokIdent && p.toks[p.pos+1].text == "(" {
		switch strings.ToLower(t.text) {
		case "attribute_exists", "attribute_not_exists", "attribute_type", "begins_with", "contains":
			return p.parseFunction()
		}
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.acceptKeyword("BETWEEN") {
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.acceptKeyword("AND") {
			return nil, fmt.Errorf("BETWEEN requires AND")
		}
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return betweenCond{left, low, high}, nil
	}
	if p.acceptKeyword("IN") {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var list []operand
		for {
			o, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			list = append(list, o)
			if !p.acceptPunct(",") {
				break
			}
		}
		return inCond{left, list}, p.expectPunct(")")
	}

	t := p.next()
	switch t.text {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return nil, fmt.Errorf("expected comparator, found %q", t.text)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareCond{op: t.text, left: left, right: right}, nil
}

func (p *parser) parseFunction() (cond, error) {
	name := strings.ToLower(p.next().text)
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	fn := funcCond{name: name, path: path}
	if name != "attribute_exists" && name != "attribute_not_exists" {
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		if fn.arg, err = p.parseOperand(); err != nil {
			return nil, err
		}
	}
	return fn, p.expectPunct(")")
}

func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	switch {
	case t.kind == tokValue:
		p.next()
		v, ok := p.values[t.text]
		if !ok {
			return nil, fmt.Errorf("value placeholder %s is not defined", t.text)
		}
		return valueOperand{v}, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "size") && p.toks[p.pos+1].text == "(":
		p.next()
		p.next()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return sizeOperand{path}, p.expectPunct(")")
	default:
		return p.parsePath()
	}
}

func (p *parser) parsePath() (pathOperand, error) {
	first, err := p.parseName()
	if err != nil {
		return pathOperand{}, err
	}
	path := []pathElem{{name: first}}
	for {
		switch {
		case p.acceptPunct("."):
			name, err := p.parseName()
			if err != nil {
				return pathOperand{}, err
			}
			path = append(path, pathElem{name: name})
		case p.acceptPunct("["):
			t := p.next()
			if t.kind != tokNumber {
				return pathOperand{}, fmt.Errorf("expected list index, found %q", t.text)
			}
			n, _ := strconv.Atoi(t.text)
			path = append(path, pathElem{index: n, isIdx: true})
			if err := p.expectPunct("]"); err != nil {
				return pathOperand{}, err
			}
		default:
			return pathOperand{path: path}, nil
		}
	}
}

func (p *parser) parseName() (string, error) {
	t := p.next()
	switch t.kind {
	case tokName:
		name, ok := p.names[t.text]
		if !ok {
			return "", fmt.Errorf("name placeholder %s is not defined", t.text)
		}
		return name, nil
	case tokIdent:
		return t.text, nil
	}
	return "", fmt.Errorf("expected attribute name, found %q", t.text)
}

func (o pathOperand) eval(e *env) (attr.Value, bool) {
	var cur attr.Value = attr.Map(e.item)
	for _, step := range o.path {
		switch v := cur.(type) {
		case attr.Map:
			if step.isIdx {
				return nil, false
			}
			next, ok := v[step.name]
			if !ok {
				return nil, false
			}
			cur = next
		case attr.List:
			if !step.isIdx || step.index >= len(v) {
				return nil, false
			}
			cur = v[step.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// top returns the top-level attribute name of the path.
func (o pathOperand) top() string {
	return o.path[0].name
}

func (o valueOperand) eval(*env) (attr.Value, bool) {
	return o.value, true
}

func (o sizeOperand) eval(e *env) (attr.Value, bool) {
	v, ok := o.path.eval(e)
	if !ok {
		return nil, false
	}
	var n int
	switch v := v.(type) {
	case attr.String:
		n = len(v)
	case attr.Binary:
		n = len(v)
	case attr.List:
		n = len(v)
	case attr.Map:
		n = len(v)
	case attr.StringSet:
		n = len(v)
	case attr.NumberSet:
		n = len(v)
	case attr.BinarySet:
		n = len(v)
	default:
		return nil, false
	}
	return attr.Int(int64(n)), true
}

func (c andCond) eval(e *env) bool { return c.left.eval(e) && c.right.eval(e) }
func (c orCond) eval(e *env) bool  { return c.left.eval(e) || c.right.eval(e) }
func (c notCond) eval(e *env) bool { return !c.inner.eval(e) }

func (c compareCond) eval(e *env) bool {
	l, lok := c.left.eval(e)
	r, rok := c.right.eval(e)
	if !lok || !rok {
		return false
	}
	switch c.op {
	case "=":
		return valuesEqual(l, r)
	case "<>":
		return !valuesEqual(l, r)
	}
	cmp, ok := compareScalars(l, r)
	if !ok {
		return false
	}
	switch c.op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func (c betweenCond) eval(e *env) bool {
	v, ok := c.subject.eval(e)
	low, lok := c.low.eval(e)
	high, hok := c.high.eval(e)
	if !ok || !lok || !hok {
		return false
	}
	lo, ok1 := compareScalars(v, low)
	hi, ok2 := compareScalars(v, high)
	return ok1 && ok2 && lo >= 0 && hi <= 0
}

func (c inCond) eval(e *env) bool {
	v, ok := c.subject.eval(e)
	if !ok {
		return false
	}
	for _, o := range c.list {
		if candidate, ok := o.eval(e); ok && valuesEqual(v, candidate) {
			return true
		}
	}
	return false
}

func (c funcCond) eval(e *env) bool {
	v, present := c.path.eval(e)
	switch c.name {
	case "attribute_exists":
		return present
	case "attribute_not_exists":
		return !present
	}
	if !present {
		return false
	}
	arg, ok := c.arg.eval(e)
	if !ok {
		return false
	}

	switch c.name {
	case "attribute_type":
		want, ok := arg.(attr.String)
		return ok && v.Kind().String() == string(want)
	case "begins_with":
		switch v := v.(type) {
		case attr.String:
			prefix, ok := arg.(attr.String)
			return ok && strings.HasPrefix(string(v), string(prefix))
		case attr.Binary:
			prefix, ok := arg.(attr.Binary)
			return ok && bytes.HasPrefix(v, prefix)
		}
	case "contains":
		switch v := v.(type) {
		case attr.String:
			sub, ok := arg.(attr.String)
			return ok && strings.Contains(string(v), string(sub))
		case attr.StringSet:
			s, ok := arg.(attr.String)
			return ok && containsString(v, string(s))
		case attr.NumberSet:
			for _, n := range v {
				if valuesEqual(n, arg) {
					return true
				}
			}
		case attr.BinarySet:
			b, ok := arg.(attr.Binary)
			for _, elem := range v {
				if ok && bytes.Equal(elem, b) {
					return true
				}
			}
		case attr.List:
			for _, elem := range v {
				if valuesEqual(elem, arg) {
					return true
				}
			}
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, elem := range set {
		if elem == s {
			return true
		}
	}
	return false
}

// valuesEqual compares numbers by value and everything else structurally.
func valuesEqual(a, b attr.Value) bool {
	if cmp, ok := compareScalars(a, b); ok {
		return cmp == 0
	}
	return attr.Equal(a, b)
}

// compareScalars orders two values of the same scalar type.
func compareScalars(a, b attr.Value) (int, bool) {
	switch a := a.(type) {
	case attr.String:
		b, ok := b.(attr.String)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(a), string(b)), true
	case attr.Number:
		b, ok := b.(attr.Number)
		if !ok {
			return 0, false
		}
		ra, ok1 := a.Rat()
		rb, ok2 := b.Rat()
		if !ok1 || !ok2 {
			return 0, false
		}
		return ra.Cmp(rb), true
	case attr.Binary:
		b, ok := b.(attr.Binary)
		if !ok {
			return 0, false
		}
		return bytes.Compare(a, b), true
	}
	return 0, false
}

// Package value defines the closed set of value kinds a key can hold:
// string, list, set, hash and sorted set. It is intentionally a tagged
// struct rather than an interface — every command already knows which
// kind it expects, so dynamic dispatch through a method set buys
// nothing and only hides type mistakes until runtime.
package value

import (
	"strconv"
)

// Kind tags which of the five payload fields on Value is live.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindSet
	KindHash
	KindZSet
)

// TypeName returns the wire-visible type tag used by the TYPE command.
// The RDB record header uses its own type bytes (see package rdb).
func (k Kind) TypeName() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is the polymorphic payload stored per key. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind Kind

	Str  []byte
	List [][]byte
	Set  map[string]struct{}
	Hash map[string][]byte
	ZSet map[string]float64
}

func NewString(b []byte) *Value { return &Value{Kind: KindString, Str: b} }

func NewList(items ...[]byte) *Value {
	return &Value{Kind: KindList, List: items}
}

func NewSet() *Value { return &Value{Kind: KindSet, Set: make(map[string]struct{})} }

func NewHash() *Value { return &Value{Kind: KindHash, Hash: make(map[string][]byte)} }

func NewZSet() *Value { return &Value{Kind: KindZSet, ZSet: make(map[string]float64)} }

// Len reports the kind-appropriate length: byte length for strings,
// element/member/field count for the collection kinds.
func (v *Value) Len() int {
	switch v.Kind {
	case KindString:
		return len(v.Str)
	case KindList:
		return len(v.List)
	case KindSet:
		return len(v.Set)
	case KindHash:
		return len(v.Hash)
	case KindZSet:
		return len(v.ZSet)
	default:
		return 0
	}
}

// IsInteger reports whether Str parses as a decimal integer per the
// INCR-family invariant: optional leading sign, no leading zeros
// beyond a single "0".
func (v *Value) IsInteger() (int64, bool) {
	if v.Kind != KindString {
		return 0, false
	}
	s := string(v.Str)
	if s == "" {
		return 0, false
	}
	body := s
	if body[0] == '+' || body[0] == '-' {
		body = body[1:]
	}
	if body == "" {
		return 0, false
	}
	if len(body) > 1 && body[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

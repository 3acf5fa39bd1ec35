// Package value implements the XML-RPC value model.
//
// A Value is an immutable tagged union over the eight XML-RPC types. Values are
// built either explicitly (NewInt, NewStructValue, ...) or by inference from
// native Go data (FromNative), and are rendered to wire XML by EncodeXML.
//
//	native Go data ──FromNative──► Value tree ──EncodeXML──► <value>...</value>
//	                ◄──Native────
package value

import (
	"bytes"
	"math"
)

// Kind is the declared wire type of a Value.
type Kind uint8

const (
	KindString Kind = iota // zero Value is the empty string
	KindBoolean
	KindInt
	KindDouble
	KindDateTime
	KindBase64
	KindArray
	KindStruct
)

var kindNames = [...]string{
	KindString:   "string",
	KindBoolean:  "boolean",
	KindInt:      "int",
	KindDouble:   "double",
	KindDateTime: "dateTime.iso8601",
	KindBase64:   "base64",
	KindArray:    "array",
	KindStruct:   "struct",
}

// String returns the XML-RPC tag name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Member is one named entry of a struct Value.
type Member struct {
	Name  string
	Value Value
}

// Value is a single XML-RPC value. The zero Value is an empty string.
type Value struct {
	kind    Kind
	b       bool
	i       int32
	f       float64
	s       string
	dt      DateTime
	bin     []byte
	items   []Value
	members []Member
}

func NewString(s string) Value      { return Value{kind: KindString, s: s} }
func NewBoolean(b bool) Value       { return Value{kind: KindBoolean, b: b} }
func NewInt(i int32) Value          { return Value{kind: KindInt, i: i} }
func NewDouble(f float64) Value     { return Value{kind: KindDouble, f: f} }
func NewDateTime(dt DateTime) Value { return Value{kind: KindDateTime, dt: dt} }

// NewBase64 wraps raw bytes; they are base64-encoded on the wire.
func NewBase64(b []byte) Value {
	return Value{kind: KindBase64, bin: append([]byte(nil), b...)}
}

// NewArray builds an array Value. An empty array is valid.
func NewArray(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// NewStructValue builds a struct Value keeping member order. A repeated name
// keeps its first position and takes the last value.
func NewStructValue(members ...Member) Value {
	out := make([]Member, 0, len(members))
	index := make(map[string]int, len(members))
	for _, m := range members {
		if i, ok := index[m.Name]; ok {
			out[i].Value = m.Value
			continue
		}
		index[m.Name] = len(out)
		out = append(out, m)
	}
	return Value{kind: KindStruct, members: out}
}

func (v Value) Kind() Kind         { return v.kind }
func (v Value) Bool() bool         { return v.b }
func (v Value) Int() int32         { return v.i }
func (v Value) Double() float64    { return v.f }
func (v Value) Text() string       { return v.s }
func (v Value) DateTime() DateTime { return v.dt }

// Bytes returns a copy of a base64 Value's payload.
func (v Value) Bytes() []byte { return append([]byte(nil), v.bin...) }

// Items returns the elements of an array Value.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// Members returns the members of a struct Value in insertion order.
func (v Value) Members() []Member { return append([]Member(nil), v.members...) }

// Member looks up a struct member by name.
func (v Value) Member(name string) (Value, bool) {
	for _, m := range v.members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Len is the element count of an array or the member count of a struct.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindStruct:
		return len(v.members)
	}
	return 0
}

// Native converts the Value tree back to plain Go data:
// bool, int, float64, string, DateTime, Base64, []any and *Struct.
func (v Value) Native() any {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindInt:
		return int(v.i)
	case KindDouble:
		return v.f
	case KindDateTime:
		return v.dt
	case KindBase64:
		return Base64(v.Bytes())
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	case KindStruct:
		st := NewStruct()
		for _, m := range v.members {
			st.Set(m.Name, m.Value.Native())
		}
		return st
	}
	return v.s
}

// Equal reports structural equality. Struct members are matched by name, so
// member order does not matter.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBoolean:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindDouble:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindDateTime:
		return a.dt == b.dt
	case KindBase64:
		return bytes.Equal(a.bin, b.bin)
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Member(m.Name)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return a.s == b.s
}

// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

// Package value defines the tagged-union Value representation shared by
// every subsystem of the loom runtime: the string/rope engine, tables,
// closures/upvalues, call frames, and the interpreter.
package value

import "fmt"

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KNil Kind = iota
	KBool
	KLightPtr
	KNumber
	KObj
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "nil"
	case KBool:
		return "boolean"
	case KLightPtr:
		return "userdata"
	case KNumber:
		return "number"
	case KObj:
		return "object"
	default:
		return "unknown"
	}
}

// Collectable is implemented by every heap-allocated object reachable from
// a Value: strings (short/long/rope/substring), tables, closures,
// upvalues, userdata and threads. Every Collectable embeds a Header.
type Collectable interface {
	GCHeader() *Header
	TypeName() string
}

// Mark/colour bits packed into Header.mark, mirroring a classic
// tri-colour incremental collector's bit layout.
const (
	White0Bit byte = 1 << iota
	White1Bit
	GrayBit // absence of both white bits and the black bit
	BlackBit
	FixedBit       // never collected (e.g. interned short strings of reserved words)
	FinalizedBit   // finalizer has already run
	SeparatedBit   // object is linked onto the finalizer-pending list
)

const whiteBits = White0Bit | White1Bit

// ObjType is the one-byte type tag carried by every Collectable's Header.
type ObjType uint8

const (
	TagShortStr ObjType = iota
	TagLongStr
	TagRope
	TagSubstr
	TagTable
	TagNativeClosure
	TagScriptedClosure
	TagUserdata
	TagThread
	TagPrototype
	TagUpvalue
)

func (t ObjType) String() string {
	names := [...]string{
		"short-string", "long-string", "rope", "substring", "table",
		"native-closure", "scripted-closure", "userdata", "thread",
		"prototype", "upvalue",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Header is the common prefix of every collectable heap object: the
// all-objects forward link, GC mark/colour bits, and the type tag.
type Header struct {
	Next *Header
	Mark byte
	Tag  ObjType
}

// GCHeader satisfies Collectable for embedders that forget to override it;
// concrete types normally embed Header directly so this is rarely called
// through the interface value itself.
func (h *Header) GCHeader() *Header { return h }

// TypeName renders the tag as a user-visible type name.
func (h *Header) TypeName() string { return h.Tag.String() }

// IsWhite reports whether the object is still either shade of white
// (i.e. not yet proven reachable in the current GC cycle).
func (h *Header) IsWhite() bool { return h.Mark&whiteBits != 0 }

// IsBlack reports whether the object has been fully marked.
func (h *Header) IsBlack() bool { return h.Mark&BlackBit != 0 }

// IsDead reports whether the object's white bit does not match the
// collector's "current white" and it has not been fixed; such objects are
// swept on the next pass.
func (h *Header) IsDead(currentWhite byte) bool {
	return h.Mark&whiteBits&^currentWhite != 0 && h.Mark&FixedBit == 0
}

// ChangeWhite flips which of the two white bits an object carries; used
// when a dead-looking object is found still reachable (e.g. re-interned).
func (h *Header) ChangeWhite() {
	h.Mark ^= whiteBits
}

// SetBlack forces the object black, used by the rope builder to protect a
// freshly materialized string from being swept mid-cycle (see strtab.Build).
func (h *Header) SetBlack() {
	h.Mark &^= whiteBits
	h.Mark |= BlackBit
}

// Value is the runtime's tagged union. Numbers are IEEE-754 float64;
// booleans are stored as 0/1 in the same float64 field as numbers; light
// pointers and collectable objects (a pointer to a Header-bearing
// object) are stored in the interface{} field.
type Value struct {
	kind Kind
	n    float64        // KNumber payload, and KBool as 0/1
	p    interface{}     // KLightPtr payload (opaque host pointer) or KObj payload
}

// Nil is the zero Value.
var Nil = Value{kind: KNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KBool, n: 1}
	}
	return Value{kind: KBool, n: 0}
}

// Number constructs a numeric Value.
func Number(f float64) Value { return Value{kind: KNumber, n: f} }

// LightPtr constructs a value wrapping an opaque host pointer that is not
// GC-managed by loom (e.g. a host callback context).
func LightPtr(p interface{}) Value { return Value{kind: KLightPtr, p: p} }

// Obj constructs a Value referencing a collectable heap object.
func Obj(o Collectable) Value { return Value{kind: KObj, p: o} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.kind == KNil }

// IsFalsy reports whether v is treated as false in a boolean context:
// nil and boolean-false are falsy, everything else (including 0 and the
// empty string) is truthy, matching the source language's semantics.
func (v Value) IsFalsy() bool {
	return v.kind == KNil || (v.kind == KBool && v.n == 0)
}

// AsBool extracts the boolean payload; callers must check Kind() == KBool.
func (v Value) AsBool() bool { return v.n != 0 }

// AsNumber extracts the numeric payload; callers must check Kind() == KNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsLightPtr extracts the light-pointer payload.
func (v Value) AsLightPtr() interface{} { return v.p }

// AsObj extracts the collectable-object payload; callers must check
// Kind() == KObj.
func (v Value) AsObj() Collectable {
	if v.p == nil {
		return nil
	}
	return v.p.(Collectable)
}

// TypeName returns the source-language visible type name of v.
func (v Value) TypeName() string {
	if v.kind == KObj {
		return v.AsObj().TypeName()
	}
	return v.kind.String()
}

// RawEqual implements identity/content equality without metamethods:
// numbers and booleans compare by value, light pointers by Go == on the
// wrapped interface value, objects by pointer identity (strings are
// expected to have already been resolved to a comparable form by the
// caller — see valuesEqual in loom/vm for the content comparison that
// accounts for rope/substring aliasing).
func (v Value) RawEqual(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KNil:
		return true
	case KBool, KNumber:
		return v.n == o.n
	case KLightPtr:
		return v.p == o.p
	case KObj:
		return v.p == o.p
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KNil:
		return "nil"
	case KBool:
		return fmt.Sprintf("%v", v.n != 0)
	case KNumber:
		return fmt.Sprintf("%g", v.n)
	case KLightPtr:
		return fmt.Sprintf("userdata: %p", v.p)
	case KObj:
		return fmt.Sprintf("%s: %p", v.TypeName(), v.p)
	default:
		return "<invalid>"
	}
}

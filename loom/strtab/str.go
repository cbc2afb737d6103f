// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package strtab implements the runtime's string representation: short
// interned strings, long non-interned strings, lazy concatenation ropes,
// and substring views, all unified behind the Str interface. Layout and
// algorithms are ported from the reference VM's lstring.c (luaS_newlstr,
// luaS_concat, luaS_build) onto Go types carrying a value.Header.
package strtab

import "github.com/loomlang/loom/loom/value"

// shortStrMax is the largest byte length eligible for short-string
// interning; anything longer becomes a LongStr.
const shortStrMax = 40

// ropeAllocMinSize is the materialization threshold above which Build
// allocates its scratch buffer on the heap instead of using a pooled
// scratch buffer, mirroring ROPE_ALLOC_MIN_SIZE in the reference source.
const ropeAllocMinSize = 32 * 1024

// Str is satisfied by every string-variant object: short interned
// strings, long strings, rope (lazy concatenation) nodes, and substring
// views. Len reports the logical byte length without materializing a
// rope. Bytes forces materialization (via Build, for *Rope) and returns
// the flat byte contents; callers that only need to compare or hash
// short strings can avoid this.
type Str interface {
	value.Collectable
	Len() int
	Bytes() []byte
}

// ShortStr is an interned, hash-consed string short enough that content
// equality can be checked by pointer equality. This package does not set
// FixedBit on any interned string.
type ShortStr struct {
	value.Header
	hash uint32
	data string

	// next chains to the following entry in the same intern-table
	// bucket; see table.go.
	next *ShortStr
}

func (s *ShortStr) Len() int       { return len(s.data) }
func (s *ShortStr) Bytes() []byte  { return []byte(s.data) }
func (s *ShortStr) String() string { return s.data }
func (s *ShortStr) Hash() uint32   { return s.hash }

// LongStr is a string longer than shortStrMax. It is not interned; its
// content digest is computed lazily by Table.Digest and memoized in the
// Table's longHashes cache (see digest.go) so repeated table-key use
// doesn't re-hash it. The hash/hashCached fields are not used by this
// package.
type LongStr struct {
	value.Header
	data       string
	hash       uint32
	hashCached bool
}

func (s *LongStr) Len() int       { return len(s.data) }
func (s *LongStr) Bytes() []byte  { return []byte(s.data) }
func (s *LongStr) String() string { return s.data }

// Rope is a lazily-concatenated pair of strings: luaS_concat builds one
// of these in O(1) instead of eagerly copying both operands. Res caches
// the materialized result once Build has run; Left/Right are cleared
// when Res is set so the rope no longer pins its children.
type Rope struct {
	value.Header
	length int
	Left   Str
	Right  Str
	Res    Str // non-nil once materialized

	homeCluster *ropeCluster
	homeIndex   uint8
}

func (r *Rope) Len() int { return r.length }

// Bytes materializes the rope (via Build, cached in Res) and returns its
// flat contents.
func (r *Rope) Bytes() []byte {
	return Build(r).Bytes()
}

// Substr is a view over [Offset, Offset+Len) bytes of Parent, used to
// represent string.sub-style slices without copying. Parent is always a
// ShortStr, LongStr, or an already-materialized Rope's Res — never
// another Substr or an unmaterialized Rope — so indexing is O(1).
type Substr struct {
	value.Header
	Parent Str
	Offset int
	length int

	homeCluster *substrCluster
	homeIndex   uint8
}

func (s *Substr) Len() int { return s.length }

func (s *Substr) Bytes() []byte {
	return s.Parent.Bytes()[s.Offset : s.Offset+s.length]
}

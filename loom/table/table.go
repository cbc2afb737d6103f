// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package table implements the hybrid array+hash table that backs every
// source-language table value: a dense 1-based array part for
// consecutive integer keys plus a hash part for everything else.
package table

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/value"
)

// ErrNilKey and ErrNaNKey are returned by Set for the two key shapes the
// source language forbids, mirroring luaH_newkey's "table index is
// nil"/"table index is NaN" errors.
var (
	ErrNilKey = errors.New("table: index is nil")
	ErrNaNKey = errors.New("table: index is NaN")
)

// missingMeta bits cache which metamethods are known absent, so the
// interpreter's fast path can skip a metatable lookup entirely once a
// table has been probed once. Bit positions are assigned by the vm
// package; table only stores the bitmask.
type missingMeta uint32

// Table is one source-language table value.
type Table struct {
	value.Header

	array []value.Value
	hash  map[key]hashEntry

	Metatable *Table
	missing   missingMeta
}

// hashEntry keeps the original key Value alongside the stored value, so
// Next can hand the caller back the exact key it was given (rather than
// trying to reconstruct, say, a string object from its normalized
// content) while lookups still go through the cheap comparable key.
type hashEntry struct {
	k value.Value
	v value.Value
}

// New constructs an empty table, optionally pre-sizing the array and
// hash parts (either may be zero).
func New(narr, nhash int) *Table {
	t := &Table{}
	t.Tag = value.TagTable
	if narr > 0 {
		t.array = make([]value.Value, narr)
		for i := range t.array {
			t.array[i] = value.Nil
		}
	}
	if nhash > 0 {
		t.hash = make(map[key]hashEntry, nhash)
	}
	return t
}

// key is the hash-part's comparable projection of a value.Value. Number
// and boolean payloads collapse onto the num field; light pointers and
// non-string objects key by Go identity; strings (in any of their four
// representations) key by materialized content, so a Rope and a
// ShortStr holding the same bytes collide in the same bucket the way
// the source language's raw equality requires.
type key struct {
	kind value.Kind
	num  float64
	str  string
	ptr  interface{}
}

func normalize(v value.Value) key {
	switch v.Kind() {
	case value.KNil:
		return key{kind: value.KNil}
	case value.KBool:
		n := 0.0
		if v.AsBool() {
			n = 1
		}
		return key{kind: value.KBool, num: n}
	case value.KNumber:
		return key{kind: value.KNumber, num: v.AsNumber()}
	case value.KLightPtr:
		return key{kind: value.KLightPtr, ptr: v.AsLightPtr()}
	default: // KObj
		obj := v.AsObj()
		if s, ok := obj.(strtab.Str); ok {
			return key{kind: value.KObj, str: string(s.Bytes())}
		}
		return key{kind: value.KObj, ptr: obj}
	}
}

// arrayIndex reports whether v is an integral number, and its value,
// regardless of whether it currently falls inside the array part.
func arrayIndex(v value.Value) (int, bool) {
	if v.Kind() != value.KNumber {
		return 0, false
	}
	f := v.AsNumber()
	i := int(f)
	if float64(i) != f {
		return 0, false
	}
	return i, true
}

// Get returns the value stored at k, or value.Nil if absent. Get never
// errors: a nil or NaN key simply cannot be present.
func (t *Table) Get(k value.Value) value.Value {
	if i, ok := arrayIndex(k); ok && i >= 1 && i <= len(t.array) {
		return t.array[i-1]
	}
	if t.hash == nil {
		return value.Nil
	}
	if e, ok := t.hash[normalize(k)]; ok {
		return e.v
	}
	return value.Nil
}

// Set stores v at k, growing the array part when k is the next
// consecutive integer index and migrating any hash-part entries that
// become contiguous with it, matching the reference table's
// array/hash rebalancing on insert.
func (t *Table) Set(k, v value.Value) error {
	if k.IsNil() {
		return ErrNilKey
	}
	if k.Kind() == value.KNumber && math.IsNaN(k.AsNumber()) {
		return ErrNaNKey
	}
	if i, ok := arrayIndex(k); ok {
		switch {
		case i >= 1 && i <= len(t.array):
			t.array[i-1] = v
			return nil
		case i == len(t.array)+1 && !v.IsNil():
			t.array = append(t.array, v)
			t.absorbFromHash()
			return nil
		}
	}
	nk := normalize(k)
	if v.IsNil() {
		if t.hash != nil {
			delete(t.hash, nk)
		}
		return nil
	}
	if t.hash == nil {
		t.hash = make(map[key]hashEntry)
	}
	t.hash[nk] = hashEntry{k: k, v: v}
	return nil
}

// absorbFromHash pulls any hash-part entries whose integer key has
// become the array part's next index, repeating until no more are
// found. This is what lets `t[5] = x; t[4] = y; t[3] = z` (in any
// order) end up entirely in the array part.
func (t *Table) absorbFromHash() {
	if t.hash == nil {
		return
	}
	for {
		next := len(t.array) + 1
		nk := key{kind: value.KNumber, num: float64(next)}
		e, ok := t.hash[nk]
		if !ok {
			return
		}
		delete(t.hash, nk)
		t.array = append(t.array, e.v)
	}
}

// Len returns a border: an index n such that t[n] is non-nil (or n==0)
// and t[n+1] is nil. Like the reference implementation, behaviour is
// only well-defined for tables without holes in the array part; with
// holes any valid border may be returned.
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && t.array[n-1].IsNil() {
		n--
	}
	if n == len(t.array) {
		// Array part is full to its end; a border may continue into
		// the hash part via consecutive integer keys.
		for {
			nk := key{kind: value.KNumber, num: float64(n + 1)}
			if t.hash == nil {
				break
			}
			if e, ok := t.hash[nk]; !ok || e.v.IsNil() {
				break
			}
			n++
		}
	}
	return n
}

// Next implements stateless iteration (the `next` builtin): given the
// previously-returned key (value.Nil to start), it returns the
// following key/value pair and true, or (Nil, Nil, false) when
// iteration is exhausted. Like the reference table, mutating the table
// between calls other than assigning to existing keys or removing the
// just-visited one is undefined.
func (t *Table) Next(k value.Value) (value.Value, value.Value, bool) {
	startArray := 0
	if !k.IsNil() {
		if i, ok := arrayIndex(k); ok && i >= 1 && i <= len(t.array) {
			startArray = i
		} else {
			return t.nextHash(normalize(k), true)
		}
	}
	for i := startArray; i < len(t.array); i++ {
		if !t.array[i].IsNil() {
			return value.Number(float64(i + 1)), t.array[i], true
		}
	}
	return t.nextHash(key{}, false)
}

// nextHash walks the hash part in the sorted key order produced by
// sortedHashKeysOnce. When resuming mid-part it must scan until it
// finds the key just visited, since Go maps expose no cursor; callers
// should not rely on any particular traversal order.
func (t *Table) nextHash(after key, resuming bool) (value.Value, value.Value, bool) {
	if t.hash == nil {
		return value.Nil, value.Nil, false
	}
	keys := t.sortedHashKeysOnce()
	start := 0
	if resuming {
		found := false
		for i, k := range keys {
			if k == after {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return value.Nil, value.Nil, false
		}
	}
	for _, k := range keys[start:] {
		e := t.hash[k]
		if !e.v.IsNil() {
			return e.k, e.v, true
		}
	}
	return value.Nil, value.Nil, false
}

// sortedHashKeysOnce snapshots the current hash-part keys, sorted so
// that successive snapshots of an unchanged table list the keys in the
// same order. A fresh snapshot per call keeps iteration simple at the
// cost of O(n log n) work per Next call into the hash part; table
// iteration is not expected to be on the interpreter's hot path.
func (t *Table) sortedHashKeysOnce() []key {
	keys := make([]key, 0, len(t.hash))
	for k := range t.hash {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.num != b.num {
			return a.num < b.num
		}
		if a.str != b.str {
			return a.str < b.str
		}
		return fmt.Sprintf("%p", a.ptr) < fmt.Sprintf("%p", b.ptr)
	})
	return keys
}

// MetaMissing reports whether bit is set in the cached missing-metamethod
// mask.
func (t *Table) MetaMissing(bit uint) bool {
	return t.missing&(1<<bit) != 0
}

// SetMetaMissing records that the metamethod identified by bit is absent
// from this table's current metatable, so the interpreter can skip
// re-probing it until the metatable changes.
func (t *Table) SetMetaMissing(bit uint) {
	t.missing |= missingMeta(1 << bit)
}

// ClearMetaMissing resets the cache, used whenever Metatable is reassigned.
func (t *Table) ClearMetaMissing() {
	t.missing = 0
}

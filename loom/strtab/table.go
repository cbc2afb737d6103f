// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/loomlang/loom/loom/value"
)

// minBuckets is the initial short-string intern table size; it doubles
// (luaS_resize) once the number of interned entries reaches the bucket
// count.
const minBuckets = 32

// Table is the per-Global string subsystem: the short-string intern
// table, the rope and substring cluster pools, and a memoization cache
// for long-string content hashes. A Global owns exactly one Table.
type Table struct {
	seed    uint32
	buckets []*ShortStr
	nuse    int

	ropes   ropePool
	substrs substrPool

	// longHashes memoizes the content digest of long strings keyed by
	// object identity, so repeated use of an unchanged long string as a
	// table key doesn't re-hash its bytes. See digest.go.
	longHashes *lru.Cache
}

// NewTable constructs an empty string table. seed should be a
// per-process random value (the reference implementation samples one at
// startup) so that hash-flooding a long-running host requires guessing
// it.
func NewTable(seed uint32) *Table {
	cache, err := lru.New(4096)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens here.
		panic(err)
	}
	return &Table{
		seed:       seed,
		buckets:    make([]*ShortStr, minBuckets),
		longHashes: cache,
	}
}

// NewLStr interns data as a short string if it fits under shortStrMax,
// otherwise allocates a fresh, non-interned long string. This is the
// entry point used for string literals and host-supplied byte slices;
// it is not used for Build's output, which always produces a long
// string regardless of length (matching the reference build routine).
func (t *Table) NewLStr(data []byte) Str {
	if len(data) > shortStrMax {
		return newLongStr(data)
	}
	h := hashBytes(t.seed, data)
	idx := h % uint32(len(t.buckets))
	for s := t.buckets[idx]; s != nil; s = s.next {
		if s.hash == h && s.data == string(data) {
			return s
		}
	}
	if t.nuse >= len(t.buckets) && len(t.buckets) <= 1<<30 {
		t.resize(len(t.buckets) * 2)
		idx = h % uint32(len(t.buckets))
	}
	s := &ShortStr{hash: h, data: string(data)}
	s.Tag = value.TagShortStr
	s.next = t.buckets[idx]
	t.buckets[idx] = s
	t.nuse++
	return s
}

// resize rehashes every interned entry into a table of n buckets,
// mirroring luaS_resize.
func (t *Table) resize(n int) {
	next := make([]*ShortStr, n)
	for _, head := range t.buckets {
		for s := head; s != nil; {
			rest := s.next
			idx := s.hash % uint32(n)
			s.next = next[idx]
			next[idx] = s
			s = rest
		}
	}
	t.buckets = next
}

// Concat builds an unresolved rope node over l and r in O(1): no bytes
// are copied, and the result's length is cached so #s does not force a
// materialization.
func (t *Table) Concat(l, r Str) Str {
	n := t.ropes.alloc()
	n.Tag = value.TagRope
	n.length = l.Len() + r.Len()
	n.Left = l
	n.Right = r
	return n
}

// NewSubstr builds a view over [offset, offset+length) of parent. parent
// must already be materialized (a ShortStr, LongStr, or a Rope whose Res
// is set) — an unresolved Rope parent must be built first.
func (t *Table) NewSubstr(parent Str, offset, length int) Str {
	n := t.substrs.alloc()
	n.Tag = value.TagSubstr
	n.Parent = parent
	n.Offset = offset
	n.length = length
	return n
}

// FreeRope releases a Rope node's cluster slot. Callers must have
// already unlinked it from any Value referencing it; the sweep phase is
// expected to call this for unreachable rope nodes.
func (t *Table) FreeRope(n *Rope) { t.ropes.free(n) }

// FreeSubstr releases a Substr node's cluster slot.
func (t *Table) FreeSubstr(n *Substr) { t.substrs.free(n) }

// SweepClusters consolidates empty rope/substring clusters, keeping at
// most one of each as a reserve. Called at the end of a GC cycle.
func (t *Table) SweepClusters() {
	t.ropes.sweep()
	t.substrs.sweep()
}

// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

import (
	"bytes"
	"strings"
	"testing"
)

func newTestTable() *Table {
	return NewTable(0x9e3779b9)
}

func TestShortStringsAreInterned(t *testing.T) {
	tb := newTestTable()
	a := tb.NewLStr([]byte("hello"))
	b := tb.NewLStr([]byte("hello"))
	if a != b {
		t.Fatalf("expected identical pointers for equal short strings, got %p and %p", a, b)
	}
	c := tb.NewLStr([]byte("world"))
	if a == c {
		t.Fatalf("distinct short strings must not alias")
	}
}

func TestShortStringInternGrowsTable(t *testing.T) {
	tb := newTestTable()
	seen := make(map[Str]struct{})
	for i := 0; i < 500; i++ {
		s := tb.NewLStr([]byte(strings.Repeat("a", i%shortStrMax+1) + string(rune('A'+i%26))))
		seen[s] = struct{}{}
	}
	if tb.nuse == 0 {
		t.Fatalf("expected interned entries")
	}
	if len(tb.buckets) <= minBuckets {
		t.Fatalf("expected table to have grown past %d buckets, got %d", minBuckets, len(tb.buckets))
	}
}

func TestLongStringsAreNotInterned(t *testing.T) {
	tb := newTestTable()
	long := strings.Repeat("x", shortStrMax+1)
	a := tb.NewLStr([]byte(long))
	b := tb.NewLStr([]byte(long))
	if a == b {
		t.Fatalf("long strings must not be hash-consed")
	}
	if _, ok := a.(*LongStr); !ok {
		t.Fatalf("expected *LongStr, got %T", a)
	}
}

func TestConcatDoesNotMaterialize(t *testing.T) {
	tb := newTestTable()
	a := tb.NewLStr([]byte("foo"))
	b := tb.NewLStr([]byte("bar"))
	r := tb.Concat(a, b)
	rope, ok := r.(*Rope)
	if !ok {
		t.Fatalf("expected *Rope, got %T", r)
	}
	if rope.Res != nil {
		t.Fatalf("concat must not eagerly materialize")
	}
	if rope.Len() != 6 {
		t.Fatalf("expected cached length 6, got %d", rope.Len())
	}
}

func TestBuildMatchesConcatenation(t *testing.T) {
	tb := newTestTable()
	a := tb.NewLStr([]byte("abc"))
	b := tb.NewLStr([]byte("def"))
	c := tb.NewLStr([]byte("ghi"))
	ab := tb.Concat(a, b).(*Rope)
	abc := tb.Concat(ab, c).(*Rope)

	got := Build(abc).Bytes()
	if !bytes.Equal(got, []byte("abcdefghi")) {
		t.Fatalf("build mismatch: got %q", got)
	}
	if abc.Left != nil || abc.Right != nil {
		t.Fatalf("expected build to clear left/right after materializing")
	}
	if abc.Res == nil {
		t.Fatalf("expected build to cache result in Res")
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	tb := newTestTable()
	a := tb.NewLStr([]byte("one"))
	b := tb.NewLStr([]byte("two"))
	r := tb.Concat(a, b).(*Rope)
	first := Build(r)
	second := Build(r)
	if first != second {
		t.Fatalf("repeated Build must return the cached result")
	}
}

func TestBuildLargeRope(t *testing.T) {
	tb := newTestTable()
	var cur Str = tb.NewLStr([]byte("x"))
	const n = 2000
	for i := 0; i < n; i++ {
		cur = tb.Concat(cur, tb.NewLStr([]byte("x")))
	}
	got := Build(cur.(*Rope)).Bytes()
	if len(got) != n+1 {
		t.Fatalf("expected length %d, got %d", n+1, len(got))
	}
	if !bytes.Equal(got, bytes.Repeat([]byte("x"), n+1)) {
		t.Fatalf("unexpected content")
	}
}

func TestSubstrView(t *testing.T) {
	tb := newTestTable()
	s := tb.NewLStr([]byte("hello world"))
	sub := tb.NewSubstr(s, 6, 5).(*Substr)
	if string(sub.Bytes()) != "world" {
		t.Fatalf("expected %q, got %q", "world", sub.Bytes())
	}
	if sub.Len() != 5 {
		t.Fatalf("expected length 5, got %d", sub.Len())
	}
}

func TestDigestStableForImmutableLongString(t *testing.T) {
	tb := newTestTable()
	long := strings.Repeat("y", shortStrMax+10)
	s := tb.NewLStr([]byte(long))
	d1 := tb.Digest(s)
	d2 := tb.Digest(s)
	if d1 != d2 {
		t.Fatalf("expected memoized digest to be stable, got %d then %d", d1, d2)
	}
}

func TestClusterAllocAndFreeReusesSlot(t *testing.T) {
	tb := newTestTable()
	a := tb.NewLStr([]byte("a"))
	b := tb.NewLStr([]byte("b"))
	r := tb.Concat(a, b).(*Rope)
	home := r.homeCluster
	idx := r.homeIndex
	tb.FreeRope(r)
	if home.free&(1<<idx) == 0 {
		t.Fatalf("expected slot %d to be marked free after FreeRope", idx)
	}
	r2 := tb.ropes.alloc()
	if r2 != r {
		t.Fatalf("expected freed slot to be reused by next alloc")
	}
}

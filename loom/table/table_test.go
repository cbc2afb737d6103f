// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package table

import (
	"testing"

	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/value"
)

func TestArrayPartBasic(t *testing.T) {
	tb := New(0, 0)
	if err := tb.Set(value.Number(1), value.Number(10)); err != nil {
		t.Fatal(err)
	}
	if err := tb.Set(value.Number(2), value.Number(20)); err != nil {
		t.Fatal(err)
	}
	if got := tb.Get(value.Number(1)); got.AsNumber() != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	if tb.Len() != 2 {
		t.Fatalf("expected len 2, got %d", tb.Len())
	}
}

func TestSetNilKeyErrors(t *testing.T) {
	tb := New(0, 0)
	if err := tb.Set(value.Nil, value.Number(1)); err != ErrNilKey {
		t.Fatalf("expected ErrNilKey, got %v", err)
	}
}

func TestSetNaNKeyErrors(t *testing.T) {
	tb := New(0, 0)
	nan := value.Number(nanValue())
	if err := tb.Set(nan, value.Number(1)); err != ErrNaNKey {
		t.Fatalf("expected ErrNaNKey, got %v", err)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestHashPartAndMixedKeys(t *testing.T) {
	tb := New(0, 0)
	strTab := strtab.NewTable(1)
	k := value.Obj(strTab.NewLStr([]byte("name")))
	if err := tb.Set(k, value.Number(42)); err != nil {
		t.Fatal(err)
	}
	got := tb.Get(k)
	if got.AsNumber() != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestStringKeysCompareByContent(t *testing.T) {
	tb := New(0, 0)
	strTab := strtab.NewTable(1)
	a := strTab.NewLStr([]byte("foo"))
	b := strTab.NewLStr([]byte("f")) // build a different object holding "foo" via rope
	rope := strTab.Concat(b, strTab.NewLStr([]byte("oo")))
	built := strtab.Build(rope.(*strtab.Rope))

	if err := tb.Set(value.Obj(a), value.Number(1)); err != nil {
		t.Fatal(err)
	}
	got := tb.Get(value.Obj(built))
	if got.AsNumber() != 1 {
		t.Fatalf("expected rope-materialized key to alias the short string's entry, got %v", got)
	}
}

func TestArrayAbsorbsContiguousHashKeys(t *testing.T) {
	tb := New(0, 0)
	if err := tb.Set(value.Number(1), value.Number(1)); err != nil {
		t.Fatal(err)
	}
	// Insert 3 before 2: 3 must sit in the hash part until 2 arrives.
	if err := tb.Set(value.Number(3), value.Number(3)); err != nil {
		t.Fatal(err)
	}
	if err := tb.Set(value.Number(2), value.Number(2)); err != nil {
		t.Fatal(err)
	}
	if tb.Len() != 3 {
		t.Fatalf("expected len 3 after absorbing contiguous hash keys, got %d", tb.Len())
	}
	for i := 1; i <= 3; i++ {
		if got := tb.Get(value.Number(float64(i))); got.AsNumber() != float64(i) {
			t.Fatalf("expected %d at index %d, got %v", i, i, got)
		}
	}
}

func TestDeleteByNilValue(t *testing.T) {
	tb := New(0, 0)
	tb.Set(value.Number(1), value.Number(1))
	tb.Set(value.Number(1), value.Nil)
	if got := tb.Get(value.Number(1)); !got.IsNil() {
		t.Fatalf("expected nil after delete, got %v", got)
	}
}

func TestNextIteratesAllEntries(t *testing.T) {
	tb := New(0, 0)
	tb.Set(value.Number(1), value.Number(10))
	tb.Set(value.Number(2), value.Number(20))
	strTab := strtab.NewTable(1)
	k := value.Obj(strTab.NewLStr([]byte("x")))
	tb.Set(k, value.Number(99))

	seen := map[float64]bool{}
	cur := value.Nil
	count := 0
	for {
		nk, nv, ok := tb.Next(cur)
		if !ok {
			break
		}
		seen[nv.AsNumber()] = true
		cur = nk
		count++
		if count > 10 {
			t.Fatalf("Next did not terminate")
		}
	}
	if !seen[10] || !seen[20] || !seen[99] {
		t.Fatalf("expected to see all three values, got %v", seen)
	}
}

func TestMetaMissingCache(t *testing.T) {
	tb := New(0, 0)
	if tb.MetaMissing(3) {
		t.Fatalf("expected bit unset initially")
	}
	tb.SetMetaMissing(3)
	if !tb.MetaMissing(3) {
		t.Fatalf("expected bit set after SetMetaMissing")
	}
	tb.ClearMetaMissing()
	if tb.MetaMissing(3) {
		t.Fatalf("expected bit cleared after ClearMetaMissing")
	}
}

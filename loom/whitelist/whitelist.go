// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package whitelist implements the sandboxed host's allowed-native-
// function registry: every CALL targeting a native closure is checked
// against a 256-bucket hash of permitted function pointers before it
// runs, so scripted code that obtains an opaque function value through
// a bug or deserialization cannot invoke an arbitrary host function.
// Grounded on the reference VM's
// G(L)->allowedcfuncs[((ptrdiff_t)cl->c.f >> 4) & 0xFF] bucket-chain check.
package whitelist

import (
	"reflect"

	mapset "github.com/deckarep/golang-set"
)

const numBuckets = 256

// Whitelist is a 256-bucket set of permitted native function pointers,
// sharded by the same address nybble the reference implementation uses,
// so each bucket holds only the registered functions whose address
// falls in its shard.
type Whitelist struct {
	buckets [numBuckets]mapset.Set
}

// New constructs an empty whitelist.
func New() *Whitelist {
	w := &Whitelist{}
	for i := range w.buckets {
		w.buckets[i] = mapset.NewThreadUnsafeSet()
	}
	return w
}

func bucketOf(ptr uintptr) int {
	return int((ptr >> 4) & (numBuckets - 1))
}

// funcPointer extracts the code pointer of a Go function value via
// reflection, the Go analogue of casting a C function pointer to an
// integer.
func funcPointer(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Allow registers fn as callable.
func (w *Whitelist) Allow(fn interface{}) {
	ptr := funcPointer(fn)
	w.buckets[bucketOf(ptr)].Add(ptr)
}

// Forbid removes a previously allowed function.
func (w *Whitelist) Forbid(fn interface{}) {
	ptr := funcPointer(fn)
	w.buckets[bucketOf(ptr)].Remove(ptr)
}

// IsAllowed reports whether fn may be called.
func (w *Whitelist) IsAllowed(fn interface{}) bool {
	ptr := funcPointer(fn)
	return w.buckets[bucketOf(ptr)].Contains(ptr)
}

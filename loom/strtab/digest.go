// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Digest returns a stable 64-bit hash of s suitable for use as a table
// key. Short strings are already hash-consed by content (hashBytes at
// intern time), so Digest returns their stored intern hash; long strings are
// expensive to re-hash on every table access, so their digest is
// memoized in t.longHashes keyed by object identity — valid because
// LongStr content is immutable for the object's lifetime.
func (t *Table) Digest(s Str) uint64 {
	switch v := s.(type) {
	case *ShortStr:
		return uint64(v.hash)
	case *LongStr:
		if cached, ok := t.longHashes.Get(v); ok {
			return cached.(uint64)
		}
		d := shakeDigest64(v.data)
		t.longHashes.Add(v, d)
		return d
	default:
		// Ropes and substrings must be materialized before they can
		// serve as a table key.
		return shakeDigest64(string(s.Bytes()))
	}
}

func shakeDigest64(data string) uint64 {
	var sum [16]byte
	sha3.ShakeSum128(sum[:], []byte(data))
	return binary.LittleEndian.Uint64(sum[:8])
}

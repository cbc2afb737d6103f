// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

// hashBytes ports luaS_hash from lstring.c verbatim: a seeded,
// strided XOR-rotate hash that only samples every step-th byte once the
// string exceeds a handful of words, trading collision resistance for a
// hash that stays O(1)-ish on pathologically long inputs.
func hashBytes(seed uint32, data []byte) uint32 {
	h := seed ^ uint32(len(data))
	step := (len(data) >> 5) + 1
	for l1 := len(data); l1 >= step; l1 -= step {
		h ^= (h << 5) + (h >> 2) + uint32(data[l1-1])
	}
	return h
}

// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package strtab

import "github.com/loomlang/loom/loom/value"

// newLongStr allocates a fresh, non-interned long string over a copy of
// data. Long strings are never hash-consed: two calls with equal bytes
// produce two distinct objects, matching the reference implementation
// (only ShortStr is unique per content).
func newLongStr(data []byte) *LongStr {
	s := &LongStr{data: string(data)}
	s.Tag = value.TagLongStr
	return s
}

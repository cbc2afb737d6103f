// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import "errors"

// vmErrNotATable is returned by RawSet when the target Value is not a
// table, the same condition the SETTABLE opcode reports as "attempt to
// index a <type> value" (for instance "attempt to index a number value").
var vmErrNotATable = errors.New("api: attempt to index a non-table value")

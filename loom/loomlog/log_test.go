// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loomlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info("should not appear")
	l.Warn("should appear")
	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected Info to be filtered out, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected Warn line, got %q", out)
	}
}

func TestWithCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelTrace).With("component", "vm")
	l.Info("started", "pid", 42)
	out := buf.String()
	if !strings.Contains(out, "component=vm") {
		t.Fatalf("expected inherited field, got %q", out)
	}
	if !strings.Contains(out, "pid=42") {
		t.Fatalf("expected call-site field, got %q", out)
	}
}

func TestLevelString(t *testing.T) {
	if LevelCrit.String() != "CRIT" {
		t.Fatalf("unexpected level string: %s", LevelCrit)
	}
}

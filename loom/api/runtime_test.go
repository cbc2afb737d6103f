// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomlang/loom/loom/loomconfig"
	"github.com/loomlang/loom/loom/object"
	"github.com/loomlang/loom/loom/strtab"
	"github.com/loomlang/loom/loom/value"
	"github.com/loomlang/loom/loom/vm"
)

func double(state interface{}, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Number(args[0].AsNumber() * 2)}, nil
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := loomconfig.Defaults
	cfg.Whitelist = []string{"double"}
	reg := loomconfig.Registry{"double": object.NativeFunc(double)}
	rt, err := NewRuntime(cfg, reg, nil)
	assert.NoError(t, err)
	return rt
}

func TestRuntimeWhitelistAppliedFromConfig(t *testing.T) {
	rt := newTestRuntime(t)
	assert.True(t, rt.Global.Whitelist.IsAllowed(object.NativeFunc(double)))
}

func TestGlobalRoundTripThroughState(t *testing.T) {
	rt := newTestRuntime(t)
	st := rt.NewThread()

	err := st.SetGlobal("x", value.Number(7))
	assert.NoError(t, err)
	assert.Equal(t, 7.0, st.GetGlobal("x").AsNumber())
}

func TestPCallCatchesThrownError(t *testing.T) {
	rt := newTestRuntime(t)
	st := rt.NewThread()

	status, results, errVal := st.PCall(func(s *State) ([]value.Value, error) {
		return nil, errors.New("boom")
	})
	assert.Equal(t, vm.StatusErrRun, status)
	assert.Nil(t, results)
	assert.False(t, errVal.IsNil())
}

func TestXPCallInvokesHandlerOnError(t *testing.T) {
	rt := newTestRuntime(t)
	st := rt.NewThread()

	handlerCalled := false
	status, _, _ := st.XPCall(func(s *State) ([]value.Value, error) {
		return nil, errors.New("boom")
	}, func(v value.Value) value.Value {
		handlerCalled = true
		return v
	})
	assert.Equal(t, vm.StatusErrRun, status)
	assert.True(t, handlerCalled)
}

func TestConcatBuildsRopeString(t *testing.T) {
	rt := newTestRuntime(t)
	st := rt.NewThread()

	result := st.Concat(st.NewString("foo"), st.NewString("bar"))
	str, ok := result.AsObj().(strtab.Str)
	assert.True(t, ok)
	assert.Equal(t, "foobar", string(str.Bytes()))
}

func TestLoadMemoizesByDigest(t *testing.T) {
	rt := newTestRuntime(t)
	calls := 0
	decode := func(raw []byte) (*object.Prototype, error) {
		calls++
		return &object.Prototype{Source: string(raw)}, nil
	}

	p1, err := rt.Load([]byte("chunk-a"), decode)
	assert.NoError(t, err)
	p2, err := rt.Load([]byte("chunk-a"), decode)
	assert.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestLoadDecodeErrorPropagates(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Load([]byte("bad"), func(raw []byte) (*object.Prototype, error) {
		return nil, errors.New("malformed chunk")
	})
	assert.Error(t, err)
}

// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package plugins_test

import (
	"errors"
	"testing"

	"github.com/atomicdata-dev/atomicd/pkg/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClass = "https://example.com/classes/Widget"

func TestRegistry_RunBeforeApply_InvokesMatchingClass(t *testing.T) {
	r := plugins.NewRegistry()
	called := false
	r.Register(testClass, plugins.Hooks{
		BeforeApply: func(ctx plugins.Context) error {
			called = true
			assert.Equal(t, "https://example.com/w1", ctx.Subject)
			return nil
		},
	})

	err := r.RunBeforeApply([]string{testClass}, plugins.Context{Subject: "https://example.com/w1"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRegistry_RunBeforeApply_IgnoresUnregisteredClass(t *testing.T) {
	r := plugins.NewRegistry()
	err := r.RunBeforeApply([]string{"https://example.com/classes/Other"}, plugins.Context{})
	assert.NoError(t, err)
}

func TestRegistry_RunBeforeApply_StopsAtFirstError(t *testing.T) {
	r := plugins.NewRegistry()
	boom := errors.New("boom")
	secondCalled := false
	r.Register("https://example.com/classes/A", plugins.Hooks{BeforeApply: func(plugins.Context) error { return boom }})
	r.Register("https://example.com/classes/B", plugins.Hooks{BeforeApply: func(plugins.Context) error { secondCalled = true; return nil }})

	err := r.RunBeforeApply([]string{"https://example.com/classes/A", "https://example.com/classes/B"}, plugins.Context{})
	assert.Equal(t, boom, err)
	assert.False(t, secondCalled)
}

func TestRegistry_RunAfterApply_CollectsAllErrors(t *testing.T) {
	r := plugins.NewRegistry()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	r.Register("https://example.com/classes/A", plugins.Hooks{AfterApply: func(plugins.Context) error { return errA }})
	r.Register("https://example.com/classes/B", plugins.Hooks{AfterApply: func(plugins.Context) error { return errB }})

	errs := r.RunAfterApply([]string{"https://example.com/classes/A", "https://example.com/classes/B"}, plugins.Context{})
	assert.ElementsMatch(t, []error{errA, errB}, errs)
}

func TestRegistry_Register_ReplacesPriorHooksForSameClass(t *testing.T) {
	r := plugins.NewRegistry()
	r.Register(testClass, plugins.Hooks{BeforeApply: func(plugins.Context) error { return errors.New("old") }})
	r.Register(testClass, plugins.Hooks{BeforeApply: func(plugins.Context) error { return nil }})

	assert.NoError(t, r.RunBeforeApply([]string{testClass}, plugins.Context{}))
}

func TestRegistry_NilRegistry_IsSafeNoOp(t *testing.T) {
	var r *plugins.Registry
	assert.NoError(t, r.RunBeforeApply([]string{testClass}, plugins.Context{}))
	assert.Nil(t, r.RunAfterApply([]string{testClass}, plugins.Context{}))
}

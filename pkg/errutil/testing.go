// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails the test unless err carries the oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, Code(err), "full error: %v", err)
}

// AssertErrorContext fails the test unless err is an oops error whose
// context holds key with the given value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)

	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "full error: %v", err)
	assert.Equal(t, value, ctx[key])
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/partyline/internal/models"
)

func TestSnowflake_RoundTrip(t *testing.T) {
	gen := models.NewSnowflakeGenerator(3)
	id := gen.Next()

	parsed, err := models.ParseSnowflake(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.False(t, id.IsNil())
}

func TestSnowflake_TimestampIsRecent(t *testing.T) {
	gen := models.NewSnowflakeGenerator(0)
	id := gen.Next()

	assert.WithinDuration(t, time.Now(), id.Timestamp(), 2*time.Second)
}

func TestSnowflake_Unique(t *testing.T) {
	gen := models.NewSnowflakeGenerator(1)
	seen := make(map[models.Snowflake]struct{})
	for range 1000 {
		id := gen.Next()
		_, dup := seen[id]
		require.False(t, dup, "duplicate snowflake %s", id)
		seen[id] = struct{}{}
	}
}

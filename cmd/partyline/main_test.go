// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"gateway", "backend", "migrate"} {
		assert.Contains(t, output, sub, "help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config", "/etc/partyline.yaml", "--help"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/etc/partyline.yaml", configFile)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

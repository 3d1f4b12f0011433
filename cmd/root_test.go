package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "setup", "status", "headers"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "erp-ingest", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"manifest", "root", "only", "continue-on-error"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
	assert.Equal(t, "false", runCmd.Flags().Lookup("continue-on-error").DefValue)
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
	require.NotNil(t, statusCmd.Flags().Lookup("dataset"))
}

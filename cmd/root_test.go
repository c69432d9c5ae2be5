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

	for _, name := range []string{"serve", "migrate", "sync", "leads", "crm", "classify"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "heatos", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	flag = serveCmd.Flags().Lookup("no-sync")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestSubcommandTrees(t *testing.T) {
	tests := []struct {
		parent   string
		children []string
	}{
		{"sync", []string{"once", "run"}},
		{"leads", []string{"list", "show", "requeue", "stats", "export"}},
		{"crm", []string{"check", "find"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			parent, _, err := rootCmd.Find([]string{tt.parent})
			require.NoError(t, err)
			names := make(map[string]bool)
			for _, c := range parent.Commands() {
				names[c.Name()] = true
			}
			for _, child := range tt.children {
				assert.True(t, names[child], "expected %s %s", tt.parent, child)
			}
		})
	}
}

func TestLeadsListFlags(t *testing.T) {
	flag := leadsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)

	flag = leadsListCmd.Flags().ShorthandLookup("o")
	require.NotNil(t, flag)
	assert.Equal(t, formatTable, flag.DefValue)
}

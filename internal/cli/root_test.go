package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bspgen", cmd.Use)
	assert.Contains(t, cmd.Long, "CubeMX")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"generate"},
		{"import"},
		{"afdb", "import"},
		{"afdb", "lookup"},
		{"afdb", "list"},
		{"boards"},
		{"validate"},
		{"batch"},
		{"history"},
		{"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	genCmd, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)

	outFlag := genCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)
	assert.Equal(t, "out", outFlag.DefValue)

	for _, name := range []string{
		"template", "grouped-writes", "with-deinit", "allow-reserved", "per-peripheral",
		"use-label-names", "emit-label-consts", "label-prefix", "fail-on-duplicate-labels",
		"init-by", "owner", "core", "board-mod", "af-json", "vendor-db", "af-index",
		"vendor", "mcu", "package", "history",
	} {
		assert.NotNil(t, genCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	histCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	dbFlag := histCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is required, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)

	limitFlag := histCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)

	for _, name := range []string{"fingerprint", "mcu", "template", "layout"} {
		assert.NotNil(t, histCmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestAFDBImportCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	importCmd, _, err := cmd.Find([]string{"afdb", "import"})
	require.NoError(t, err)

	vendorFlag := importCmd.Flags().Lookup("vendor")
	require.NotNil(t, vendorFlag)
	assert.Equal(t, "st", vendorFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "generate", "board.ioc"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `prompt_rules:
  - trigger_text: 我想學英文
    system_prompt: 你是一位英文老師。
skip_keywords:
  - ok
  - 謝謝
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	data, err := readSeedFile(path)
	require.NoError(t, err)
	require.Len(t, data.PromptRules, 1)
	assert.Equal(t, "我想學英文", data.PromptRules[0].TriggerText)
	assert.Equal(t, []string{"ok", "謝謝"}, data.SkipKeywords)
}

func TestReadSeedFile_Missing(t *testing.T) {
	_, err := readSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "admin", "seed"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.Onboarding.ConcludeAfter)
	assert.Equal(t, PolicyLastWriteWins, cfg.Onboarding.ProfilePolicy)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
llm:
  provider: gemini
  model: gemini-2.5-flash
  timeout: 30s
onboarding:
  conclude_after: 7
  profile_policy: first-write-wins
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 7, cfg.Onboarding.ConcludeAfter)
	assert.Equal(t, PolicyFirstWriteWins, cfg.Onboarding.ProfilePolicy)
	// untouched keys keep their defaults
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CSW_DB_DRIVER", "sqlite")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CSW_CONCLUDE_AFTER", "3")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides(nil)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Onboarding.ConcludeAfter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Onboarding.ProfilePolicy = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Onboarding.ConcludeAfter = 0
	assert.Error(t, cfg.Validate())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-sos/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.ModeLocal, cfg.Mode)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.True(t, cfg.MockLLM())
	assert.Equal(t, 2*time.Second, cfg.Timing.ConnectDelay)
	assert.Equal(t, 15*time.Second, cfg.Timing.InboundInterval)
	assert.InDelta(t, 0.3, cfg.Timing.InboundProbability, 1e-9)
	assert.Equal(t, time.Second, cfg.Timing.WaitTick)
	assert.Equal(t, 60, cfg.Timing.AIHelpThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.ReplyDelay)
	assert.Equal(t, 3*time.Second, cfg.Timing.ReadSettleDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FARUM_CONNECT_DELAY", "250ms")
	t.Setenv("FARUM_AI_HELP_THRESHOLD", "5")
	t.Setenv("FARUM_USE_MOCK_LLM", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.ConnectDelay)
	assert.Equal(t, 5, cfg.Timing.AIHelpThreshold)
	assert.False(t, cfg.MockLLM())
}

func TestGCPModeRequiresProject(t *testing.T) {
	t.Setenv("FARUM_MODE", "gcp")
	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("FARUM_GCP_PROJECT", "demo")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.MockLLM(), "gcp mode uses Vertex unless told otherwise")
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("FARUM_INBOUND_PROBABILITY", "1.5")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestUnparsableDuration(t *testing.T) {
	t.Setenv("FARUM_REPLY_DELAY", "soon")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadScriptOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	raw := `
ai_help_greeting: "Hello from the assistant"
mood_statements:
  1: "Exhausted"
topics:
  - "Sleep"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	script, err := config.LoadScript(path)
	require.NoError(t, err)

	def := config.DefaultScript()
	assert.Equal(t, "Hello from the assistant", script.AIHelpGreeting)
	assert.Equal(t, "Exhausted", script.MoodStatements[1])
	assert.Equal(t, def.MoodStatements[2], script.MoodStatements[2])
	assert.Equal(t, []string{"Sleep"}, script.Topics)
	assert.Equal(t, def.InboundCandidates, script.InboundCandidates)
	assert.Equal(t, def.CounselorGreeting, script.CounselorGreeting)
}

func TestLoadScriptMissingFile(t *testing.T) {
	_, err := config.LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	script, err := config.LoadScript("")
	require.NoError(t, err)
	assert.Len(t, script.MoodStatements, 5)
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const validSuite = `
name: reliance-sweep
baseline: baseline
logging:
  level: debug
session:
  max_turns: 20
results:
  dir: out
collaborator:
  endpoint: http://localhost:8080/v1/decide
  model: small-model
configurations:
  - name: baseline
    maze_size: 8
    difficulty: easy
    noise_type: none
    strategy: trusting
    tool_enabled: false
    episodes: 20
    seed: 1
  - name: noisy
    maze_size: 8
    difficulty: easy
    noise_type: random
    noise_level: 0.5
    strategy: llm
    tool_enabled: true
    episodes: 20
    seed: 1
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mazesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidSuite(t *testing.T) {
	s, err := Load(writeSuite(t, validSuite))
	require.NoError(t, err)

	assert.Equal(t, "reliance-sweep", s.Name)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, 20, s.Session.MaxTurns)
	require.Len(t, s.Configurations, 2)

	// Defaults fill the gaps.
	assert.True(t, s.Metrics.Enabled)
	assert.Equal(t, 2112, s.Metrics.Port)

	// The llm configuration inherits collaborator defaults.
	assert.Equal(t, "http://localhost:8080/v1/decide", s.Configurations[1].Collaborator.Endpoint)

	// Tool access is a per-configuration grant.
	assert.False(t, s.Configurations[0].ToolEnabled)
	assert.True(t, s.Configurations[1].ToolEnabled)
}

func TestLoadRejectsUnknownBaseline(t *testing.T) {
	bad := validSuite + "\n"
	bad = replaceLine(bad, "baseline: baseline", "baseline: missing")
	_, err := Load(writeSuite(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline")
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	dup := replaceLine(validSuite, "  - name: noisy", "  - name: baseline")
	_, err := Load(writeSuite(t, dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsEmptyConfigurations(t *testing.T) {
	_, err := Load(writeSuite(t, "name: x\nconfigurations: []\n"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MAZESIM_METRICS_PORT", "9999")

	s, err := Load(writeSuite(t, validSuite))
	require.NoError(t, err)
	assert.Equal(t, 9999, s.Metrics.Port)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeSuite(t, validSuite)

	w, err := NewWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "reliance-sweep", w.Suite().Name)

	reloaded := make(chan *Suite, 1)
	w.OnReload(func(s *Suite) { reloaded <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	updated := replaceLine(validSuite, "name: reliance-sweep", "name: renamed-sweep")
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case s := <-reloaded:
		assert.Equal(t, "renamed-sweep", s.Name)
		assert.Equal(t, "renamed-sweep", w.Suite().Name)
	case <-time.After(5 * time.Second):
		t.Fatal("reload never fired")
	}
}

func TestWatcherKeepsLastGoodSuiteOnBadEdit(t *testing.T) {
	path := writeSuite(t, validSuite)

	w, err := NewWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("configurations: []\n"), 0o644))
	time.Sleep(time.Second)

	assert.Equal(t, "reliance-sweep", w.Suite().Name)
	assert.Len(t, w.Suite().Configurations, 2)
}

func replaceLine(s, from, to string) string {
	return strings.Replace(s, from, to, 1)
}

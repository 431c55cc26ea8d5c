package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/output"
)

func TestCheckArchiveFixtures(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "model", "testdata", "*.har"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			har, diff, err := checkArchive(data)
			require.NoError(t, err)
			assert.Empty(t, diff)
			assert.NotEmpty(t, har.Log.Entries)
		})
	}
}

func TestCheckArchiveReportsDroppedKeys(t *testing.T) {
	doc := `{"log":{"version":"1.2","creator":{"name":"x","version":"1","_build":"42"},"entries":[]}}`

	_, diff, err := checkArchive([]byte(doc))
	assert.ErrorIs(t, err, ErrRoundTrip)
	assert.Contains(t, diff, "_build")
}

func TestCheckArchiveInvalid(t *testing.T) {
	_, _, err := checkArchive([]byte(`{"log":{"version":"1.2"}}`))
	assert.Error(t, err)
}

func TestStarterConfigLoads(t *testing.T) {
	data, err := starterConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "harstream.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateFetch())
	assert.Equal(t, config.DefaultConfig().RetryDelay, cfg.RetryDelay)
	assert.Equal(t, "harstream", cfg.Creator.Name)
}

func TestCommands(t *testing.T) {
	fixture, err := filepath.Abs(filepath.Join("..", "model", "testdata", "trace_1.har"))
	require.NoError(t, err)
	t.Chdir(t.TempDir())

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := run("version")
	require.NoError(t, err)
	assert.Equal(t, "harstream "+output.Version+" (HAR 1.2)\n", out)

	_, err = run("init-config", "--log-level", "error")
	require.NoError(t, err)
	_, err = os.Stat("harstream.yaml")
	require.NoError(t, err)

	_, err = run("init-config")
	assert.ErrorContains(t, err, "already exists")

	out, err = run("check", fixture)
	require.NoError(t, err)
	assert.Equal(t, "ok   "+fixture+" (2 entries)\n", out)

	require.NoError(t, os.WriteFile("bad.har", []byte(`{"log":{}}`), 0644))
	out, err = run("check", "bad.har")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(out, "FAIL bad.har"))
}

package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueewinq/shooter/api/schemas"
)

func testConfig(url string) *schemas.CaptureConfig {
	cfg := schemas.DefaultCaptureConfig()
	cfg.URL = url
	return &cfg
}

func TestBuildOutputDir_Layout(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig("https://www.example.com/some/page")

	dir, err := BuildOutputDir(root, cfg)
	require.NoError(t, err)

	rel, err := filepath.Rel(root, dir)
	require.NoError(t, err)
	parts := strings.Split(rel, string(filepath.Separator))
	require.Len(t, parts, 2)
	assert.Equal(t, "www.example.com", parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "www.example.com__chrome__fullpage__"), parts[1])

	// The masked config artifact is written alongside.
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "https://www.example.com/some/page")
}

func TestBuildOutputDir_DeterministicForSameConfig(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig("https://example.com")

	dir1, err := BuildOutputDir(root, cfg)
	require.NoError(t, err)
	dir2, err := BuildOutputDir(root, cfg)
	require.NoError(t, err)
	assert.Equal(t, dir1, dir2)

	other := testConfig("https://example.com")
	other.FullPageScreenshot = false
	dir3, err := BuildOutputDir(root, other)
	require.NoError(t, err)
	assert.NotEqual(t, dir1, dir3)
	assert.Contains(t, filepath.Base(dir3), "__viewport__")
}

func TestBuildOutputDir_MasksProxyCredentials(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig("https://example.com")
	cfg.Proxy = schemas.ProxyList{{Host: "p1", Port: 8080, Username: "u", Password: "hunter2"}}

	dir, err := BuildOutputDir(root, cfg)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.Contains(t, string(raw), "***")
}

func TestSafeHostname(t *testing.T) {
	assert.Equal(t, "example.com", safeHostname("example.com"))
	assert.Equal(t, "example.com", safeHostname("..example.com"))
	assert.Equal(t, "examplecom", safeHostname("example/com"))
	assert.Equal(t, "host_8080", safeHostname("host:8080"))
}

func TestVerifyWritable(t *testing.T) {
	require.NoError(t, VerifyWritable(t.TempDir()))

	// Probe file is cleaned up.
	dir := t.TempDir()
	require.NoError(t, VerifyWritable(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/buildinfo"
	"github.com/tphakala/runcat/internal/config"
)

const image1 = `
image: {band: 1, frequency: 1.2e8}
sources:
  - {ra: 10, decl: 10, ra_err: 1, decl_err: 1, flux: 1.0, flux_err: 0.1}
  - {ra: 40, decl: -5, ra_err: 1, decl_err: 1, flux: 2.0, flux_err: 0.1}
`

const image2 = `
image: {band: 2, frequency: 1.6e8}
sources:
  - {ra: 10.0001, decl: 10.0001, ra_err: 1, decl_err: 1, flux: 0.8, flux_err: 0.1}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	app := config.NewContext(buildinfo.NewContext("v-test", ""))
	root := RootCommand(app)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.ExecuteContext(context.Background())
	_ = app.Close()
	return out.String(), err
}

func TestCommandWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "runcat.yaml", fmt.Sprintf(`
database:
  type: sqlite
  sqlite:
    path: %s
logging:
  console:
    enabled: false
`, filepath.Join(dir, "runcat.db")))

	out, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, cfg, "ingest", writeFile(t, dir, "1.yaml", image1), writeFile(t, dir, "2.yaml", image2))
	require.NoError(t, err)
	assert.Contains(t, out, "image 1, band 1, 2 sources")
	assert.Contains(t, out, "image 2, band 2, 1 sources")

	out, err = run(t, cfg, "process", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "image 1: 2 sources, 0 candidates")
	assert.Contains(t, out, "image 2: 1 sources, 1 candidates, 1 updated")

	_, err = run(t, cfg, "process", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processed")

	out, err = run(t, cfg, "spectrum", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "runcat_id: 1")
	assert.Contains(t, out, "order: ")
	assert.Contains(t, out, "cached: false")

	out, err = run(t, cfg, "spectrum", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "cached: true")
}

func TestProcessArgs(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "runcat.yaml", "logging:\n  console:\n    enabled: false\n")

	_, err := run(t, cfg, "process")
	require.Error(t, err)

	_, err = run(t, cfg, "process", "--pending", "3")
	require.Error(t, err)
}

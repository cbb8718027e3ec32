package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-hrf/internal/synth"
	"github.com/cwbudde/algo-hrf/internal/tsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fastArgs(dir string, extra ...string) []string {
	return append([]string{
		"--output-dir", dir,
		"--name", "sub01",
		"--deconv-method", "regularized",
		"--log-level", "error",
	}, extra...)
}

func TestRunSimulated(t *testing.T) {
	dir := t.TempDir()
	prom := filepath.Join(dir, "rshrf.prom")

	var stderr bytes.Buffer
	code := run(context.Background(), fastArgs(dir, "--simulate", "--sim-scans", "200", "--sim-voxels", "3", "--metrics-file", prom), &stderr)
	require.Equal(t, 0, code, stderr.String())

	for _, suffix := range []string{suffixHRF, suffixHRFMicrotime, suffixShape, suffixDeconv, suffixEvents, suffixEventNumber, suffixSummary} {
		assert.FileExists(t, filepath.Join(dir, "sub01"+suffix))
	}

	assert.FileExists(t, prom)

	deconv, err := tsio.ReadFile(filepath.Join(dir, "sub01"+suffixDeconv))
	require.NoError(t, err)

	r, c := deconv.Dims()
	assert.Equal(t, 200, r)
	assert.Equal(t, 3, c)

	shape, err := tsio.ReadFile(filepath.Join(dir, "sub01"+suffixShape))
	require.NoError(t, err)

	r, c = shape.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)

	raw, err := os.ReadFile(filepath.Join(dir, "sub01"+suffixSummary))
	require.NoError(t, err)

	var sum struct {
		RunID  string   `yaml:"run-id"`
		Voxels int      `yaml:"voxels"`
		Keys   []string `yaml:"keys"`
		Config struct {
			Estimation string `yaml:"estimation"`
		} `yaml:"config"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &sum))

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Voxels)
	assert.Equal(t, "canon2dd", sum.Config.Estimation)
	assert.Equal(t, []string{"sub01_BOLD_0", "sub01_Preprocessed-BOLD_0", "sub01_HRF_0", "sub01_Deconvolved-BOLD_0"}, sum.Keys)

	events, err := os.ReadFile(filepath.Join(dir, "sub01"+suffixEvents))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(events), "\n"))
}

func TestRunFromFileWithMask(t *testing.T) {
	dir := t.TempDir()

	cfg := synth.DefaultConfig()
	cfg.Scans = 200
	cfg.Voxels = 2

	ds, err := synth.Generate(cfg)
	require.NoError(t, err)

	input := filepath.Join(dir, "bold.txt")
	require.NoError(t, tsio.WriteFile(input, ds.BOLD))

	var mask strings.Builder
	for i := range 200 {
		if i < 190 {
			mask.WriteString("1\n")
		} else {
			mask.WriteString("0\n")
		}
	}

	maskPath := filepath.Join(dir, "mask.txt")
	require.NoError(t, os.WriteFile(maskPath, []byte(mask.String()), 0o600))

	var stderr bytes.Buffer
	code := run(context.Background(), fastArgs(dir, "--ts", input, "--temporal-mask", maskPath, "--estimation", "sFIR"), &stderr)
	require.Equal(t, 0, code, stderr.String())

	hrf, err := tsio.ReadFile(filepath.Join(dir, "sub01"+suffixHRF))
	require.NoError(t, err)

	r, _ := hrf.Dims()
	assert.Equal(t, 12, r)
}

func TestRunExitCodes(t *testing.T) {
	var stderr bytes.Buffer

	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stderr))
	assert.Contains(t, stderr.String(), "Usage: rshrf")

	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, &stderr))
	assert.Equal(t, 2, run(context.Background(), nil, &stderr))
	assert.Equal(t, 2, run(context.Background(), []string{"--simulate", "--tr", "-1"}, &stderr))

	missing := filepath.Join(t.TempDir(), "missing.txt")
	assert.Equal(t, 1, run(context.Background(), fastArgs(t.TempDir(), "--ts", missing), &stderr))
}

func TestLoadMask(t *testing.T) {
	dir := t.TempDir()

	row := filepath.Join(dir, "row.txt")
	require.NoError(t, os.WriteFile(row, []byte("1 0 1 1\n"), 0o600))

	mask, err := loadMask(row)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, mask)

	grid := filepath.Join(dir, "grid.txt")
	require.NoError(t, os.WriteFile(grid, []byte("1 0\n0 1\n"), 0o600))

	_, err = loadMask(grid)
	assert.Error(t, err)
}

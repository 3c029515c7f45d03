package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFires writes 100 rows where every fifth row has a positive count.
func writeFires(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(",temp,wind,fires\n")
	for i := 0; i < 100; i++ {
		fires := 0.0
		if i%5 == 0 {
			fires = 1 + float64(i)/10
		}
		fmt.Fprintf(&b, "%d,%d,%.1f,%g\n", i, i%17, float64(i%7)*1.5, fires)
	}
	path := filepath.Join(dir, "fires.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func writeConfig(t *testing.T, dir, data string) string {
	t.Helper()
	cfg := fmt.Sprintf(`
data:
  path: %s
  target: fires
cross_validation:
  folds: 5
  seed: 3
model:
  name: linear
  alpha: 1
resampling:
  k_neighbors: 3
`, data)
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEvaluate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, writeFires(t, dir))

	tests := []struct {
		name      string
		args      []string
		synthetic bool
	}{
		{"resampled", []string{"evaluate", "-c", cfg}, true},
		{"raw", []string{"evaluate", "-c", cfg, "--raw"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, "fold  0")
			assert.Contains(t, out, "fold  4")
			assert.Contains(t, out, "over 5 folds")
			assert.NotContains(t, out, "INCOMPLETE")
			assert.Equal(t, tt.synthetic, !strings.Contains(out, "synthetic     0"))
		})
	}
}

func TestEvaluatePlots(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, writeFires(t, dir))
	plots := filepath.Join(dir, "plots")

	_, _, err := run(t, "evaluate", "-c", cfg, "--plot-dir", plots, "--folds", "2")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(plots, "*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestResample(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, writeFires(t, dir))
	out := filepath.Join(dir, "balanced.csv")
	png := filepath.Join(dir, "dist.png")

	_, stderr, err := run(t, "resample", "-c", cfg, "-o", out, "--plot", png)
	require.NoError(t, err)
	assert.Contains(t, stderr, "rare_high")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "temp,wind,fires", lines[0])
	assert.Greater(t, len(lines)-1, 0)
	assert.FileExists(t, png)
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	data := writeFires(t, dir)

	_, _, err := run(t, "evaluate")
	assert.Error(t, err, "no input file")

	_, _, err = run(t, "evaluate", "--data", data)
	assert.Error(t, err, "no target")

	_, _, err = run(t, "evaluate", "--data", data, "--target", "fires", "--folds", "1")
	assert.Error(t, err)

	_, _, err = run(t, "evaluate", "--data", data, "--target", "fires", "--log-level", "loud")
	assert.Error(t, err)
}

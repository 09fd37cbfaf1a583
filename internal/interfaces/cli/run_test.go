package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appscan "github.com/qsarlab/adscan/internal/application/scan"
)

func writeTempCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func scanFixtureArgs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()

	var training, agreement, dispersion strings.Builder
	for i := 0; i < 10; i++ {
		v := strconv.Itoa(i)
		training.WriteString(v + "," + v + "\n")
		agreement.WriteString("1\n")
		dispersion.WriteString("0\n")
	}

	return []string{
		"--training", writeTempCSV(t, dir, "training.csv", training.String()),
		"--query", writeTempCSV(t, dir, "query.csv", "0.5,0.5\n4,4\n30,30\n"),
		"--correctness", writeTempCSV(t, dir, "correctness.csv", "1\n1\n1\n"),
		"--agreement", writeTempCSV(t, dir, "agreement.csv", agreement.String()),
		"--dispersion", writeTempCSV(t, dir, "dispersion.csv", dispersion.String()),
		"--steps", "5", "--compress-end", "2", "--decompress-start", "3",
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand_Table(t *testing.T) {
	args := append([]string{"run"}, scanFixtureArgs(t)...)

	out, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "PHASE")
	assert.Contains(t, out, "compressed")
	assert.Contains(t, out, "full")
	// 5 steps plus the header row.
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 6)
}

func TestRunCommand_JSON(t *testing.T) {
	args := append([]string{"run"}, scanFixtureArgs(t)...)
	args = append(args, "--output", "json")

	out, err := execute(t, args...)
	require.NoError(t, err)

	var profile []appscan.ProfileStep
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	require.Len(t, profile, 5)
	assert.Equal(t, 1, profile[0].K)
	assert.Equal(t, "compressed", profile[0].Phase)
}

func TestRunCommand_MissingFlags(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestRunCommand_BadSchedule(t *testing.T) {
	args := append([]string{"run"}, scanFixtureArgs(t)...)
	args = append(args, "--compress-end", "9", "--decompress-start", "4")

	_, err := execute(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compress_end")
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "worker", "migrate", "run"} {
		assert.Contains(t, out, sub)
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

func execute(t *testing.T, cmdArgs ...string) (string, error) {
	t.Helper()
	var cmd = newVersionCmd()
	switch cmdArgs[0] {
	case "run":
		cmd = newRunCmd()
	case "efficiency":
		cmd = newEfficiencyCmd()
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(cmdArgs[1:])
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mcfit version "+version+"\n", out)
}

func TestEfficiencyCommand(t *testing.T) {
	out, err := execute(t, "efficiency", "--events", "1000", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "efficiency at 100: ")
	assert.Contains(t, out, " / 1000 = ")
}

func TestEfficiencyCommandRejectsEmptyRange(t *testing.T) {
	_, err := execute(t, "efficiency", "--low", "5", "--high", "5")
	require.Error(t, err)
}

func TestEfficiencyCommandEnvironment(t *testing.T) {
	t.Setenv("MCFIT_EVENTS", "500")
	t.Setenv("MCFIT_LOG_LEVEL", "error")
	out, err := execute(t, "efficiency", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, " / 500 = ")

	// an explicit flag wins over the environment
	out, err = execute(t, "efficiency", "--events", "800")
	require.NoError(t, err)
	assert.Contains(t, out, " / 800 = ")
}

func TestEfficiencyCommandBadEnvironment(t *testing.T) {
	t.Setenv("MCFIT_EVENTS", "many")
	_, err := execute(t, "efficiency")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestEfficiencyCommandBadLogLevel(t *testing.T) {
	t.Setenv("MCFIT_LOG_LEVEL", "loud")
	_, err := execute(t, "efficiency", "--events", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

const runConfig = `
OutputDir = "%s"
Seed = 3
Events = 20000
Bins = 60

[Models.gauss]
Experiment = "momentum"
Mean = 50.0
Sigma = 10.0

[[Models.gauss.Fits]]
histogram = "p"
model = "gaussian"
`

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "runs.toml")
	require.NoError(t, os.WriteFile(input, []byte(fmt.Sprintf(runConfig, filepath.ToSlash(dir))), 0o644))

	out, err := execute(t, "run", "--input", input, "--yoda")
	require.NoError(t, err)
	assert.Contains(t, out, "gauss: momentum, 20000 events")
	assert.Contains(t, out, "fit p: ")

	assert.FileExists(t, filepath.Join(dir, "hist_p", "gauss.csv"))
	assert.FileExists(t, filepath.Join(dir, "fits", "gauss.csv"))
	assert.FileExists(t, filepath.Join(dir, "yoda", "gauss.yoda"))
}

func TestRunCommandMissingInput(t *testing.T) {
	_, err := execute(t, "run", "--input", filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestIDCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	out, err := execute(t, "id", path)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}\t`+regexp.QuoteMeta(path)+`\n$`), out)

	again, err := execute(t, "id", path)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	out, err = execute(t, "id", "--hash", "blake3", path)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{64}\t`, out)
}

func TestIDCommandReportsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	out, err := execute(t, "id", filepath.Join(dir, "missing.jpg"), path)
	assert.Error(t, err)
	assert.Contains(t, out, path)
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))

	out, err := execute(t, "compare", "--fingerprint", "digest", "-t", "0", a, b)
	require.NoError(t, err)
	assert.Equal(t, "similar=true distance=0 cutoff=0\n", out)
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))

	out, err := execute(t, "scan", "--config", filepath.Join(dir, "none.yaml"), dir)
	assert.Error(t, err, "explicitly named config must exist")
	assert.Empty(t, out)

	conf := filepath.Join(dir, "fdi.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("fingerprint: digest\ntolerance: 0\nworkers: 2\n"), 0o644))

	out, err = execute(t, "scan", "--config", conf, dir)
	require.NoError(t, err)
	assert.Equal(t, a+"\t"+b+"\n", out)
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	port, ok := cfg.Get("port")
	require.True(t, ok)
	require.Equal(t, "6379", port)

	appendOnly, ok := cfg.Get("appendonly")
	require.True(t, ok)
	require.Equal(t, "no", appendOnly)
}

func TestLoadParsesKnownKeysAndWarnsOnUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gokv.conf")
	contents := "# a comment\n\nport 7000\nappendonly yes\nboguskey whatever\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	var logged bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logged)

	cfg, err := Load(path, log)
	require.NoError(t, err)

	port, _ := cfg.Get("port")
	require.Equal(t, "7000", port)
	appendOnly, _ := cfg.Get("appendonly")
	require.Equal(t, "yes", appendOnly)
	require.Contains(t, logged.String(), "boguskey")
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"), testLogger())
	require.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("", testLogger())
	require.NoError(t, err)
	port, _ := cfg.Get("port")
	require.Equal(t, "6379", port)
}

func TestSetValidatesValues(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("port", "1234"))
	v, _ := cfg.Get("port")
	require.Equal(t, "1234", v)

	require.Error(t, cfg.Set("port", "not-a-number"))
	require.Error(t, cfg.Set("appendfsync", "whenever"))
	require.Error(t, cfg.Set("no-such-key", "x"))
}

func TestGetUnknownKey(t *testing.T) {
	cfg := Default()
	_, ok := cfg.Get("no-such-key")
	require.False(t, ok)
}

func TestSetDirChangesWorkingDirectory(t *testing.T) {
	cfg := Default()
	start, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(start)

	dir := t.TempDir()
	require.NoError(t, cfg.Set("dir", dir))

	now, err := os.Getwd()
	require.NoError(t, err)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	resolvedNow, err := filepath.EvalSymlinks(now)
	require.NoError(t, err)
	require.Equal(t, resolvedDir, resolvedNow)
}

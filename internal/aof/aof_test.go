package aof

import (
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

func TestAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	w, err := Open(path, SyncAlways, testLogger())
	require.NoError(t, err)
	require.NoError(t, w.Append(Encode([]string{"SET", "k1", "v1"})))
	require.NoError(t, w.Append(Encode([]string{"RPUSH", "l", "a", "b"})))
	require.NoError(t, w.Close())

	var replayed [][]string
	err = Load(path, func(args []string) error {
		replayed = append(replayed, args)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"SET", "k1", "v1"},
		{"RPUSH", "l", "a", "b"},
	}, replayed)
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.aof"), func(args []string) error {
		t.Fatal("apply must not be called for a missing file")
		return nil
	})
	require.NoError(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("always")
	require.NoError(t, err)
	require.Equal(t, SyncAlways, p)

	p, err = ParsePolicy("everysec")
	require.NoError(t, err)
	require.Equal(t, SyncEverySecond, p)

	p, err = ParsePolicy("no")
	require.NoError(t, err)
	require.Equal(t, SyncNo, p)

	_, err = ParsePolicy("whenever")
	require.Error(t, err)
}

func TestRewriteMirrorsConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appendonly.aof")

	w, err := Open(path, SyncNo, testLogger())
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Append(Encode([]string{"SET", "a", "1"})))

	w.BeginRewrite()
	require.NoError(t, w.Append(Encode([]string{"SET", "b", "2"})))

	rewritten := filepath.Join(dir, "appendonly.aof.rewrite")
	rw, err := Open(rewritten, SyncNo, testLogger())
	require.NoError(t, err)
	require.NoError(t, rw.Append(Encode([]string{"SET", "a", "1"})))
	require.NoError(t, rw.Close())

	require.NoError(t, w.FinishRewrite(rewritten, path))

	var replayed [][]string
	require.NoError(t, Load(path, func(args []string) error {
		replayed = append(replayed, args)
		return nil
	}))
	require.Equal(t, [][]string{
		{"SET", "a", "1"},
		{"SET", "b", "2"},
	}, replayed)
}

package store

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"gokv/internal/value"
)

func TestGetSetDelete(t *testing.T) {
	s := New(nil)
	s.Set("k", value.NewString([]byte("v")), nil)

	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", string(v.Str))

	require.True(t, s.Delete("k"))
	_, ok = s.Get("k")
	require.False(t, ok)
	require.False(t, s.Delete("k"))
}

func TestLazyExpiration(t *testing.T) {
	now := int64(1000)
	s := New(func() int64 { return now })

	expireAt := int64(1005)
	s.Set("k", value.NewString([]byte("v")), &expireAt)

	_, ok := s.Get("k")
	require.True(t, ok, "not yet expired")

	now = 1006
	_, ok = s.Get("k")
	require.False(t, ok, "past expiry must read as absent")
	require.Equal(t, 0, s.Len())
}

func TestRenameOverwritesAndMoves(t *testing.T) {
	s := New(nil)
	s.Set("a", value.NewString([]byte("1")), nil)
	s.Set("b", value.NewString([]byte("2")), nil)

	require.True(t, s.Rename("a", "b"))
	_, ok := s.Get("a")
	require.False(t, ok)
	v, ok := s.Get("b")
	require.True(t, ok)
	require.Equal(t, "1", string(v.Str))

	require.False(t, s.Rename("missing", "x"))
}

func TestExpireAtMillisNoopOnMissingKey(t *testing.T) {
	s := New(nil)
	require.False(t, s.ExpireAtMillis("missing", 999999))
}

func TestTypeTag(t *testing.T) {
	s := New(nil)
	require.Equal(t, "none", s.Type("missing"))
	s.Set("s", value.NewString([]byte("x")), nil)
	require.Equal(t, "string", s.Type("s"))
}

func TestKeysGlob(t *testing.T) {
	s := New(nil)
	for _, k := range []string{"foo", "foobar", "bar", "baz"} {
		s.Set(k, value.NewString([]byte("x")), nil)
	}
	matches := s.Keys("foo*")
	require.ElementsMatch(t, []string{"foo", "foobar"}, matches)
}

func TestSetIfAbsentAndIfPresent(t *testing.T) {
	now := int64(1000)
	s := New(func() int64 { return now })

	require.False(t, s.SetIfPresent("k", value.NewString([]byte("x")), nil))
	require.True(t, s.SetIfAbsent("k", value.NewString([]byte("v1")), nil))
	require.False(t, s.SetIfAbsent("k", value.NewString([]byte("v2")), nil))

	v, _ := s.Get("k")
	require.Equal(t, "v1", string(v.Str))

	expireAt := int64(2000)
	require.True(t, s.SetIfPresent("k", value.NewString([]byte("v3")), &expireAt))
	v, _ = s.Get("k")
	require.Equal(t, "v3", string(v.Str))

	// An expired entry counts as absent for both variants.
	now = 2001
	require.False(t, s.SetIfPresent("k", value.NewString([]byte("v4")), nil))
	require.True(t, s.SetIfAbsent("k", value.NewString([]byte("v5")), nil))
}

func TestSetIfAbsentSingleWinner(t *testing.T) {
	s := New(nil)

	const writers = 50
	var wg sync.WaitGroup
	var wins int64
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if s.SetIfAbsent("k", value.NewString([]byte(strconv.Itoa(id))), nil) {
				atomic.AddInt64(&wins, 1)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, int64(1), wins, "exactly one concurrent conditional writer may win")
}

// TestPerKeyLinearizability asserts property 4 from the spec: 1000
// concurrent INCR-like Apply calls on one key from many goroutines
// yield a final value equal to the number of increments.
func TestPerKeyLinearizability(t *testing.T) {
	s := New(nil)
	s.Set("counter", value.NewString([]byte("0")), nil)

	const n = 1000
	const workers = 20
	var wg sync.WaitGroup
	perWorker := n / workers

	incr := func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		n, _ := cur.IsInteger()
		cur.Str = []byte(strconv.FormatInt(n+1, 10))
		return cur, false, nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.Apply("counter", incr)
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	v, _ := s.Get("counter")
	require.Equal(t, fmt.Sprintf("%d", n), string(v.Str))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New(nil)
	s.Set("k", value.NewList([]byte("a")), nil)

	snap := s.Snapshot()
	entry := snap["k"]
	entry.Value.List[0] = []byte("mutated")

	live, _ := s.Get("k")
	require.Equal(t, "a", string(live.List[0]), "snapshot must not alias live storage")
}

// Package srvstate holds the fields shared across every connection:
// configuration, the keyspace handle, persistence coordination flags,
// and the shutdown broadcast. Hot fields (dirty counter, last save
// time) are plain atomics so a connection never blocks on them; the
// child-task bookkeeping is small and rarely contended, so it sits
// behind one RWMutex.
package srvstate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"gokv/internal/aof"
	"gokv/internal/config"
	"gokv/internal/store"
)

// State is the server-wide shared handle. Every connection holds one
// reference; it is cheap to copy (a pointer) and safe for concurrent
// use.
type State struct {
	Config *config.Config
	Store  *store.Store
	Log    *logrus.Logger
	AOF    *aof.Writer // nil when AOF is disabled

	dirty        int64 // atomic: mutations since last successful RDB save
	lastSaveUnix int64 // atomic: unix seconds of last successful save

	mu                  sync.RWMutex
	rdbChildActive      bool
	aofChildActive      bool
	aofRewriteScheduled bool

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func New(cfg *config.Config, st *store.Store, log *logrus.Logger, aofWriter *aof.Writer) *State {
	return &State{
		Config:     cfg,
		Store:      st,
		Log:        log,
		AOF:        aofWriter,
		shutdownCh: make(chan struct{}),
	}
}

// IncrDirty bumps the mutation counter by n logical changes.
func (s *State) IncrDirty(n int64) { atomic.AddInt64(&s.dirty, n) }

// Dirty returns the number of mutations since the last successful save.
func (s *State) Dirty() int64 { return atomic.LoadInt64(&s.dirty) }

// ResetDirty zeroes the mutation counter, called after a successful
// RDB save.
func (s *State) ResetDirty() { atomic.StoreInt64(&s.dirty, 0) }

// LastSaveTime returns the unix-seconds timestamp of the last
// successful save.
func (s *State) LastSaveTime() int64 { return atomic.LoadInt64(&s.lastSaveUnix) }

// MarkSaved records now as the last successful save time and resets
// the dirty counter.
func (s *State) MarkSaved() {
	atomic.StoreInt64(&s.lastSaveUnix, time.Now().Unix())
	s.ResetDirty()
}

// TryStartRDBChild reserves the single background-save slot. Only one
// of {RDB child, AOF rewrite child} may be live at a time.
func (s *State) TryStartRDBChild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdbChildActive || s.aofChildActive {
		return false
	}
	s.rdbChildActive = true
	return true
}

// FinishRDBChild releases the background-save slot and records the
// save time. It reports whether a BGREWRITEAOF was deferred while
// this save was running, so the caller can start it now that the
// slot is free.
func (s *State) FinishRDBChild() bool {
	s.mu.Lock()
	s.rdbChildActive = false
	scheduled := s.aofRewriteScheduled
	s.aofRewriteScheduled = false
	s.mu.Unlock()
	s.MarkSaved()
	return scheduled
}

// IsRDBChildActive reports whether a background save is in progress.
func (s *State) IsRDBChildActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rdbChildActive
}

// TryStartAOFChild reserves the AOF rewrite slot, refusing if either
// child is already live.
func (s *State) TryStartAOFChild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdbChildActive || s.aofChildActive {
		return false
	}
	s.aofChildActive = true
	return true
}

func (s *State) FinishAOFChild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aofChildActive = false
}

func (s *State) IsAOFChildActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aofChildActive
}

// ScheduleAOFRewrite records that BGREWRITEAOF was requested while a
// BGSAVE was in flight; FinishRDBChild consults and clears this flag.
func (s *State) ScheduleAOFRewrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aofRewriteScheduled = true
}

// Shutdown closes the broadcast channel exactly once; every
// connection's Done() select wakes up.
func (s *State) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Done returns the channel connections select on to detect shutdown.
func (s *State) Done() <-chan struct{} { return s.shutdownCh }

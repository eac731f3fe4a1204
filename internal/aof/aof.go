// Package aof implements the append-only command log: buffered
// writes of canonical RESP command arrays, a configurable fsync
// policy, and replay for startup load.
package aof

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gokv/internal/resp"
)

// DefaultPath is the AOF file name used throughout the server; there
// is no config key to override it (spec §6 lists only `appendonly`,
// the boolean toggle).
const DefaultPath = "appendonly.aof"

// SyncPolicy controls when the AOF file is fsynced to disk.
type SyncPolicy int

const (
	// SyncAlways fsyncs after every command: no data loss, lowest throughput.
	SyncAlways SyncPolicy = iota
	// SyncEverySecond fsyncs on a ~1s ticker: up to ~1s of writes may be lost on crash.
	SyncEverySecond
	// SyncNo leaves fsync timing to the OS.
	SyncNo
)

func ParsePolicy(s string) (SyncPolicy, error) {
	switch s {
	case "always":
		return SyncAlways, nil
	case "everysec":
		return SyncEverySecond, nil
	case "no":
		return SyncNo, nil
	default:
		return 0, fmt.Errorf("aof: unknown sync policy %q", s)
	}
}

// Writer appends commands to the AOF file and manages the fsync
// policy. It is safe for concurrent use; command handlers call
// Append after a mutation succeeds.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	buf      *bufio.Writer
	policy   SyncPolicy
	log      *logrus.Logger
	lastErr  error
	stopTick chan struct{}

	// rewriting, when true, also mirrors every Append into pending so
	// that a concurrent background rewrite doesn't lose writes issued
	// while it walks its keyspace snapshot.
	rewriting bool
	pending   [][]byte
}

// Open opens (creating if necessary) the AOF file at path in append
// mode and starts the background fsync ticker for SyncEverySecond.
func Open(path string, policy SyncPolicy, log *logrus.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("aof: open %s: %w", path, err)
	}
	w := &Writer{
		file:     f,
		buf:      bufio.NewWriter(f),
		policy:   policy,
		log:      log,
		stopTick: make(chan struct{}),
	}
	if policy == SyncEverySecond {
		go w.tick()
	}
	return w, nil
}

func (w *Writer) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			if err := w.flushLocked(true); err != nil {
				w.lastErr = err
				w.log.WithError(err).Warn("aof: background fsync failed")
			}
			w.mu.Unlock()
		case <-w.stopTick:
			return
		}
	}
}

// Encode renders args as the canonical RESP bulk-array form a command
// rewrites itself into for the AOF.
func Encode(args []string) []byte {
	elems := make([]resp.Frame, len(args))
	for i, a := range args {
		elems[i] = resp.NewBulkString(a)
	}
	return resp.Serialize(resp.NewArray(elems))
}

// Append writes one already-encoded command to the AOF buffer,
// applying the configured fsync policy. If a background rewrite is
// in progress, the command is also mirrored to the rewrite's pending
// buffer so nothing written during the rewrite is lost.
func (w *Writer) Append(encoded []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Under the always policy a prior write/fsync failure makes further
	// appends refuse until a retry flush succeeds, rather than silently
	// dropping durability.
	if w.policy == SyncAlways && w.lastErr != nil {
		if err := w.flushLocked(true); err != nil {
			return w.lastErr
		}
		w.lastErr = nil
	}

	if w.rewriting {
		cp := append([]byte(nil), encoded...)
		w.pending = append(w.pending, cp)
	}

	if _, err := w.buf.Write(encoded); err != nil {
		w.lastErr = err
		return err
	}

	switch w.policy {
	case SyncAlways:
		if err := w.flushLocked(true); err != nil {
			w.lastErr = err
			return err
		}
	case SyncEverySecond, SyncNo:
		// flushed by the ticker, or left to the OS
	}
	w.lastErr = nil
	return nil
}

// LastError returns the most recent write/fsync failure, or nil. The
// `always` policy refuses further writes while this is non-nil.
func (w *Writer) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Writer) flushLocked(sync bool) error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if sync {
		return w.file.Sync()
	}
	return nil
}

// BeginRewrite marks a background rewrite as in progress: subsequent
// Append calls are mirrored into a pending buffer, which FinishRewrite
// appends to the rewritten file.
func (w *Writer) BeginRewrite() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rewriting = true
	w.pending = nil
}

// FinishRewrite atomically replaces the AOF file with newPath after
// appending everything written during the rewrite window, then
// resumes normal append-only operation against the new file.
func (w *Writer) FinishRewrite(newPath, finalPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(newPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("aof: reopen rewritten file: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, cmd := range w.pending {
		if _, err := bw.Write(cmd); err != nil {
			f.Close()
			return fmt.Errorf("aof: append pending to rewrite: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	f.Close()

	if err := os.Rename(newPath, finalPath); err != nil {
		return fmt.Errorf("aof: rename into place: %w", err)
	}

	old := w.file
	newFile, err := os.OpenFile(finalPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("aof: reopen final file: %w", err)
	}
	w.file = newFile
	w.buf = bufio.NewWriter(newFile)
	w.rewriting = false
	w.pending = nil
	old.Close()
	return nil
}

// Close stops the background ticker and flushes/syncs the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.policy == SyncEverySecond {
		close(w.stopTick)
	}
	if err := w.flushLocked(true); err != nil {
		return err
	}
	return w.file.Close()
}

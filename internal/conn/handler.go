// Package conn implements the per-connection read/parse/dispatch/write
// loop: a buffered reader accumulates bytes until resp.Parse has a
// complete frame, dispatches it, and writes the reply, repeating until
// the client disconnects, sends malformed input, or the server
// broadcasts shutdown.
package conn

import (
	"bufio"
	"errors"
	"io"
	"net"

	"gokv/internal/aof"
	"gokv/internal/command"
	"gokv/internal/resp"
	"gokv/internal/srvstate"
)

const readChunkSize = 4096

// Handle serves one connection until it closes or the server shuts
// down. It never returns an error: all failures are logged and simply
// end this connection's loop, leaving every other connection and the
// keyspace untouched.
func Handle(c net.Conn, state *srvstate.State) {
	defer c.Close()

	log := state.Log.WithField("remote", c.RemoteAddr().String())
	log.Debug("conn: accepted")

	w := bufio.NewWriter(c)
	buf := make([]byte, 0, readChunkSize)
	pos := 0

	// This goroutine unblocks the in-flight Read once the server
	// broadcasts shutdown, since net.Conn has no select-based read.
	done := make(chan struct{})
	go func() {
		select {
		case <-state.Done():
			c.Close()
		case <-done:
		}
	}()
	defer close(done)

	chunk := make([]byte, readChunkSize)
	for {
		frame, err := resp.Parse(buf, &pos)
		if err == nil {
			buf = buf[pos:]
			pos = 0

			args, ok := frameToArgs(frame)
			if !ok {
				w.Write(resp.Serialize(resp.NewError("ERR Protocol error: expected array of bulk strings")))
				w.Flush()
				return
			}

			result := command.Dispatch(state, args)
			if result.Dirty > 0 {
				state.IncrDirty(int64(result.Dirty))
				if state.AOF != nil {
					for _, rewriteArgs := range result.Rewrite {
						if aerr := state.AOF.Append(aof.Encode(rewriteArgs)); aerr != nil {
							log.WithError(aerr).Warn("conn: aof append failed")
						}
					}
				}
			}

			w.Write(resp.Serialize(result.Reply))
			if err := w.Flush(); err != nil {
				log.WithError(err).Debug("conn: write failed")
				return
			}

			select {
			case <-state.Done():
				return
			default:
			}
			continue
		}

		if errors.Is(err, resp.ErrProtocol) {
			w.Write(resp.Serialize(resp.NewError("ERR Protocol error")))
			w.Flush()
			log.Debug("conn: protocol error, closing")
			return
		}

		// ErrIncomplete: read more.
		n, rerr := c.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			if rerr != io.EOF {
				log.WithError(rerr).Debug("conn: read error")
			}
			return
		}
	}
}

// frameToArgs validates that frame is an Array of Bulk (or Simple, for
// leniency) elements, returning each element's raw bytes.
func frameToArgs(frame resp.Frame) ([][]byte, bool) {
	if frame.Kind != resp.Array {
		return nil, false
	}
	args := make([][]byte, len(frame.Elems))
	for i, e := range frame.Elems {
		if e.Kind != resp.Bulk && e.Kind != resp.Simple {
			return nil, false
		}
		args[i] = e.Str
	}
	return args, true
}

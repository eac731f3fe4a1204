// Package housekeeping runs the periodic background loop: it wakes at
// the configured HZ frequency, parses the `save` config directive's
// savepoints, and fires a background RDB save whenever enough dirty
// writes have accumulated within one of their windows. Reaping a
// finished background child is handled inline by the goroutine that
// ran it (via srvstate's Finish*Child, called in a defer) rather than
// by this loop polling a PID, since there is no real child process to
// wait on.
package housekeeping

import (
	"strconv"
	"strings"
	"time"

	"gokv/internal/persistence"
	"gokv/internal/srvstate"
)

// savePoint is one (seconds, changes) pair from the `save` directive:
// a background save fires once at least `seconds` have passed since
// the last save and at least `changes` mutations have been made since
// then.
type savePoint struct {
	seconds int64
	changes int64
}

func parseSavePoints(s string) []savePoint {
	fields := strings.Fields(s)
	var points []savePoint
	for i := 0; i+1 < len(fields); i += 2 {
		secs, err1 := strconv.ParseInt(fields[i], 10, 64)
		chg, err2 := strconv.ParseInt(fields[i+1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		points = append(points, savePoint{seconds: secs, changes: chg})
	}
	return points
}

// Run blocks until state.Done() fires, waking every tick (derived from
// the configured hz, clamped to a sane range) to check savepoints.
func Run(state *srvstate.State, rdbPath string) {
	hz := 10
	if v, ok := state.Config.Get("hz"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			hz = n
		}
	}
	if hz <= 0 {
		hz = 10
	}
	if hz > 100 {
		hz = 100
	}
	interval := time.Second / time.Duration(hz)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-state.Done():
			return
		case <-ticker.C:
			checkSavePoints(state, rdbPath)
		}
	}
}

func checkSavePoints(state *srvstate.State, rdbPath string) {
	if state.IsRDBChildActive() || state.IsAOFChildActive() {
		return
	}
	saveDirective, _ := state.Config.Get("save")
	points := parseSavePoints(saveDirective)
	if len(points) == 0 {
		return
	}
	dirty := state.Dirty()
	if dirty == 0 {
		return
	}
	elapsed := time.Now().Unix() - state.LastSaveTime()
	for _, sp := range points {
		if elapsed >= sp.seconds && dirty >= sp.changes {
			state.Log.WithField("dirty", dirty).Info("housekeeping: savepoint reached, starting background save")
			if err := persistence.BGSave(state, rdbPath); err != nil {
				state.Log.WithError(err).Debug("housekeeping: background save skipped")
			}
			return
		}
	}
}

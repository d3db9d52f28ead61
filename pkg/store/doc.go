// Package store provides sqlite-backed persistence for one planexec
// executive: a durable exec.StateCache and a log of node transitions and
// command dispatches, adapted from the teacher's pkg/stores SQLite store.
//
// # Components
//
// Store: owns the sqlite connection and embedded golang-migrate migrations
// (modernc.org/sqlite, pure Go, no cgo — matching the teacher's driver
// choice). Use New to open and migrate in one call.
//
// LookupCache: an exec.StateCache backed by the lookups table. Query and
// Set persist values keyed by (name, args); Subscribe/Unsubscribe bookkeeping
// stays in memory, mirroring exec.MemoryStateCache's split between durable
// value storage and in-process listener fan-out.
//
// StepLogger: an exec.Listener that appends every node transition to
// step_log, giving the executive's quiescence loop a durable audit trail.
// Command dispatches and resolutions reach command_log only through explicit
// calls to RecordCommandDispatched and RecordCommandResolved; the Listener
// methods do not record commands.
//
// # Usage
//
//	s, err := store.New(ctx, store.Config{Path: "/var/lib/planexec/state.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	cache := store.NewLookupCache(s)
//	logger := store.NewStepLogger(s)
//
//	ex := exec.NewExecutive(iface, arbiter, mutexes)
//	ex.SetListener(logger)
//	lookup := exec.NewLookup(ctx, cache, "businessHours", args)
package store

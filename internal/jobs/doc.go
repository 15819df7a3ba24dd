// Package jobs persists pairing jobs in SQLite and drives them through
// their lifecycle. Work happens in chunk-sized slices claimed through
// atomic locks, so repeated or overlapping invocations stay safe, and a
// job's access credential never survives past a terminal state.
package jobs

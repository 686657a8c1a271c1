package state

import "time"

// Tracker adapts Store to the aggregator's incremental bookkeeping seam.
type Tracker struct {
	Store *Store
}

// LastRun returns the stored cursor for workspaceRoot, nil when no prior
// run is recorded.
func (t Tracker) LastRun(workspaceRoot string) *time.Time {
	st := t.Store.Load(workspaceRoot)
	return st.LastRunAt
}

// MarkRun advances the cursor to coveredThrough. The cursor never moves
// backwards: re-running an old explicit window must not shrink the range
// the next incremental run picks up from.
func (t Tracker) MarkRun(workspaceRoot string, coveredThrough time.Time) error {
	st := t.Store.Load(workspaceRoot)
	if st.LastRunAt != nil && st.LastRunAt.After(coveredThrough) {
		return nil
	}
	st.LastRunAt = &coveredThrough
	return t.Store.Save(workspaceRoot, st)
}

package sync

import "context"

// ReconcileStats summarises one background reconciliation.
type ReconcileStats struct {
	Uploaded         int // local-only records copied to the remote store
	Downloaded       int // remote-only records copied to the local store
	UploadFailures   int
	DownloadFailures int

	// Diverged counts ids present on both sides with different payloads.
	// The merge policy already chose a winner for display; nothing is
	// written for them.
	Diverged int

	// Skipped is true when no remote store is configured and nothing was
	// attempted.
	Skipped bool
}

// Failures returns the number of records that could not be copied.
func (s ReconcileStats) Failures() int {
	return s.UploadFailures + s.DownloadFailures
}

// Reconciliation is the handle of a background reconciliation started by a
// fetch. Callers may drop it; tests and the [Engine] wait on it.
type Reconciliation struct {
	done  chan struct{}
	stats ReconcileStats
}

func newReconciliation() *Reconciliation {
	return &Reconciliation{done: make(chan struct{})}
}

// finish publishes stats and releases waiters. It must be called once.
func (r *Reconciliation) finish(stats ReconcileStats) {
	r.stats = stats
	close(r.done)
}

// Done is closed when the reconciliation has finished.
func (r *Reconciliation) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the reconciliation finishes or ctx is done. The error is
// non-nil only when ctx ends first; per-record failures are in the stats.
func (r *Reconciliation) Wait(ctx context.Context) (ReconcileStats, error) {
	select {
	case <-r.done:
		return r.stats, nil
	case <-ctx.Done():
		return ReconcileStats{}, ctx.Err()
	}
}

// Package snapshot tracks the active (table, collection) pair that searches read.
//
// A snapshot is immutable once published. Builders stage a new pair under a
// fresh generation name and hand it to Manager.Publish, which persists the
// catalog pointer and swaps the in-memory pointer in one atomic store. The
// previous snapshot is then retired and its stores dropped.
//
// Readers take a Lease, which holds the snapshot's read lock. Retirement
// takes the write lock, so a snapshot is never dropped while a lease on it is
// outstanding:
//
//	lease, err := manager.Acquire()
//	if err != nil {
//	    return err // core.ErrIndexUnavailable before the first publish
//	}
//	defer lease.Release()
//	matches, err := index.Query(ctx, lease.Collection(), vector, k)
package snapshot

package godb

import "sync/atomic"

// TransactionID is a process-unique, monotonically increasing identifier.
// Equality is plain value equality.
type TransactionID int64

var tidCounter int64

// NewTID allocates a fresh TransactionID. Safe for concurrent use.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&tidCounter, 1))
}

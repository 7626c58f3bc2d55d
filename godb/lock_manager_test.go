package godb

import (
	"testing"
	"time"
)

func TestLockManagerSharedLocksCoexist(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if err := lm.AcquireLock(t1, pid, ReadPerm); err != nil {
		t.Fatalf("t1 acquire: %v", err)
	}
	if err := lm.AcquireLock(t2, pid, ReadPerm); err != nil {
		t.Fatalf("t2 acquire: %v", err)
	}
	if !lm.HoldsLock(t1, pid) || !lm.HoldsLock(t2, pid) {
		t.Fatalf("expected both transactions to hold the shared lock")
	}
}

// TestLockManagerUpgradeInPlace: a sole shared holder
// upgrades to exclusive on the same page without releasing first.
func TestLockManagerUpgradeInPlace(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	tid := NewTID()

	if err := lm.AcquireLock(tid, pid, ReadPerm); err != nil {
		t.Fatalf("read acquire: %v", err)
	}
	if err := lm.AcquireLock(tid, pid, WritePerm); err != nil {
		t.Fatalf("upgrade to write: %v", err)
	}
	if n := lm.HeldLockCount(); n != 1 {
		t.Fatalf("expected exactly one lock entry after upgrade, got %d", n)
	}
}

func TestLockManagerExclusiveBlocksShared(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if err := lm.AcquireLock(t1, pid, WritePerm); err != nil {
		t.Fatalf("t1 acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- lm.AcquireLock(t2, pid, ReadPerm)
	}()

	select {
	case <-done:
		t.Fatalf("t2's acquire should have blocked while t1 holds the exclusive lock")
	case <-time.After(100 * time.Millisecond):
	}

	lm.ReleaseAllLocks(t1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2 acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 never woke up after t1 released its lock")
	}
}

// TestLockManagerDeadlockDetected: two transactions
// wait on each other's page in a cycle; one of the two must see
// TransactionAbortedError rather than the pair hanging forever. The aborted
// transaction's locks are then released, as its caller would on abort, so
// the survivor can proceed.
func TestLockManagerDeadlockDetected(t *testing.T) {
	lm := NewLockManager()
	pidA := PageID{TableID: 1, PageNo: 0}
	pidB := PageID{TableID: 1, PageNo: 1}
	t1, t2 := NewTID(), NewTID()

	if err := lm.AcquireLock(t1, pidA, WritePerm); err != nil {
		t.Fatalf("t1 acquire A: %v", err)
	}
	if err := lm.AcquireLock(t2, pidB, WritePerm); err != nil {
		t.Fatalf("t2 acquire B: %v", err)
	}

	type outcome struct {
		tid TransactionID
		err error
	}
	errs := make(chan outcome, 2)
	go func() { errs <- outcome{t1, lm.AcquireLock(t1, pidB, WritePerm)} }()
	go func() { errs <- outcome{t2, lm.AcquireLock(t2, pidA, WritePerm)} }()

	var sawAbort bool
	for i := 0; i < 2; i++ {
		select {
		case r := <-errs:
			if r.err != nil {
				if !IsTransactionAborted(r.err) {
					t.Fatalf("expected TransactionAbortedError, got %v", r.err)
				}
				sawAbort = true
				lm.ReleaseAllLocks(r.tid)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("a waiter never returned; the deadlock was not resolved")
		}
	}
	if !sawAbort {
		t.Fatalf("expected at least one waiter to abort on the detected cycle")
	}
}

// TestLockManagerUpgradeBlocksLaterShared completes the upgrade scenario:
// once a shared holder has upgraded to exclusive, a later shared request
// from another transaction must wait until the upgrader releases.
func TestLockManagerUpgradeBlocksLaterShared(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if err := lm.AcquireLock(t1, pid, ReadPerm); err != nil {
		t.Fatalf("t1 shared acquire: %v", err)
	}
	if err := lm.AcquireLock(t1, pid, WritePerm); err != nil {
		t.Fatalf("t1 upgrade: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- lm.AcquireLock(t2, pid, ReadPerm)
	}()

	select {
	case <-done:
		t.Fatalf("t2's shared request should block behind t1's upgraded lock")
	case <-time.After(100 * time.Millisecond):
	}

	lm.ReleaseAllLocks(t1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2 acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 never woke after t1 released")
	}
}

// TestLockManagerUpgradeWaitsForOtherSharers: a shared holder requesting
// exclusive while another transaction also holds shared must wait for that
// other holder, then upgrade in place.
func TestLockManagerUpgradeWaitsForOtherSharers(t *testing.T) {
	lm := NewLockManager()
	pid := PageID{TableID: 1, PageNo: 0}
	t1, t2 := NewTID(), NewTID()

	if err := lm.AcquireLock(t1, pid, ReadPerm); err != nil {
		t.Fatalf("t1 shared acquire: %v", err)
	}
	if err := lm.AcquireLock(t2, pid, ReadPerm); err != nil {
		t.Fatalf("t2 shared acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- lm.AcquireLock(t1, pid, WritePerm)
	}()

	select {
	case <-done:
		t.Fatalf("t1's upgrade should block while t2 also holds shared")
	case <-time.After(100 * time.Millisecond):
	}

	lm.ReleaseAllLocks(t2)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t1 upgrade after t2 release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t1's upgrade never completed after t2 released")
	}
	if n := lm.HeldLockCount(); n != 1 {
		t.Fatalf("expected one lock entry after upgrade, got %d", n)
	}
}

// TestLockManagerReleaseAllClearsEveryMention: after ReleaseAllLocks, no
// lock-manager structure mentions the transaction.
func TestLockManagerReleaseAllClearsEveryMention(t *testing.T) {
	lm := NewLockManager()
	t1 := NewTID()
	for i := 0; i < 4; i++ {
		if err := lm.AcquireLock(t1, PageID{TableID: 1, PageNo: i}, WritePerm); err != nil {
			t.Fatalf("acquire page %d: %v", i, err)
		}
	}
	lm.ReleaseAllLocks(t1)
	if n := lm.HeldLockCount(); n != 0 {
		t.Fatalf("expected no held locks, got %d", n)
	}
	if pages := lm.PagesHeldBy(t1); len(pages) != 0 {
		t.Fatalf("expected no pages held by t1, got %v", pages)
	}
	if n := lm.WaitGraphSize(); n != 0 {
		t.Fatalf("expected an empty waits-for graph, got %d entries", n)
	}
}

package vaultlock

import "testing"

func TestAcquireReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := Acquire(dir); err == nil {
		t.Fatal("expected second Acquire to fail while first is held")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("expected re-Acquire after Release to succeed: %v", err)
	}
	l2.Release()
}

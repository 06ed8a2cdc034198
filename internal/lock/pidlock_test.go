package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer l.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire() error = nil, want lock conflict")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire error = %v", err)
	}
	defer l2.Release()
}

func TestReleaseNilIsSafe(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("Release() on nil = %v, want nil", err)
	}
}

func TestReadPID_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if _, err := ReadPID(path); err == nil {
		t.Fatal("ReadPID() error = nil, want parse error")
	}
}

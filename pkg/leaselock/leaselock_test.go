package leaselock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestAcquireBusyAndRelease(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	first, err := c.Acquire(ctx, "document:1", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := c.Acquire(ctx, "document:1", Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := c.Acquire(ctx, "document:2", Options{}); err != nil {
		t.Fatalf("other keys must not be blocked: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatalf("lease context should be cancelled after release")
	}
	if _, err := c.Acquire(ctx, "document:1", Options{}); err != nil {
		t.Fatalf("expected key to be free after release: %v", err)
	}
}

func TestAcquireExpired(t *testing.T) {
	c := NewMemory()
	b := c.b.(*memoryBackend)
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := c.Acquire(ctx, "k", Options{TTL: time.Minute}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.Acquire(ctx, "k", Options{TTL: time.Minute}); err != nil {
		t.Fatalf("expired lease should be taken over: %v", err)
	}
}

func TestAcquireWait(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	held, err := c.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = held.Release(ctx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.Acquire(waitCtx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond}); err != nil {
		t.Fatalf("expected to acquire after release: %v", err)
	}
}

func TestWithLease(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	ran := false

	err := c.WithLease(ctx, "k", Options{}, func(ctx context.Context) error {
		ran = true
		if _, err := c.Acquire(ctx, "k", Options{}); !errors.Is(err, ErrBusy) {
			t.Errorf("expected key held inside WithLease, got %v", err)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithLease failed: %v %v", ran, err)
	}
	if _, err := c.Acquire(ctx, "k", Options{}); err != nil {
		t.Fatalf("expected key released after WithLease: %v", err)
	}
}

func TestLostLeaseCancelsContext(t *testing.T) {
	c := NewMemory()
	lease, err := c.Acquire(context.Background(), "k", Options{TTL: 100 * time.Millisecond, RenewEvery: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	c.b.(*memoryBackend).steal("k")

	select {
	case <-lease.Context.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("lease context not cancelled after losing the lease")
	}
	if !errors.Is(context.Cause(lease.Context), ErrLost) {
		t.Fatalf("expected ErrLost cause, got %v", context.Cause(lease.Context))
	}
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

type fakeDB struct {
	row   fakeRow
	execs []string
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func TestPostgresBackend(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	c := NewPostgres(db)
	if _, err := c.Acquire(context.Background(), "k", Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("no returned row should mean busy, got %v", err)
	}

	db.row = fakeRow{value: "k"}
	lease, err := c.Acquire(context.Background(), "k", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	_ = lease.Release(context.Background())
	if len(db.execs) != 1 || db.execs[0] != releaseSQL {
		t.Fatalf("expected release statement, got %v", db.execs)
	}
}

package analytics

import (
	"testing"
	"time"
)

func TestBatcherAccumulatesUntilDrain(t *testing.T) {
	b := newBatcher()
	b.add(item{imageBytes: []byte("a")})
	b.add(item{imageBytes: []byte("b")})

	items := b.drain()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if len(b.drain()) != 0 {
		t.Fatalf("expected drain to empty the batch")
	}
}

func TestBatcherRunFlushesOnInterval(t *testing.T) {
	b := newBatcher()
	b.add(item{imageBytes: []byte("a")})

	done := make(chan struct{})
	flushed := make(chan []item, 1)

	go b.run(10*time.Millisecond, done, func(items []item) {
		select {
		case flushed <- items:
		default:
		}
	})

	select {
	case items := <-flushed:
		if len(items) != 1 {
			t.Fatalf("expected 1 item flushed, got %d", len(items))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush")
	}
	close(done)
}

func TestBatcherRunFlushesRemainderOnDone(t *testing.T) {
	b := newBatcher()
	b.add(item{imageBytes: []byte("a")})

	done := make(chan struct{})
	close(done)

	flushed := make(chan []item, 1)
	b.run(time.Hour, done, func(items []item) {
		flushed <- items
	})

	select {
	case items := <-flushed:
		if len(items) != 1 {
			t.Fatalf("expected final drain to flush the pending item, got %d", len(items))
		}
	default:
		t.Fatal("expected flush to be called synchronously on done")
	}
}

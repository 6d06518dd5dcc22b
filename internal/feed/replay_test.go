package feed

import (
	"fmt"
	"testing"
)

func TestReplaySinceReturnsNewerEntries(t *testing.T) {
	rb := NewReplayBuffer(10)
	for i := int64(1); i <= 5; i++ {
		rb.Push(i, []byte(fmt.Sprintf("msg-%d", i)))
	}

	got := rb.Since(3)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after seq 3, got %d", len(got))
	}
	if string(got[0]) != "msg-4" || string(got[1]) != "msg-5" {
		t.Errorf("expected oldest-first [msg-4 msg-5], got [%s %s]", got[0], got[1])
	}
	if got := rb.Since(5); len(got) != 0 {
		t.Errorf("caught-up client gets nothing, got %d", len(got))
	}
	if got := rb.Since(0); len(got) != 5 {
		t.Errorf("seq 0 replays everything, got %d", len(got))
	}
}

func TestReplayOverwritesOldest(t *testing.T) {
	rb := NewReplayBuffer(3)
	for i := int64(1); i <= 5; i++ {
		rb.Push(i, []byte(fmt.Sprintf("msg-%d", i)))
	}

	if rb.Len() != 3 {
		t.Fatalf("expected capacity-bound length 3, got %d", rb.Len())
	}
	got := rb.Since(0)
	if len(got) != 3 || string(got[0]) != "msg-3" || string(got[2]) != "msg-5" {
		t.Fatalf("expected the last three entries oldest-first, got %q", got)
	}
}

func TestReplayCopiesData(t *testing.T) {
	rb := NewReplayBuffer(4)
	payload := []byte("original")
	rb.Push(1, payload)
	payload[0] = 'X'

	if got := rb.Since(0); string(got[0]) != "original" {
		t.Fatalf("buffer must hold its own copy, got %q", got[0])
	}
}

func TestReplayZeroCapacityDefaults(t *testing.T) {
	rb := NewReplayBuffer(0)
	rb.Push(1, []byte("a"))
	if rb.Len() != 1 {
		t.Fatalf("default-capacity buffer must accept pushes, got len %d", rb.Len())
	}
}

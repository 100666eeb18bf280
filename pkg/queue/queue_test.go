package queue_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/duraq/pkg/queue"
)

func mustOpen(t *testing.T, dir string) *queue.Queue {
	t.Helper()
	q, err := queue.Open(dir)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return q
}

func mustPush(t *testing.T, q *queue.Queue, msg string) {
	t.Helper()
	if _, err := q.Push(msg); err != nil {
		t.Fatalf("Push(%q): %v", msg, err)
	}
}

func pullAll(t *testing.T, q *queue.Queue, consumerID string) []string {
	t.Helper()
	var messages []string
	for {
		msg, ok, err := q.Pull(consumerID)
		if err != nil {
			t.Fatalf("Pull(%q): %v", consumerID, err)
		}
		if !ok {
			return messages
		}
		messages = append(messages, msg)
	}
}

// TestQueueFIFOOrder: N pushed messages come back in push order and the
// (N+1)th pull reports nothing available.
func TestQueueFIFOOrder(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	const n = 20
	for i := 0; i < n; i++ {
		mustPush(t, q, fmt.Sprintf("msg-%d", i))
	}

	for i := 0; i < n; i++ {
		msg, ok, err := q.Pull("c1")
		if err != nil {
			t.Fatalf("Pull %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Pull %d: queue empty too early", i)
		}
		if want := fmt.Sprintf("msg-%d", i); msg != want {
			t.Errorf("Pull %d = %q, want %q", i, msg, want)
		}
	}

	if _, ok, err := q.Pull("c1"); err != nil || ok {
		t.Errorf("pull %d: ok=%v err=%v, want empty", n+1, ok, err)
	}
}

func TestQueuePushReturnsOrdinal(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	for i := int64(0); i < 5; i++ {
		ordinal, err := q.Push("m")
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		if ordinal != i {
			t.Errorf("ordinal = %d, want %d", ordinal, i)
		}
	}
	if q.Count() != 5 {
		t.Errorf("Count = %d, want 5", q.Count())
	}
}

// TestQueueBroadcast: independently named consumers each observe the
// identical full sequence, whatever the interleaving.
func TestQueueBroadcast(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	messages := []string{"alpha", "beta", "gamma", "delta"}
	for _, m := range messages {
		mustPush(t, q, m)
	}

	var got1, got2 []string
	for i := 0; i < len(messages); i++ {
		// Interleave the two consumers on purpose.
		m1, ok, err := q.Pull("c1")
		if err != nil || !ok {
			t.Fatalf("c1 pull %d: ok=%v err=%v", i, ok, err)
		}
		m2, ok, err := q.Pull("c2")
		if err != nil || !ok {
			t.Fatalf("c2 pull %d: ok=%v err=%v", i, ok, err)
		}
		got1 = append(got1, m1)
		got2 = append(got2, m2)
	}

	for i, want := range messages {
		if got1[i] != want {
			t.Errorf("c1[%d] = %q, want %q", i, got1[i], want)
		}
		if got2[i] != want {
			t.Errorf("c2[%d] = %q, want %q", i, got2[i], want)
		}
	}
}

// TestQueueResumeAfterPartialConsumption: a consumer that stops at k
// and resumes after more pushes sees exactly the remainder from k.
func TestQueueResumeAfterPartialConsumption(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	for i := 0; i < 3; i++ {
		mustPush(t, q, fmt.Sprintf("early-%d", i))
	}

	// Consume k=2 of the first batch.
	for i := 0; i < 2; i++ {
		if _, ok, err := q.Pull("c1"); err != nil || !ok {
			t.Fatalf("pull %d: ok=%v err=%v", i, ok, err)
		}
	}

	for i := 0; i < 2; i++ {
		mustPush(t, q, fmt.Sprintf("late-%d", i))
	}

	want := []string{"early-2", "late-0", "late-1"}
	got := pullAll(t, q, "c1")
	if len(got) != len(want) {
		t.Fatalf("resumed pulls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resumed[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestQueueRestartIdempotence: restarting from the persisted log and
// ledger reproduces identical messages and cursors.
func TestQueueRestartIdempotence(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)

	const n = 10
	for i := 0; i < n; i++ {
		mustPush(t, q, fmt.Sprintf("msg-%d", i))
	}
	// Advance consumers to arbitrary cursors.
	for i := 0; i < 4; i++ {
		if _, ok, err := q.Pull("c1"); err != nil || !ok {
			t.Fatalf("c1 pull: ok=%v err=%v", ok, err)
		}
	}
	for i := 0; i < 7; i++ {
		if _, ok, err := q.Pull("c2"); err != nil || !ok {
			t.Fatalf("c2 pull: ok=%v err=%v", ok, err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted := mustOpen(t, dir)
	defer restarted.Close()

	if restarted.Count() != n {
		t.Fatalf("Count after restart = %d, want %d", restarted.Count(), n)
	}
	if got := restarted.CursorOf("c1"); got != 4 {
		t.Errorf("c1 cursor after restart = %d, want 4", got)
	}
	if got := restarted.CursorOf("c2"); got != 7 {
		t.Errorf("c2 cursor after restart = %d, want 7", got)
	}

	// A fresh consumer reads every message byte for byte.
	got := pullAll(t, restarted, "fresh")
	if len(got) != n {
		t.Fatalf("fresh consumer got %d messages, want %d", len(got), n)
	}
	for i, msg := range got {
		if want := fmt.Sprintf("msg-%d", i); msg != want {
			t.Errorf("fresh[%d] = %q, want %q", i, msg, want)
		}
	}

	// c1 resumes exactly where it stopped.
	if msg, ok, err := restarted.Pull("c1"); err != nil || !ok || msg != "msg-4" {
		t.Errorf("c1 resume = (%q, %v, %v), want msg-4", msg, ok, err)
	}
}

// TestQueueFiveMessageScenario is the concrete end-to-end scenario:
// five pushes, c1 drains them in order, a later c2 sees the same five.
func TestQueueFiveMessageScenario(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	messages := []string{"first", "second", "third", "fourth", "fifth"}
	for _, m := range messages {
		mustPush(t, q, m)
	}

	for i, want := range messages {
		msg, ok, err := q.Pull("c1")
		if err != nil || !ok {
			t.Fatalf("c1 pull %d: ok=%v err=%v", i, ok, err)
		}
		if msg != want {
			t.Errorf("c1 pull %d = %q, want %q", i, msg, want)
		}
	}
	if _, ok, _ := q.Pull("c1"); ok {
		t.Error("c1 sixth pull should find nothing")
	}

	got := pullAll(t, q, "c2")
	if len(got) != len(messages) {
		t.Fatalf("c2 got %d messages, want %d", len(got), len(messages))
	}
	for i, want := range messages {
		if got[i] != want {
			t.Errorf("c2[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestQueueEmptyOnFreshDir(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	if q.Count() != 0 {
		t.Errorf("Count = %d, want 0", q.Count())
	}
	if _, ok, err := q.Pull("c1"); err != nil || ok {
		t.Errorf("pull on empty queue: ok=%v err=%v", ok, err)
	}
	if got := q.CursorOf("c1"); got != 0 {
		t.Errorf("CursorOf = %d, want 0", got)
	}
}

func TestQueueCursorsSnapshot(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	mustPush(t, q, "one")
	if _, ok, err := q.Pull("c1"); err != nil || !ok {
		t.Fatalf("pull: ok=%v err=%v", ok, err)
	}

	cursors := q.Cursors()
	if cursors["c1"] != 1 {
		t.Errorf("cursors[c1] = %d, want 1", cursors["c1"])
	}
}

// TestQueueClampsCursorBeyondIndex: a persisted cursor pointing past
// the rebuilt index (as after a truncated recovery) is not an error, it
// just means nothing is available.
func TestQueueClampsCursorBeyondIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "offsets.json"), []byte(`{"c1":100}`), 0o644); err != nil {
		t.Fatalf("seed offsets: %v", err)
	}

	q := mustOpen(t, dir)
	defer q.Close()

	if _, ok, err := q.Pull("c1"); err != nil || ok {
		t.Errorf("pull with over-long cursor: ok=%v err=%v, want empty", ok, err)
	}
	if got := q.CursorOf("c1"); got != 100 {
		t.Errorf("cursor = %d, want untouched 100", got)
	}

	// New messages stay invisible to c1 until the index catches up.
	mustPush(t, q, "new")
	if _, ok, _ := q.Pull("c1"); ok {
		t.Error("cursor 100 should still be past index length 1")
	}
}

func TestQueuePreservesUnicodePayloads(t *testing.T) {
	q := mustOpen(t, t.TempDir())
	defer q.Close()

	message := "héllo wörld 메시지 🚀"
	mustPush(t, q, message)

	got, ok, err := q.Pull("c1")
	if err != nil || !ok {
		t.Fatalf("pull: ok=%v err=%v", ok, err)
	}
	if got != message {
		t.Errorf("got %q, want %q", got, message)
	}
}

package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"websitecrawler/packages/domain"
)

func newTestJob(t *testing.T, rawURL string) *domain.Job {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	job, err := domain.NewJob(u, t.TempDir(), nil, nil, domain.Options{})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestPutGetComplete(t *testing.T) {
	l := New(false)
	job := newTestJob(t, "https://example.com/")

	l.Put(job)
	if got := l.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	got, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out with a pending job")
	}
	if got.Key() != job.Key() {
		t.Fatalf("got key %q, want %q", got.Key(), job.Key())
	}
	if l.ReservedCount() != 1 || l.PendingCount() != 0 {
		t.Fatalf("reserved = %d, pending = %d after Get", l.ReservedCount(), l.PendingCount())
	}

	l.Complete(got, 200)
	if l.ReservedCount() != 0 || l.CompletedCount() != 1 || l.SucceededCount() != 1 {
		t.Fatalf("unexpected counters after Complete: %v", l.Snapshot())
	}
}

func TestPutDropsReservedAndCompletedKeys(t *testing.T) {
	l := New(false)
	l.Put(newTestJob(t, "https://example.com/"))

	reserved, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out")
	}

	// Same key is in flight: the put must be a silent no-op.
	l.Put(newTestJob(t, "https://example.com/"))
	if got := l.PendingCount(); got != 0 {
		t.Fatalf("pending = %d after duplicate put of reserved key, want 0", got)
	}

	l.Complete(reserved, 200)
	l.Put(newTestJob(t, "https://example.com/"))
	if got := l.PendingCount(); got != 0 {
		t.Fatalf("pending = %d after duplicate put of completed key, want 0", got)
	}
}

func TestFragmentIgnoredForDedup(t *testing.T) {
	l := New(false)
	l.Put(newTestJob(t, "https://example.com/p"))

	job, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out")
	}
	l.Complete(job, 200)

	l.Put(newTestJob(t, "https://example.com/p#section"))
	if got := l.PendingCount(); got != 0 {
		t.Fatalf("pending = %d, fragment should not defeat dedup", got)
	}
}

func TestPendingDuplicateDroppedAtReservation(t *testing.T) {
	l := New(false)

	// Put does not scan pending, so both copies are queued.
	l.Put(newTestJob(t, "https://example.com/"))
	l.Put(newTestJob(t, "https://example.com/"))
	if got := l.PendingCount(); got != 2 {
		t.Fatalf("pending = %d, want 2 transient duplicates", got)
	}

	first, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out")
	}

	// The second copy must be dropped at reservation time, not handed out.
	if _, ok := l.Get(50 * time.Millisecond); ok {
		t.Fatal("duplicate pending job was handed out a second time")
	}
	if got := l.PendingCount(); got != 0 {
		t.Fatalf("pending = %d after duplicate drop, want 0", got)
	}

	l.Complete(first, 200)
	if l.CompletedCount() != 1 {
		t.Fatalf("completed = %d, want 1", l.CompletedCount())
	}
}

func TestCompleteWithAdoptedURL(t *testing.T) {
	l := New(false)
	l.Put(newTestJob(t, "https://example.com/dir"))

	job, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out")
	}

	// A processor adopts the final URL of a followed redirect before the
	// runner records completion.
	final, err := url.Parse("https://example.com/dir/")
	if err != nil {
		t.Fatal(err)
	}
	job.RemoteURL = final
	l.Complete(job, 200)

	if got := l.ReservedCount(); got != 0 {
		t.Fatalf("reserved = %d after completing an adopted job, want 0", got)
	}
	if !l.Drained() {
		t.Fatal("ledger not drained after completing an adopted job")
	}

	// Both the reserved and the adopted URL count as done.
	l.Put(newTestJob(t, "https://example.com/dir"))
	l.Put(newTestJob(t, "https://example.com/dir/"))
	if got := l.PendingCount(); got != 0 {
		t.Fatalf("pending = %d, both redirect URLs should be deduplicated", got)
	}
	if got := l.CompletedCount(); got != 2 {
		t.Fatalf("completed = %d, want both redirect URLs recorded", got)
	}
}

func TestPutWakesAllGetters(t *testing.T) {
	l := New(false)

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, ok := l.Get(5 * time.Second)
			results <- ok
		}()
	}
	time.Sleep(50 * time.Millisecond)

	l.Put(newTestJob(t, "https://example.com/a"))
	l.Put(newTestJob(t, "https://example.com/b"))

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			if !ok {
				t.Fatal("getter timed out despite available jobs")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("getter still blocked after both jobs were enqueued")
		}
	}
}

func TestGetTimeout(t *testing.T) {
	l := New(false)
	if _, ok := l.Get(30 * time.Millisecond); ok {
		t.Fatal("Get returned a job from an empty ledger")
	}
}

func TestConcurrentDedup(t *testing.T) {
	const keys = 100
	const putters = 4
	const workers = 4

	l := New(false)

	var putWG sync.WaitGroup
	for p := 0; p < putters; p++ {
		putWG.Add(1)
		go func() {
			defer putWG.Done()
			for i := 0; i < keys; i++ {
				l.Put(newTestJob(t, fmt.Sprintf("https://example.com/page/%d", i)))
			}
		}()
	}
	putWG.Wait()

	var mu sync.Mutex
	processed := make(map[string]int)

	var workWG sync.WaitGroup
	for w := 0; w < workers; w++ {
		workWG.Add(1)
		go func() {
			defer workWG.Done()
			for {
				job, ok := l.Get(50 * time.Millisecond)
				if !ok {
					return
				}
				mu.Lock()
				processed[job.Key()]++
				mu.Unlock()
				l.Complete(job, 200)
			}
		}()
	}
	workWG.Wait()

	if len(processed) != keys {
		t.Fatalf("processed %d distinct keys, want %d", len(processed), keys)
	}
	for key, n := range processed {
		if n != 1 {
			t.Errorf("key %q processed %d times, want exactly 1", key, n)
		}
	}
	if l.CompletedCount() != keys {
		t.Errorf("completed = %d, want %d", l.CompletedCount(), keys)
	}
	if l.PendingCount() != 0 || l.ReservedCount() != 0 {
		t.Errorf("ledger not drained: pending=%d reserved=%d", l.PendingCount(), l.ReservedCount())
	}
}

func TestJoin(t *testing.T) {
	l := New(false)
	l.Put(newTestJob(t, "https://example.com/"))

	go func() {
		job, ok := l.Get(time.Second)
		if !ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
		l.Complete(job, 200)
	}()

	done := make(chan struct{})
	go func() {
		l.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Join did not return after the ledger drained")
	}
	if !l.Drained() {
		t.Fatal("ledger reports not drained after Join")
	}
}

func TestSucceededCount(t *testing.T) {
	l := New(false)
	for i, code := range []int{200, 404, 200, 500} {
		job := newTestJob(t, fmt.Sprintf("https://example.com/%d", i))
		l.Put(job)
		got, ok := l.Get(time.Second)
		if !ok {
			t.Fatal("Get timed out")
		}
		l.Complete(got, code)
	}
	if got := l.CompletedCount(); got != 4 {
		t.Fatalf("completed = %d, want 4", got)
	}
	if got := l.SucceededCount(); got != 2 {
		t.Fatalf("succeeded = %d, want 2", got)
	}
}

func TestWriteSnapshot(t *testing.T) {
	l := New(false)
	l.Put(newTestJob(t, "https://example.com/a"))
	l.Put(newTestJob(t, "https://example.com/b"))

	job, ok := l.Get(time.Second)
	if !ok {
		t.Fatal("Get timed out")
	}
	l.Complete(job, 200)

	var buf bytes.Buffer
	if err := l.WriteSnapshot(&buf); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if len(snap.Pending) != 1 || len(snap.Completed) != 1 {
		t.Errorf("snapshot = %+v, want 1 pending and 1 completed", snap)
	}
	if snap.Completed["https://example.com/a"] != 200 {
		t.Errorf("completed code = %d, want 200", snap.Completed["https://example.com/a"])
	}
}

package arxiv

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())

	created, job := tr.Begin("2301.00001")
	if !created {
		t.Fatal("Begin on empty tracker did not create a job")
	}
	if job.Phase != PhaseDownloading || job.CompletedAt != nil {
		t.Fatalf("new job = %+v", job)
	}

	if _, ok := tr.Advance("2301.00001", PhaseConverting, nil); !ok {
		t.Fatal("downloading -> converting refused")
	}
	job, ok := tr.Advance("2301.00001", PhaseSucceeded, nil)
	if !ok {
		t.Fatal("converting -> succeeded refused")
	}
	if job.CompletedAt == nil || job.CompletedAt.Before(job.StartedAt) {
		t.Errorf("CompletedAt = %v, StartedAt = %v", job.CompletedAt, job.StartedAt)
	}
	if job.Error != "" {
		t.Errorf("Error = %q on success", job.Error)
	}
}

func TestTrackerRejectsDisallowedTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		path  []Phase
		next  Phase
		allow bool
	}{
		{"skip converting", nil, PhaseSucceeded, false},
		{"back to downloading", []Phase{PhaseConverting}, PhaseDownloading, false},
		{"fail while downloading", nil, PhaseFailed, true},
		{"fail while converting", []Phase{PhaseConverting}, PhaseFailed, true},
		{"leave succeeded", []Phase{PhaseConverting, PhaseSucceeded}, PhaseFailed, false},
		{"leave failed", []Phase{PhaseFailed}, PhaseConverting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(zerolog.Nop())
			tr.Begin("x")
			for _, p := range tt.path {
				if _, ok := tr.Advance("x", p, nil); !ok {
					t.Fatalf("setup transition to %s refused", p)
				}
			}
			before, _ := tr.Status("x")
			after, ok := tr.Advance("x", tt.next, nil)
			if ok != tt.allow {
				t.Fatalf("Advance to %s ok = %v, want %v", tt.next, ok, tt.allow)
			}
			if !ok && after.Phase != before.Phase {
				t.Errorf("refused transition changed phase %s -> %s", before.Phase, after.Phase)
			}
		})
	}
}

func TestTrackerAdvanceUnknownID(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())
	if _, ok := tr.Advance("nope", PhaseConverting, nil); ok {
		t.Error("Advance on unknown id reported ok")
	}
	if tr.Len() != 0 {
		t.Error("Advance created a job")
	}
}

func TestTrackerFailureRecordsError(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())
	tr.Begin("a")
	job, _ := tr.Advance("a", PhaseFailed, errors.New("boom"))
	if job.Error != "boom" {
		t.Errorf("Error = %q, want boom", job.Error)
	}

	tr.Begin("b")
	job, _ = tr.Advance("b", PhaseFailed, nil)
	if job.Error == "" {
		t.Error("failed job without error text")
	}
}

func TestTrackerBeginKeepsLiveJob(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())
	_, first := tr.Begin("a")
	created, again := tr.Begin("a")
	if created || again.ID != first.ID {
		t.Fatalf("Begin replaced a live job: created=%v", created)
	}

	tr.Advance("a", PhaseFailed, errors.New("x"))
	created, fresh := tr.Begin("a")
	if !created || fresh.ID == first.ID || fresh.Phase != PhaseDownloading {
		t.Fatalf("Begin after failure: created=%v job=%+v", created, fresh)
	}
}

func TestTrackerConcurrentBeginCreatesOneJob(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())

	const n = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := tr.Begin("2301.00001"); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if created != 1 {
		t.Fatalf("created %d jobs, want 1", created)
	}
}

func TestTrackerSweep(t *testing.T) {
	t.Parallel()
	tr := NewTracker(zerolog.Nop())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Begin("done")
	tr.Advance("done", PhaseFailed, nil)
	tr.Begin("live")

	now = now.Add(time.Hour)
	if n := tr.Sweep(now.Add(-30 * time.Minute)); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, ok := tr.Status("done"); ok {
		t.Error("terminal job survived sweep")
	}
	if _, ok := tr.Status("live"); !ok {
		t.Error("live job was swept")
	}
}

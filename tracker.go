package arxiv

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the lifecycle state of a conversion job.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseConverting  Phase = "converting"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"

	// PhaseUnknown is reported for ids with neither a job nor an artifact.
	PhaseUnknown Phase = "unknown"
)

// Terminal reports whether no further transitions can happen from p.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

func allowedTransition(from, to Phase) bool {
	switch from {
	case PhaseDownloading:
		return to == PhaseConverting || to == PhaseFailed
	case PhaseConverting:
		return to == PhaseSucceeded || to == PhaseFailed
	default:
		return false
	}
}

// Job is one acquisition attempt for a paper.
type Job struct {
	ID          uuid.UUID
	PaperID     string
	Phase       Phase
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Live reports whether the job has not yet reached a terminal phase.
func (j Job) Live() bool {
	return !j.Phase.Terminal()
}

// Tracker is the in-memory registry of conversion jobs, one per paper id.
// All mutation goes through Begin and Advance; readers get copies.
type Tracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
	log  zerolog.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		jobs: make(map[string]*Job),
		now:  time.Now,
		log:  log,
	}
}

// Begin starts a job for id unless a live one exists.
// It returns created=false and the existing job when one is in flight;
// a terminal job is replaced by a fresh one in PhaseDownloading.
func (t *Tracker) Begin(id string) (bool, Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok && job.Live() {
		return false, *job
	}
	job := &Job{
		ID:        uuid.New(),
		PaperID:   id,
		Phase:     PhaseDownloading,
		StartedAt: t.now(),
	}
	t.jobs[id] = job
	return true, *job
}

// Advance moves the job for id to phase. err is recorded when phase is
// PhaseFailed. Unknown ids and disallowed transitions are logged and
// ignored; ok reports whether the transition happened.
func (t *Tracker) Advance(id string, phase Phase, err error) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, found := t.jobs[id]
	if !found {
		t.log.Warn().Str("paper_id", id).Str("phase", string(phase)).Msg("advance for unknown job")
		return Job{}, false
	}
	if !allowedTransition(job.Phase, phase) {
		t.log.Warn().
			Str("paper_id", id).
			Str("job_id", job.ID.String()).
			Str("from", string(job.Phase)).
			Str("to", string(phase)).
			Msg("ignoring disallowed phase transition")
		return *job, false
	}

	job.Phase = phase
	if phase == PhaseFailed {
		job.Error = "unknown error"
		if err != nil {
			job.Error = err.Error()
		}
	}
	if phase.Terminal() {
		now := t.now()
		job.CompletedAt = &now
	}
	return *job, true
}

// Status returns the latest job for id.
func (t *Tracker) Status(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Sweep drops terminal jobs that completed before cutoff and returns how
// many were removed. Live jobs are never dropped.
func (t *Tracker) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, job := range t.jobs {
		if job.Live() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(t.jobs, id)
		n++
	}
	return n
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

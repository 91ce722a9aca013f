package arxiv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Catalog records paper metadata alongside stored artifacts.
// *Index implements it.
type Catalog interface {
	Save(ctx context.Context, p *Paper) error
	MarkConverted(ctx context.Context, id, path string) error
	Papers(ctx context.Context, ids []string) (map[string]*Paper, error)
}

// Scheduler runs background work without blocking the caller.
// *Pool implements it.
type Scheduler interface {
	Submit(task func()) error
}

// Status is the caller-facing view of a paper's acquisition.
type Status struct {
	PaperID     string     `json:"paper_id"`
	Phase       Phase      `json:"status"`
	JobID       string     `json:"job_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	ResourceURI string     `json:"resource_uri,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Library downloads papers, converts them to markdown in the background
// and serves the results. It holds no state of its own: jobs live in the
// Tracker and artifacts in the Store.
//
// At most one download and one conversion run per paper id at a time;
// concurrent requests for the same id observe the job already in flight.
// Started jobs always run to completion, even when the caller that
// started them goes away; there is no cancellation.
type Library struct {
	store     *Store
	tracker   *Tracker
	source    Source
	converter Converter
	scheduler Scheduler
	catalog   Catalog
	keepPDF   bool
	log       zerolog.Logger
}

// Config wires a Library. Store, Tracker, Source, Converter and
// Scheduler are required; Catalog is optional.
type Config struct {
	Store     *Store
	Tracker   *Tracker
	Source    Source
	Converter Converter
	Scheduler Scheduler
	Catalog   Catalog
	// KeepPDF keeps the downloaded PDF next to the markdown artifact.
	KeepPDF bool
	Logger  zerolog.Logger
}

// NewLibrary returns a Library using the collaborators in cfg.
func NewLibrary(cfg Config) (*Library, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("library: nil store")
	case cfg.Tracker == nil:
		return nil, fmt.Errorf("library: nil tracker")
	case cfg.Source == nil:
		return nil, fmt.Errorf("library: nil source")
	case cfg.Converter == nil:
		return nil, fmt.Errorf("library: nil converter")
	case cfg.Scheduler == nil:
		return nil, fmt.Errorf("library: nil scheduler")
	}
	return &Library{
		store:     cfg.Store,
		tracker:   cfg.Tracker,
		source:    cfg.Source,
		converter: cfg.Converter,
		scheduler: cfg.Scheduler,
		catalog:   cfg.Catalog,
		keepPDF:   cfg.KeepPDF,
		log:       cfg.Logger,
	}, nil
}

// Acquire makes sure the paper id ends up converted in the store.
//
// With checkStatusOnly it only reports Status(id). Otherwise a stored
// artifact is reported as succeeded at once; a job already in flight is
// reported as is; else a new job downloads the paper and hands the
// conversion to the scheduler, returning while it is still converting.
//
// The error is non-nil only for an invalid id. Pipeline failures are
// reported as PhaseFailed and recorded on the job.
func (l *Library) Acquire(ctx context.Context, id string, checkStatusOnly bool) (Status, error) {
	if err := ValidateID(id); err != nil {
		return Status{}, err
	}
	if checkStatusOnly {
		return l.Status(id), nil
	}
	if st, ok := l.cached(id); ok {
		return st, nil
	}

	created, job := l.tracker.Begin(id)
	if !created {
		st := jobStatus(job)
		st.Message = "Paper acquisition already in progress"
		return st, nil
	}
	log := l.log.With().Str("paper_id", id).Str("job_id", job.ID.String()).Logger()

	// Another job may have finished between the cache check and Begin.
	if l.store.Exists(id) {
		l.tracker.Advance(id, PhaseConverting, nil)
		job, _ = l.tracker.Advance(id, PhaseSucceeded, nil)
		st := l.withArtifact(jobStatus(job))
		st.Message = "Paper already available"
		return st, nil
	}

	// The job outlives the request that started it; the source's own
	// timeout bounds the download.
	ctx = context.WithoutCancel(ctx)
	log.Info().Msg("downloading paper")
	res, err := l.source.Fetch(ctx, id)
	if err != nil {
		msg := fetchFailure(id, err)
		log.Warn().Err(err).Msg("download failed")
		job, _ = l.tracker.Advance(id, PhaseFailed, errors.New(msg))
		st := jobStatus(job)
		st.Message = msg
		return st, nil
	}

	if res.Paper != nil && l.catalog != nil {
		if err := l.catalog.Save(ctx, res.Paper); err != nil {
			log.Warn().Err(err).Msg("saving metadata")
		}
	}
	if l.keepPDF {
		if err := l.store.WriteSource(id, res.PDF); err != nil {
			log.Warn().Err(err).Msg("saving pdf")
		}
	}

	job, _ = l.tracker.Advance(id, PhaseConverting, nil)
	st := jobStatus(job)
	st.Message = "Paper downloaded, conversion started"

	pdf := res.PDF
	if err := l.scheduler.Submit(func() { l.convert(id, pdf, log) }); err != nil {
		log.Error().Err(err).Msg("scheduling conversion")
		job, _ = l.tracker.Advance(id, PhaseFailed, newError(ErrUnavailable, id, err))
		st = jobStatus(job)
		st.Message = "Conversion could not be scheduled, try again later"
	}
	return st, nil
}

// convert is the background unit. Every exit path ends in a terminal phase.
func (l *Library) convert(id string, pdf []byte, log zerolog.Logger) {
	done := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("conversion panicked")
			l.tracker.Advance(id, PhaseFailed, errorf(ErrConversion, id, "panic: %v", r))
			return
		}
		if !done {
			l.tracker.Advance(id, PhaseFailed, newError(ErrConversion, id, nil))
		}
	}()

	start := time.Now()
	text, err := l.converter.Convert(pdf)
	if err != nil {
		done = true
		log.Warn().Err(err).Msg("conversion failed")
		l.tracker.Advance(id, PhaseFailed, withPaperID(ensureKind(err, ErrConversion), id))
		return
	}
	if err := l.store.Write(id, text); err != nil {
		done = true
		log.Error().Err(err).Msg("writing artifact")
		l.tracker.Advance(id, PhaseFailed, withPaperID(ensureKind(err, ErrStorage), id))
		return
	}

	if l.catalog != nil {
		if err := l.catalog.MarkConverted(context.Background(), id, l.store.Path(id)); err != nil {
			log.Warn().Err(err).Msg("recording conversion")
		}
	}
	if !l.keepPDF {
		if err := l.store.RemoveSource(id); err != nil {
			log.Warn().Err(err).Msg("removing pdf")
		}
	}

	done = true
	l.tracker.Advance(id, PhaseSucceeded, nil)
	log.Info().Dur("took", time.Since(start)).Int("bytes", len(text)).Msg("paper converted")
}

// Status reports the current state of id. It never fails: ids with no
// job and no artifact are reported as PhaseUnknown.
func (l *Library) Status(id string) Status {
	if job, ok := l.tracker.Status(id); ok {
		st := jobStatus(job)
		if job.Phase == PhaseSucceeded {
			st = l.withArtifact(st)
		}
		st.Message = "Paper conversion " + string(job.Phase)
		return st
	}
	if st, ok := l.cached(id); ok {
		return st
	}
	return Status{
		PaperID: id,
		Phase:   PhaseUnknown,
		Message: "No download or conversion in progress",
	}
}

// Read returns the stored markdown for id. It fails with ErrNotFound
// when there is no artifact; the status then says whether a job is
// still working on it.
func (l *Library) Read(id string) (Status, string, error) {
	if err := ValidateID(id); err != nil {
		return Status{}, "", err
	}
	text, err := l.store.Read(id)
	if err == nil {
		st := l.Status(id)
		st.Message = ""
		return st, text, nil
	}
	st := l.Status(id)
	if !errors.Is(err, ErrNotFound) {
		return st, "", err
	}
	if st.Phase == PhaseDownloading || st.Phase == PhaseConverting {
		return st, "", errorf(ErrNotFound, id, "paper is still %s", st.Phase)
	}
	return st, "", errorf(ErrNotFound, id,
		"paper not found in storage, download it first with download_paper")
}

// listLookupConcurrency bounds concurrent upstream metadata lookups in List.
const listLookupConcurrency = 4

// List returns every stored paper. Metadata comes from the catalog;
// papers missing from it are looked up with lookup (when non-nil) and
// saved back. Papers whose metadata cannot be found carry only their id.
func (l *Library) List(ctx context.Context, lookup func(ctx context.Context, id string) (*Paper, error)) ([]*Paper, error) {
	ids, err := l.store.List()
	if err != nil {
		return nil, err
	}

	known := map[string]*Paper{}
	if l.catalog != nil {
		if known, err = l.catalog.Papers(ctx, ids); err != nil {
			l.log.Warn().Err(err).Msg("reading catalog")
			known = map[string]*Paper{}
		}
	}

	papers := make([]*Paper, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listLookupConcurrency)
	for i, id := range ids {
		if p, ok := known[id]; ok {
			papers[i] = p
			continue
		}
		papers[i] = &Paper{ID: id}
		if lookup == nil {
			continue
		}
		g.Go(func() error {
			p, err := lookup(gctx, id)
			if err != nil || p == nil {
				l.log.Debug().Err(err).Str("paper_id", id).Msg("metadata lookup")
				return nil
			}
			p.ID = id
			papers[i] = p
			if l.catalog != nil {
				if err := l.catalog.Save(gctx, p); err != nil {
					l.log.Warn().Err(err).Str("paper_id", id).Msg("saving metadata")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return papers, nil
}

func (l *Library) cached(id string) (Status, bool) {
	info, err := l.store.Stat(id)
	if err != nil {
		return Status{}, false
	}
	mod := info.ModTime()
	return Status{
		PaperID:     id,
		Phase:       PhaseSucceeded,
		CompletedAt: &mod,
		ResourceURI: ResourceURI(id),
		Message:     "Paper already available",
	}, true
}

func (l *Library) withArtifact(st Status) Status {
	st.ResourceURI = ResourceURI(st.PaperID)
	return st
}

func jobStatus(job Job) Status {
	started := job.StartedAt
	return Status{
		PaperID:     job.PaperID,
		Phase:       job.Phase,
		JobID:       job.ID.String(),
		StartedAt:   &started,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
}

func fetchFailure(id string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("paper %s not found upstream", id)
	case errors.Is(err, ErrUnavailable):
		return fmt.Sprintf("arXiv unavailable, try again later: %v", err)
	default:
		return fmt.Sprintf("download failed: %v", err)
	}
}

func ensureKind(err, kind error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrConversion) || errors.Is(err, ErrStorage) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

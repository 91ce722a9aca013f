// Package arxiv downloads arXiv papers, converts them to markdown and
// keeps the results in a local cache.
//
// The pieces:
//   - Store: one markdown file per paper under a storage root
//   - Tracker: in-memory registry of conversion jobs, one per paper id
//   - Source: fetches a paper's PDF (ArxivSource talks to arxiv.org)
//   - Converter: PDF to markdown (PDFToText wraps poppler's pdftotext)
//   - Pool: background workers that run conversions
//   - Library: ties them together; Acquire, Status, Read and List
//   - Index: SQLite catalog of metadata for stored papers
//   - Client: arXiv Atom API client used for lookup and search
//
// Acquire never waits for a conversion. It downloads the PDF, hands the
// conversion to the pool and returns; callers poll Status until the job
// reaches PhaseSucceeded or PhaseFailed. Concurrent Acquire calls for the
// same id share one job, so a paper is downloaded and converted at most
// once at a time.
//
// Basic usage:
//
//	store, err := arxiv.OpenStore("/path/to/papers")
//	if err != nil {
//		log.Fatal(err)
//	}
//	pool := arxiv.NewPool(arxiv.DefaultPoolConfig(), logger)
//	pool.Start()
//	defer pool.Stop()
//
//	lib, err := arxiv.NewLibrary(arxiv.Config{
//		Store:     store,
//		Tracker:   arxiv.NewTracker(logger),
//		Source:    arxiv.NewArxivSource(arxiv.NewClient(time.Minute)),
//		Converter: arxiv.PDFToText{},
//		Scheduler: pool,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	st, err := lib.Acquire(ctx, "1706.03762", false)
//
// The tracker is process-local. Several processes sharing one storage root
// never corrupt each other's artifacts, but may download the same paper
// twice.
package arxiv

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tmc/arxiv-mcp"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "arxiv: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:   "arxiv",
		Short: "arXiv paper cache and MCP server",
		Long: `arxiv searches arXiv, downloads papers, converts them to markdown
and serves them to MCP clients.

Configuration comes from flags, ARXIV_* environment variables and an
optional .env file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.String("storage-path", defaultStoragePath(), "Directory holding converted papers")
	pf.String("index-path", "", "Metadata database (default: <storage-path>/index.db)")
	pf.Int("max-results", 50, "Upper bound on search results")
	pf.Duration("request-timeout", 60*time.Second, "Timeout for arXiv requests")
	pf.Int("workers", 2, "Concurrent conversions")
	pf.Int("queue-size", 64, "Pending conversions before new downloads fail")
	pf.Bool("keep-pdf", false, "Keep downloaded PDFs next to the markdown")
	pf.String("pdftotext", "pdftotext", "pdftotext binary")
	pf.Duration("job-ttl", 0, "Forget finished jobs after this long (0 keeps them)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "json", "Log format (json or console)")

	root.AddCommand(
		newServeCmd(v),
		newDownloadCmd(v),
		newStatusCmd(v),
		newReadCmd(v),
		newListCmd(v),
		newSearchCmd(v),
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "arxiv %s\n", version)
			},
		},
	)
	return root
}

// app holds the wired components shared by all commands.
type app struct {
	cfg     *Config
	log     zerolog.Logger
	store   *arxiv.Store
	index   *arxiv.Index
	tracker *arxiv.Tracker
	pool    *arxiv.Pool
	client  *arxiv.Client
	lib     *arxiv.Library
}

func openApp(v *viper.Viper) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := arxiv.OpenStore(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	index, err := arxiv.OpenIndex(cfg.IndexPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     logger,
		store:   store,
		index:   index,
		tracker: arxiv.NewTracker(logger),
		pool: arxiv.NewPool(arxiv.PoolConfig{
			Workers:   cfg.Workers,
			QueueSize: cfg.QueueSize,
		}, logger),
		client: arxiv.NewClient(cfg.RequestTimeout),
	}
	a.lib, err = arxiv.NewLibrary(arxiv.Config{
		Store:     store,
		Tracker:   a.tracker,
		Source:    arxiv.NewArxivSource(a.client),
		Converter: arxiv.PDFToText{Command: cfg.PDFToText},
		Scheduler: a.pool,
		Catalog:   index,
		KeepPDF:   cfg.KeepPDF,
		Logger:    logger,
	})
	if err != nil {
		index.Close()
		return nil, err
	}
	a.pool.Start()
	return a, nil
}

// Close waits for queued conversions before closing the index.
func (a *app) Close() error {
	a.pool.Stop()
	return a.index.Close()
}

func (a *app) tools() *tools {
	return &tools{
		lib:        a.lib,
		search:     a.client,
		maxResults: a.cfg.MaxResults,
		log:        a.log,
	}
}

func newDownloadCmd(v *viper.Viper) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "download [--wait] <paper-id>...",
		Short: "Download and convert papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			for _, raw := range args {
				id := arxiv.NormalizeID(raw)
				st, err := a.lib.Acquire(ctx, id, false)
				if err != nil {
					return err
				}
				if wait {
					st = waitTerminal(ctx, a.lib, id, st)
				}
				printJSON(cmd, st)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for each conversion to finish")
	return cmd
}

// waitTerminal polls until id leaves the live phases or ctx is done.
func waitTerminal(ctx context.Context, lib *arxiv.Library, id string, st arxiv.Status) arxiv.Status {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for !st.Phase.Terminal() && st.Phase != arxiv.PhaseUnknown {
		select {
		case <-ctx.Done():
			return st
		case <-ticker.C:
			st = lib.Status(id)
		}
	}
	return st
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status <paper-id>",
		Short: "Show whether a paper is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.lib.Acquire(cmd.Context(), arxiv.NormalizeID(args[0]), true)
			if err != nil {
				return err
			}
			printJSON(cmd, st)
			return nil
		},
	}
}

func newReadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "read <paper-id>",
		Short: "Print a stored paper's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			_, text, err := a.lib.Read(arxiv.NormalizeID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newListCmd(v *viper.Viper) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored papers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			lookup := a.tools().lookup
			if offline {
				lookup = nil
			}
			papers, err := a.lib.List(cmd.Context(), lookup)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(papers) == 0 {
				fmt.Fprintln(out, "No papers stored.")
				return nil
			}
			for _, p := range papers {
				fmt.Fprintf(out, "[%s] %s\n", p.ID, p.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not look up missing metadata on arXiv")
	return cmd
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	var (
		q     arxiv.SearchQuery
		local bool
		sort  string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search arXiv (or the local index with --local)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			q.Query = strings.Join(args, " ")
			q.SortBy = arxiv.SortBy(sort)

			var papers []*arxiv.Paper
			if local {
				rows, err := a.index.Search(cmd.Context(), q.Query, q.MaxResults)
				if err != nil {
					return err
				}
				for i := range rows {
					papers = append(papers, &rows[i])
				}
			} else {
				papers, err = a.client.Search(cmd.Context(), q, a.cfg.MaxResults)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(papers) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for _, p := range papers {
				fmt.Fprintf(out, "[%s] %s\n", p.ID, p.Title)
				fmt.Fprintf(out, "  %s\n", p.Authors)
				fmt.Fprintf(out, "  Categories: %s  Published: %s\n\n",
					p.Categories, p.Published.Format(time.DateOnly))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&q.MaxResults, "limit", "n", arxiv.DefaultMaxResults, "Max results")
	f.StringSliceVarP(&q.Categories, "category", "c", nil, "Restrict to categories (repeatable)")
	f.StringVar(&q.DateFrom, "from", "", "Earliest publication date (YYYY-MM-DD)")
	f.StringVar(&q.DateTo, "to", "", "Latest publication date (YYYY-MM-DD)")
	f.StringVar(&sort, "sort", string(arxiv.SortRelevance), "Sort by relevance or date")
	f.BoolVar(&local, "local", false, "Search the local metadata index instead")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

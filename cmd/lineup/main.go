package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/stagehand/lineup/internal/aggregator"
	"github.com/stagehand/lineup/internal/artist"
	"github.com/stagehand/lineup/internal/backup"
	"github.com/stagehand/lineup/internal/catalog"
	"github.com/stagehand/lineup/internal/config"
	"github.com/stagehand/lineup/internal/database"
	"github.com/stagehand/lineup/internal/event"
	"github.com/stagehand/lineup/internal/lineup"
	"github.com/stagehand/lineup/internal/logging"
	"github.com/stagehand/lineup/internal/pipeline"
	"github.com/stagehand/lineup/internal/watcher"
)

const usage = `Usage: lineup <command> [args]

Commands:
  add-event <name> <year> [timezone]    register a festival edition, print its ID
  resolve <event-id> <file> [timezone]  resolve a schedule export for an event
  fetch <event-id> <festival> <year>    look up a festival on the aggregator and resolve its export
  enrich                                retry catalog matching for unlinked identities
  watch                                 resolve exports dropped into the inbox directory
  backup                                snapshot the database and prune old snapshots
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired services every subcommand draws from.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	events   *event.Service
	artists  *artist.Service
	searcher artist.Searcher
	pipeline *pipeline.Pipeline

	logManager *logging.Manager
}

func run(command string, args []string) error {
	cfg, err := config.Load(os.Getenv("LINEUP_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		events:     event.NewService(db),
		artists:    artist.NewService(db),
		searcher:   buildSearcher(ctx, cfg, logger),
		logManager: logManager,
	}
	a.pipeline = pipeline.New(a.events, a.artists, a.searcher,
		lineup.NewSplitter(cfg.Lineup.AmpersandAllowList), logger, pipeline.Options{
			DayGap:         cfg.Lineup.DayGap.Std(),
			MatchThreshold: cfg.Resolver.MatchThreshold,
			SearchLimit:    cfg.Catalog.SearchLimit,
			CallDelay:      cfg.Catalog.CallDelay.Std(),
		})

	switch command {
	case "add-event":
		return a.addEvent(ctx, args)
	case "resolve":
		return a.resolve(ctx, args)
	case "fetch":
		return a.fetch(ctx, args)
	case "enrich":
		return a.enrich(ctx)
	case "watch":
		return a.watch(ctx)
	case "backup":
		return a.backup(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// buildSearcher wires the catalog client, or returns nil for offline runs
// when no catalog URL is configured.
func buildSearcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) artist.Searcher {
	if cfg.Catalog.BaseURL == "" {
		logger.Info("no catalog configured, resolving offline")
		return nil
	}
	opts := catalog.Options{
		BaseURL:           cfg.Catalog.BaseURL,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		MaxRetries:        cfg.Catalog.MaxRetries,
	}
	if cfg.Catalog.TokenURL != "" {
		opts.Tokens = catalog.NewTokenSource(ctx, cfg.Catalog.TokenURL,
			cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)
	}
	return catalog.NewClient(opts, logger)
}

func (a *app) addEvent(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lineup add-event <name> <year> [timezone]")
	}
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", args[1], err)
	}
	ev := &event.Event{Name: args[0], Year: year}
	if len(args) > 2 {
		ev.Timezone = args[2]
	}
	if err := a.events.CreateEvent(ctx, ev); err != nil {
		return err
	}
	fmt.Println(ev.ID)
	return nil
}

func (a *app) resolve(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lineup resolve <event-id> <file> [timezone]")
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading schedule export: %w", err)
	}
	tz := ""
	if len(args) > 2 {
		tz = args[2]
	}
	result, err := a.pipeline.ResolveLineup(ctx, string(raw), args[0], tz)
	if result != nil {
		printResult(result)
	}
	return err
}

func (a *app) fetch(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: lineup fetch <event-id> <festival> <year>")
	}
	year, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", args[2], err)
	}

	client := aggregator.New(a.logger)
	if a.cfg.Aggregator.BaseURL != "" {
		client = aggregator.NewWithBaseURL(a.logger, a.cfg.Aggregator.BaseURL)
	}
	client.SetNameThreshold(a.cfg.Aggregator.NameThreshold)

	festival, err := client.FindFestival(ctx, args[1], year)
	if err != nil {
		return err
	}
	a.logger.Info("festival matched",
		slog.String("festival_id", festival.ID),
		slog.String("name", festival.Name))

	export, err := client.FetchExport(ctx, festival.ID)
	if err != nil {
		return err
	}
	result, err := a.pipeline.ResolveLineup(ctx, export, args[0], "")
	if result != nil {
		printResult(result)
	}
	return err
}

// enrich retries catalog matching for identities created without a link,
// draining them in batches until none remain or the catalog gives out.
func (a *app) enrich(ctx context.Context) error {
	if a.searcher == nil {
		return fmt.Errorf("enrich requires a configured catalog")
	}
	resolver := artist.NewResolver(a.artists, a.searcher, a.logger, artist.ResolverOptions{
		MatchThreshold: a.cfg.Resolver.MatchThreshold,
		SearchLimit:    a.cfg.Catalog.SearchLimit,
		CallDelay:      a.cfg.Catalog.CallDelay.Std(),
	})

	var enriched, attempted int
	for {
		batch, err := a.artists.ListMissingCatalogLink(ctx, 50)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		progress := false
		for _, identity := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			attempted++
			ok, err := resolver.Enrich(ctx, identity.ID)
			if err != nil {
				a.logger.Warn("enrichment failed",
					slog.String("artist_id", identity.ID),
					slog.String("error", err.Error()))
				continue
			}
			if ok {
				enriched++
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	fmt.Printf("enriched %d of %d attempted\n", enriched, attempted)
	return nil
}

func (a *app) watch(ctx context.Context) error {
	svc := watcher.NewService(a.cfg.Watch.InboxPath, func(ctx context.Context, eventID, path string) error {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading schedule export: %w", err)
		}
		result, err := a.pipeline.ResolveLineup(ctx, string(raw), eventID, "")
		if result != nil {
			printResult(result)
		}
		return err
	}, a.logger)
	if d := a.cfg.Watch.Debounce.Std(); d > 0 {
		svc.SetDebounce(d)
	}
	return svc.Start(ctx)
}

func (a *app) backup(ctx context.Context) error {
	if err := database.Optimize(ctx, a.db); err != nil {
		a.logger.Warn("optimize before backup failed", slog.String("error", err.Error()))
	}
	svc := backup.NewService(a.db, a.cfg.Backup.Dir, a.cfg.Backup.Retention, a.logger)
	snap, err := svc.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d bytes)\n", snap.Filename, snap.Size)
	return nil
}

func printResult(r *pipeline.Result) {
	fmt.Printf("days=%d stages=%d slots=%d groups=%d linked=%d skipped=%d failed=%d matched=%d lookups=%d\n",
		len(r.FestivalDays), len(r.Stages), r.Stats.Slots,
		r.Processed, r.Linked, r.Skipped, r.Failed,
		r.MatchedExternally, r.ExternalLookups)
	for _, name := range r.PendingEnrichment {
		fmt.Printf("pending enrichment: %s\n", name)
	}
}

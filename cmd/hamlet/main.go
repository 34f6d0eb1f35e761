// Command hamlet seeds a small settlement, runs it for a number of days and
// prints the drama the population produced.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/config"
	"github.com/talgya/hamlet/internal/drama"
	"github.com/talgya/hamlet/internal/engine"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/llm"
	"github.com/talgya/hamlet/internal/persistence"
	"github.com/talgya/hamlet/internal/simerr"
)

// metaStore is the resume bookkeeping both stores provide.
type metaStore interface {
	SaveMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}

type store interface {
	engine.Store
	metaStore
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("run failed", "kind", simerr.KindName(err), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rng := randomSource(cfg)
	sim := engine.NewSimulation(st, engine.Options{
		WorldID:   cfg.WorldID,
		StartYear: cfg.StartYear,
		Rng:       rng,
		Narrator:  narrator(cfg),
	})

	startTick, err := resumeTick(ctx, st)
	if err != nil {
		return err
	}
	if startTick == 0 {
		res, err := sim.Seed(ctx, engine.SeedOptions{
			SettlementName: cfg.Settlement,
			Population:     cfg.Population,
		}, 0)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		slog.Info("world seeded",
			"settlement_id", res.SettlementID,
			"agents", len(res.AgentIDs),
			"businesses", len(res.BusinessIDs),
			"couples", res.Couples,
		)
	} else {
		if err := sim.Load(ctx); err != nil {
			return err
		}
		slog.Info("world resumed", "tick", startTick, "sim_time", engine.SimTime(startTick, cfg.StartYear))
	}

	eng := engine.NewEngine(startTick)
	sim.Attach(eng)
	runErr := eng.RunFor(ctx, uint64(cfg.Days))

	// Record progress even when the run stopped early.
	if err := st.SaveMeta(context.Background(), "last_tick", strconv.FormatUint(eng.Tick, 10)); err != nil {
		return fmt.Errorf("save last tick: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	report, err := sim.ExcavateDrama(ctx)
	if err != nil {
		return err
	}
	if c, ok := rng.(*entropy.Client); ok && c.Fallbacks() > 0 {
		slog.Warn("random.org unavailable for part of the run", "fallback_draws", c.Fallbacks())
	}
	printReport(sim, eng.Tick, cfg.StartYear, report.Situations)
	return nil
}

func openStore(cfg config.Config) (store, error) {
	if cfg.InMemory {
		slog.Info("using in-memory store")
		return persistence.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database opened", "path", cfg.DBPath)
	return db, nil
}

func resumeTick(ctx context.Context, st metaStore) (uint64, error) {
	v, err := st.GetMeta(ctx, "last_tick")
	if err != nil {
		return 0, fmt.Errorf("read last tick: %w", err)
	}
	if v == "" {
		return 0, nil
	}
	t, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last tick %q: %w", v, err)
	}
	return t, nil
}

func randomSource(cfg config.Config) entropy.Source {
	if c := entropy.NewClient(cfg.RandomOrgKey); c != nil {
		slog.Info("random.org entropy enabled")
		return c
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	slog.Info("seeded entropy", "seed", seed)
	return entropy.NewSeeded(seed)
}

func narrator(cfg config.Config) chronicle.Narrator {
	client := llm.NewClient(cfg.AnthropicAPIKey, cfg.NarrationPerMinute)
	if !client.Enabled() {
		return nil
	}
	n, err := llm.NewNarrator(client, cfg.NarrationCacheSize)
	if err != nil {
		slog.Warn("narration disabled", "error", err)
		return nil
	}
	slog.Info("llm narration enabled", "per_minute", cfg.NarrationPerMinute)
	return n
}

func printReport(sim *engine.Simulation, tick uint64, startYear int, situations []drama.Situation) {
	st := sim.Stats
	fmt.Printf("\n%s\n", engine.SimTime(tick, startYear))
	fmt.Printf("population %d, deaths %d, married %d, employed %d, students %d, grieving %d\n",
		st.Population, st.Deaths, st.Married, st.Employed, st.Students, st.Grieving)
	fmt.Printf("total wealth %s\n\n", chronicle.Money(st.TotalWealth))

	if len(situations) == 0 {
		fmt.Println("no drama yet")
		return
	}
	fmt.Printf("%d dramatic situations:\n", len(situations))
	for _, s := range situations {
		fmt.Printf("  [%s] %s\n", s.Kind, s.Summary)
	}
}

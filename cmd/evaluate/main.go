// Package main provides the evening cycle entry point: evaluate exit
// conditions against closing prices, consult the AI judge on soft
// triggers, close positions and reconcile snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/engine"
	"paper-trading-lab/internal/judgment"
	"paper-trading-lab/internal/market"
	"paper-trading-lab/internal/orchestrator"
	"paper-trading-lab/internal/params"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage"
	"paper-trading-lab/internal/storage/clickhouse"
	"paper-trading-lab/internal/storage/memory"
	"paper-trading-lab/internal/storage/migrations"
	"paper-trading-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Market config YAML path (defaults to US market)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Run database migrations before the cycle")
	scores := flag.String("scores", "", "Comma-separated symbol=score pairs for held positions")
	regime := flag.String("regime", domain.RegimeNeutral, "Market regime: bull, neutral, bear, crisis")
	dateStr := flag.String("date", "", "Trading date YYYY-MM-DD (defaults to today UTC)")
	judgeURL := flag.String("judge-url", os.Getenv("JUDGE_URL"), "Exit-judgment service URL (empty disables the judge)")
	judgeTimeout := flag.Duration("judge-timeout", 30*time.Second, "Exit-judgment request timeout")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadMarketConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load market config")
	}
	scoreMap, err := parseScores(*scores)
	if err != nil {
		log.Fatal().Err(err).Msg("parse scores")
	}
	date, err := parseDate(*dateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("parse date")
	}
	if !validRegime(*regime) {
		log.Fatal().Str("regime", *regime).Msg("unknown regime")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	var judge judgment.Judge
	if *judgeURL != "" {
		judge = judgment.NewClient(judgment.ClientConfig{
			URL:     *judgeURL,
			Timeout: *judgeTimeout,
			APIKey:  os.Getenv("JUDGE_API_KEY"),
		}, log)
	}

	orch := buildOrchestrator(stores, cfg, judge, log)

	in := orchestrator.EveningInput{
		Regime: *regime,
		Scores: map[string]map[string]float64{},
		Date:   date,
	}
	for _, strategy := range cfg.Strategies {
		in.Scores[strategy] = scoreMap
	}

	results := orch.RunEvening(ctx, in)
	printResults(results)
}

func buildOrchestrator(s *stores, cfg market.Config, judge judgment.Judge, log zerolog.Logger) *orchestrator.Orchestrator {
	prices := quotes.NewCandleSource(s.candles)
	cost := &cfg.Cost

	return orchestrator.New(orchestrator.Options{
		Positions: s.positions,
		Snapshots: s.snapshots,
		Params:    params.NewStoreSource(s.parameters, log),
		Judge:     judge,
		Opener: engine.NewOpener(engine.OpenerOptions{
			Positions: s.positions,
			Trades:    s.trades,
			Quotes:    prices,
			Cost:      cost,
			Log:       log,
		}),
		Evaluator: engine.NewEvaluator(engine.EvaluatorOptions{
			Quotes: prices,
			Log:    log,
		}),
		Closer: engine.NewCloser(engine.CloserOptions{
			Positions: s.positions,
			Trades:    s.trades,
			Cost:      cost,
			Log:       log,
		}),
		Reconciler: engine.NewReconciler(engine.ReconcilerOptions{
			Positions:        s.positions,
			Trades:           s.trades,
			Snapshots:        s.snapshots,
			Quotes:           prices,
			Benchmark:        engine.NewCandleBenchmark(s.candles, cfg.BenchmarkSymbol),
			Cost:             cost,
			InitialCapital:   cfg.InitialCapital,
			RiskFreeDailyPct: cfg.RiskFreeDailyPct,
			Log:              log,
		}),
		Strategies: cfg.Strategies,
		Log:        log,
	})
}

// stores holds the storage implementations used by the cycle.
type stores struct {
	positions  storage.PositionStore
	trades     storage.TradeStore
	snapshots  storage.SnapshotStore
	parameters storage.ParameterStore
	candles    storage.CandleStore
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*stores, func(), error) {
	if useMemory {
		s := &stores{
			positions:  memory.NewPositionStore(),
			trades:     memory.NewTradeStore(),
			snapshots:  memory.NewSnapshotStore(),
			parameters: memory.NewParameterStore(),
			candles:    memory.NewCandleStore(),
		}
		return s, func() {}, nil
	}

	if postgresDSN == "" || clickhouseDSN == "" {
		return nil, nil, fmt.Errorf("postgres and clickhouse DSNs are required (use --use-memory for in-memory storage)")
	}

	pool, err := postgres.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := clickhouse.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgres(ctx, pool.Pool); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if err := migrations.RunClickhouse(ctx, conn.Conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	}

	s := &stores{
		positions:  postgres.NewPositionStore(pool),
		trades:     postgres.NewTradeStore(pool),
		snapshots:  postgres.NewSnapshotStore(pool),
		parameters: postgres.NewParameterStore(pool),
		candles:    clickhouse.NewCandleStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return s, cleanup, nil
}

func loadMarketConfig(path string) (market.Config, error) {
	if path == "" {
		return market.Default(), nil
	}
	return market.Load(path)
}

func parseScores(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed score pair %q", pair)
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("score for %s: %w", parts[0], err)
		}
		out[strings.ToUpper(strings.TrimSpace(parts[0]))] = v
	}
	return out, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func validRegime(r string) bool {
	switch r {
	case domain.RegimeBull, domain.RegimeNeutral, domain.RegimeBear, domain.RegimeCrisis:
		return true
	}
	return false
}

func printResults(results []*orchestrator.RunResult) {
	for _, r := range results {
		fmt.Printf("strategy %s:\n", r.Strategy)
		fmt.Printf("  closed: %v\n", r.Closed)
		if r.Snapshot != nil {
			fmt.Printf("  cash: %.2f  positions: %.2f  total: %.2f  cum pnl: %.2f%%\n",
				r.Snapshot.Cash, r.Snapshot.PositionsValue, r.Snapshot.TotalValue, r.Snapshot.CumulativePnLPct)
		}
		for _, e := range r.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
}

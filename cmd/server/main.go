// Package main provides the unified trading service:
// - Quote stream (continuous): WebSocket price feed with candle fallback
// - Morning cycle (scheduled): open positions for the day's watchlist
// - Evening cycle (scheduled): evaluate exits, judge, close, reconcile
// - HTTP: /health, /metrics, /status
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/engine"
	"paper-trading-lab/internal/judgment"
	"paper-trading-lab/internal/market"
	"paper-trading-lab/internal/observability"
	"paper-trading-lab/internal/orchestrator"
	"paper-trading-lab/internal/params"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage"
	"paper-trading-lab/internal/storage/clickhouse"
	"paper-trading-lab/internal/storage/memory"
	"paper-trading-lab/internal/storage/migrations"
	"paper-trading-lab/internal/storage/postgres"
)

// Server holds all components of the trading service.
type Server struct {
	cfg       market.Config
	regime    string
	watchlist []string

	orch   *orchestrator.Orchestrator
	stream *quotes.Stream
	log    zerolog.Logger

	// State
	mu             sync.Mutex
	started        time.Time
	lastMorningRun time.Time
	lastEveningRun time.Time
	morningRunning bool
	eveningRunning bool
	morningRuns    int
	eveningRuns    int
}

// stores holds the storage implementations.
type stores struct {
	positions  storage.PositionStore
	trades     storage.TradeStore
	snapshots  storage.SnapshotStore
	parameters storage.ParameterStore
	candles    storage.CandleStore
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Market config YAML path (defaults to US market)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Run database migrations on startup")
	quoteWS := flag.String("quote-ws", os.Getenv("QUOTE_WS_ENDPOINT"), "Quote stream WebSocket endpoint (empty uses stored candles only)")
	judgeURL := flag.String("judge-url", os.Getenv("JUDGE_URL"), "Exit-judgment service URL (empty disables the judge)")
	judgeTimeout := flag.Duration("judge-timeout", 30*time.Second, "Exit-judgment request timeout")
	watchlistFlag := flag.String("watchlist", os.Getenv("WATCHLIST"), "Comma-separated entry candidates for morning cycles")
	regime := flag.String("regime", domain.RegimeNeutral, "Market regime: bull, neutral, bear, crisis")
	morningCron := flag.String("morning-cron", "30 9 * * 1-5", "Cron schedule for the morning cycle")
	eveningCron := flag.String("evening-cron", "10 16 * * 1-5", "Cron schedule for the evening cycle")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/status")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := market.Default()
	if *configPath != "" {
		loaded, err := market.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load market config")
		}
		cfg = loaded
	}
	if !validRegime(*regime) {
		log.Fatal().Str("regime", *regime).Msg("unknown regime")
	}
	watchlist := splitSymbols(*watchlistFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	// Quote provider: the live stream when configured, with stored
	// candles as fallback for symbols the stream has not ticked yet.
	var stream *quotes.Stream
	prices := quotes.Provider(quotes.NewCandleSource(s.candles))
	if *quoteWS != "" {
		symbols := append([]string{}, watchlist...)
		if cfg.BenchmarkSymbol != "" {
			symbols = append(symbols, cfg.BenchmarkSymbol)
		}
		stream, err = quotes.NewStream(ctx, *quoteWS, symbols, nil, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect quote stream")
		}
		prices = quotes.NewChain(stream, quotes.NewCandleSource(s.candles))
	}

	var judge judgment.Judge
	if *judgeURL != "" {
		judge = judgment.NewClient(judgment.ClientConfig{
			URL:     *judgeURL,
			Timeout: *judgeTimeout,
			APIKey:  os.Getenv("JUDGE_API_KEY"),
		}, log)
	}

	server := &Server{
		cfg:       cfg,
		regime:    *regime,
		watchlist: watchlist,
		orch:      buildOrchestrator(s, cfg, prices, judge, log),
		stream:    stream,
		log:       log,
		started:   time.Now(),
	}

	// Schedule cycles
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(*morningCron, func() { server.runMorning(ctx) }); err != nil {
		log.Fatal().Err(err).Str("cron", *morningCron).Msg("invalid morning schedule")
	}
	if _, err := scheduler.AddFunc(*eveningCron, func() { server.runEvening(ctx) }); err != nil {
		log.Fatal().Err(err).Str("cron", *eveningCron).Msg("invalid evening schedule")
	}
	scheduler.Start()

	// HTTP server
	httpServer := &http.Server{Addr: *httpAddr, Handler: server.routes()}
	go func() {
		log.Info().Str("addr", *httpAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}()

	log.Info().
		Str("market", cfg.Market).
		Strs("strategies", cfg.Strategies).
		Strs("watchlist", watchlist).
		Msg("server started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	cronCtx := scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("cycle still running at shutdown deadline")
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Error().Err(err).Msg("close quote stream")
		}
	}
	log.Info().Msg("shutdown complete")
}

func buildOrchestrator(s *stores, cfg market.Config, prices quotes.Provider, judge judgment.Judge, log zerolog.Logger) *orchestrator.Orchestrator {
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

// runMorning executes one morning cycle.
func (s *Server) runMorning(ctx context.Context) {
	s.mu.Lock()
	if s.morningRunning {
		s.mu.Unlock()
		s.log.Warn().Msg("morning cycle already running, skipping")
		return
	}
	s.morningRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.morningRunning = false
		s.lastMorningRun = time.Now()
		s.morningRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	in := orchestrator.MorningInput{
		Regime: s.regime,
		Picks:  map[string][]string{},
		Date:   time.Now().UTC(),
	}
	for _, strategy := range s.cfg.Strategies {
		in.Picks[strategy] = s.watchlist
	}

	results := s.orch.RunMorning(ctx, in)
	failed := recordResults("morning", results)
	observability.RecordCycle("morning", time.Since(start), failed)
}

// runEvening executes one evening cycle.
func (s *Server) runEvening(ctx context.Context) {
	s.mu.Lock()
	if s.eveningRunning {
		s.mu.Unlock()
		s.log.Warn().Msg("evening cycle already running, skipping")
		return
	}
	s.eveningRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.eveningRunning = false
		s.lastEveningRun = time.Now()
		s.eveningRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	results := s.orch.RunEvening(ctx, orchestrator.EveningInput{
		Regime: s.regime,
		Date:   time.Now().UTC(),
	})
	failed := recordResults("evening", results)
	observability.RecordCycle("evening", time.Since(start), failed)
}

// recordResults feeds cycle outcomes into the metrics and reports
// whether any strategy surfaced errors.
func recordResults(cycle string, results []*orchestrator.RunResult) bool {
	failed := false
	for _, r := range results {
		observability.RecordCycleErrors(cycle, r.Strategy, len(r.Errors))
		if len(r.Errors) > 0 {
			failed = true
		}
		for range r.Opened {
			observability.RecordPositionOpened(r.Strategy)
		}
		for _, tr := range r.Trades {
			observability.RecordPositionClosed(r.Strategy, tr.ExitReason, tr.Win())
		}
		for range r.Held {
			observability.RecordJudgeOverride(r.Strategy)
		}
	}
	return failed
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	Market         string    `json:"market"`
	Strategies     []string  `json:"strategies"`
	Watchlist      []string  `json:"watchlist"`
	LastMorningRun time.Time `json:"last_morning_run,omitempty"`
	LastEveningRun time.Time `json:"last_evening_run,omitempty"`
	MorningRuns    int       `json:"morning_runs"`
	EveningRuns    int       `json:"evening_runs"`
	MorningRunning bool      `json:"morning_running"`
	EveningRunning bool      `json:"evening_running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).String(),
		Market:         s.cfg.Market,
		Strategies:     s.cfg.Strategies,
		Watchlist:      s.watchlist,
		LastMorningRun: s.lastMorningRun,
		LastEveningRun: s.lastEveningRun,
		MorningRuns:    s.morningRuns,
		EveningRuns:    s.eveningRuns,
		MorningRunning: s.morningRunning,
		EveningRunning: s.eveningRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
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

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(strings.ToUpper(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validRegime(r string) bool {
	switch r {
	case domain.RegimeBull, domain.RegimeNeutral, domain.RegimeBear, domain.RegimeCrisis:
		return true
	}
	return false
}

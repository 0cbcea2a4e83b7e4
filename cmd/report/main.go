// Package main generates the daily portfolio report: a Markdown summary
// per strategy plus a CSV export of each trade ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"paper-trading-lab/internal/market"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/reporting"
	"paper-trading-lab/internal/storage"
	"paper-trading-lab/internal/storage/clickhouse"
	"paper-trading-lab/internal/storage/memory"
	"paper-trading-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Market config YAML path (defaults to US market)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	positions, trades, snapshots, prices, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	gen := reporting.NewGenerator(positions, trades, snapshots, prices)
	report, err := gen.Generate(ctx, cfg.Strategies)
	if err != nil {
		log.Fatal().Err(err).Msg("generate report")
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("create output directory")
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		log.Fatal().Err(err).Msg("write markdown report")
	}
	fmt.Printf("wrote %s\n", mdPath)

	for _, section := range report.Strategies {
		csvPath := filepath.Join(*outputDir, fmt.Sprintf("trades_%s.csv", section.Strategy))
		csv := reporting.RenderCSV(section.Strategy, section.RecentTrades)
		if err := os.WriteFile(csvPath, []byte(csv), 0644); err != nil {
			log.Fatal().Err(err).Msg("write trade csv")
		}
		fmt.Printf("wrote %s\n", csvPath)
	}
}

func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.PositionStore, storage.TradeStore, storage.SnapshotStore, quotes.Provider, func(), error) {
	if useMemory {
		return memory.NewPositionStore(), memory.NewTradeStore(), memory.NewSnapshotStore(), nil, func() {}, nil
	}

	if postgresDSN == "" || clickhouseDSN == "" {
		return nil, nil, nil, nil, nil, fmt.Errorf("postgres and clickhouse DSNs are required (use --use-memory for in-memory storage)")
	}

	pool, err := postgres.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := clickhouse.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return postgres.NewPositionStore(pool),
		postgres.NewTradeStore(pool),
		postgres.NewSnapshotStore(pool),
		quotes.NewCandleSource(clickhouse.NewCandleStore(conn)),
		cleanup, nil
}

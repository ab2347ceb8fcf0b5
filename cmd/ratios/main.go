package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mauv0809/stock-ratios/internal/batch"
	"github.com/mauv0809/stock-ratios/internal/config"
	"github.com/mauv0809/stock-ratios/internal/db"
	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/logging"
	"github.com/mauv0809/stock-ratios/internal/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "ratios",
		Usage: "compute financial ratios for a list of tickers and write them to CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tickers", Aliases: []string{"t"}, Usage: "comma-separated tickers (prompted when omitted)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "CSV output path (default RATIOS_OUTPUT_PATH or ~/Documents/stock-ratios/financial_ratios.csv)"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "number of concurrent fetches (default RATIOS_WORKERS or 5)"},
			&cli.StringFlag{Name: "provider", Usage: "market data provider: yahoo or eodhd (default PROVIDER or yahoo)"},
			&cli.BoolFlag{Name: "store", Usage: "also store the run in the database at DATABASE_URL"},
		},
		Action: run,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("ratios failed")
	}
}

func run(c *cli.Context) error {
	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if c.IsSet("provider") {
		cfg.Provider = c.String("provider")
	}
	if c.IsSet("output") {
		cfg.OutputPath = c.String("output")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	input := c.String("tickers")
	if !c.IsSet("tickers") {
		input, err = prompt(os.Stdin, c.App.Writer)
		if err != nil {
			return err
		}
	}
	tickers := models.ParseTickers(input, false)
	if len(tickers) == 0 {
		return errors.New("no tickers given")
	}

	source, err := ingest.NewSource(cfg, log.Logger.With().Str("component", "ingest").Logger())
	if err != nil {
		return err
	}

	ctx := c.Context
	res := batch.NewRunner(source, cfg.Workers, log.Logger.With().Str("component", "batch").Logger()).Run(ctx, tickers)

	if err := batch.WriteCSVFile(cfg.OutputPath, res.Rows()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Ratios saved to %s\n", cfg.OutputPath)
	if failed := res.Failed(); len(failed) > 0 {
		fmt.Fprintf(c.App.Writer, "Failed tickers: %s\n", batch.FailureSummary(failed))
	}

	if c.Bool("store") {
		return store(ctx, cfg, source.Name(), res)
	}
	return nil
}

func prompt(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter stock tickers separated by commas: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading tickers: %w", err)
	}
	return line, nil
}

func store(ctx context.Context, cfg *config.Config, provider string, res *batch.Result) error {
	if cfg.DatabaseURL == "" {
		return errors.New("--store needs DATABASE_URL")
	}
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := db.NewRepository(pool).SaveRun(ctx, db.Run{
		Summary:  res.Summary(),
		Provider: provider,
		Elapsed:  res.Elapsed,
		Rows:     res.Rows(),
		Errors:   res.Errors(),
	})
	if err != nil {
		return err
	}
	log.Info().Str("run_id", res.RunID).Int("stored", n).Msg("Run stored")
	return nil
}

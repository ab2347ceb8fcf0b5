package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mauv0809/stock-ratios/internal/models"
)

// Repository stores batch runs and their ratio snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Run is everything persisted for one batch run.
type Run struct {
	Summary  models.RunSummary
	Provider string
	Elapsed  time.Duration
	Rows     []models.BatchRow
	Errors   map[string]error
}

// SaveRun inserts the run, its successful rows and its failures in one transaction.
// Returns the number of snapshot rows written.
func (r *Repository) SaveRun(ctx context.Context, run Run) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO ratio_runs (run_id, provider, started_at, elapsed_ms, succeeded, failed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.Summary.RunID, run.Provider, run.Summary.StartedAt, run.Elapsed.Milliseconds(),
		run.Summary.Succeeded, len(run.Summary.Failed))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	batch := &pgx.Batch{}
	queued := 0
	for _, row := range run.Rows {
		if row.Failed() {
			continue
		}
		s := row.Snapshot
		batch.Queue(`
			INSERT INTO ratio_snapshots (
				run_id, ticker, name, currency,
				price, market_cap, enterprise_value, ebitda, pe_ratio, ps_ratio,
				debt_to_equity, current_ratio, quick_ratio,
				return_on_equity, interest_coverage, investing_cash_flow
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7, $8, $9, $10,
				$11, $12, $13,
				$14, $15, $16
			)
			ON CONFLICT (run_id, ticker) DO UPDATE SET
				name = EXCLUDED.name,
				currency = EXCLUDED.currency,
				price = EXCLUDED.price,
				market_cap = EXCLUDED.market_cap,
				enterprise_value = EXCLUDED.enterprise_value,
				ebitda = EXCLUDED.ebitda,
				pe_ratio = EXCLUDED.pe_ratio,
				ps_ratio = EXCLUDED.ps_ratio,
				debt_to_equity = EXCLUDED.debt_to_equity,
				current_ratio = EXCLUDED.current_ratio,
				quick_ratio = EXCLUDED.quick_ratio,
				return_on_equity = EXCLUDED.return_on_equity,
				interest_coverage = EXCLUDED.interest_coverage,
				investing_cash_flow = EXCLUDED.investing_cash_flow
		`,
			run.Summary.RunID, row.Ticker, s.Name, s.Currency,
			decimalPtr(s.Price), decimalPtr(s.MarketCap), decimalPtr(s.EnterpriseValue),
			decimalPtr(s.EBITDA), decimalPtr(s.PERatio), decimalPtr(s.PSRatio),
			ratioPtr(row.Ratios, models.DebtToEquity), ratioPtr(row.Ratios, models.CurrentRatio),
			ratioPtr(row.Ratios, models.QuickRatio), ratioPtr(row.Ratios, models.ReturnOnEquity),
			ratioPtr(row.Ratios, models.InterestCoverage), ratioPtr(row.Ratios, models.InvestingCashFlow),
		)
		queued++
	}
	for ticker, rowErr := range run.Errors {
		batch.Queue(`
			INSERT INTO ratio_failures (run_id, ticker, error)
			VALUES ($1, $2, $3)
			ON CONFLICT (run_id, ticker) DO UPDATE SET error = EXCLUDED.error
		`, run.Summary.RunID, ticker, rowErr.Error())
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("saving run rows: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return queued, nil
}

// LatestSnapshots returns the most recent snapshot for every ticker, ordered by ticker.
func (r *Repository) LatestSnapshots(ctx context.Context) ([]models.StoredSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (ticker)
			id, run_id::text, ticker, name, currency,
			price, market_cap, enterprise_value, ebitda, pe_ratio, ps_ratio,
			debt_to_equity, current_ratio, quick_ratio,
			return_on_equity, interest_coverage, investing_cash_flow,
			created_at
		FROM ratio_snapshots
		ORDER BY ticker, created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.StoredSnapshot
	for rows.Next() {
		var s models.StoredSnapshot
		var price, mcap, ev, ebitda, pe, ps decimal.NullDecimal
		var de, cur, quick, roe, cover, investing *float64
		if err := rows.Scan(
			&s.ID, &s.RunID, &s.Ticker, &s.Snapshot.Name, &s.Snapshot.Currency,
			&price, &mcap, &ev, &ebitda, &pe, &ps,
			&de, &cur, &quick, &roe, &cover, &investing,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		s.Snapshot.Ticker = s.Ticker
		s.Snapshot.Price = nullDecimal(price)
		s.Snapshot.MarketCap = nullDecimal(mcap)
		s.Snapshot.EnterpriseValue = nullDecimal(ev)
		s.Snapshot.EBITDA = nullDecimal(ebitda)
		s.Snapshot.PERatio = nullDecimal(pe)
		s.Snapshot.PSRatio = nullDecimal(ps)
		s.Ratios = map[string]*float64{
			string(models.DebtToEquity):      de,
			string(models.CurrentRatio):      cur,
			string(models.QuickRatio):        quick,
			string(models.ReturnOnEquity):    roe,
			string(models.InterestCoverage):  cover,
			string(models.InvestingCashFlow): investing,
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Status is a summary of what has been stored.
type Status struct {
	Runs      int        `json:"runs"`
	Snapshots int        `json:"snapshots"`
	Failures  int        `json:"failures"`
	LastRun   *time.Time `json:"last_run"`
}

// GetStatus returns stored counts and the time of the last run.
func (r *Repository) GetStatus(ctx context.Context) (Status, error) {
	var s Status
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ratio_runs),
			(SELECT COUNT(*) FROM ratio_snapshots),
			(SELECT COUNT(*) FROM ratio_failures),
			(SELECT MAX(started_at) FROM ratio_runs)
	`).Scan(&s.Runs, &s.Snapshots, &s.Failures, &s.LastRun)
	if err != nil {
		return Status{}, fmt.Errorf("querying status: %w", err)
	}
	return s, nil
}

// decimalPtr converts a *decimal.Decimal to interface{} for database insertion.
func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

// ratioPtr returns the ratio or nil when the ratio set has no entry for it.
func ratioPtr(r models.RatioResult, name models.RatioName) *float64 {
	v, ok := r[name]
	if !ok {
		return nil
	}
	return &v
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

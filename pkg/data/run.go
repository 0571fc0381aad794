package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/walletscore/pkg/report"
	"github.com/mchmarny/walletscore/pkg/score"
)

const (
	// DefaultListLimit caps list queries when no limit is given.
	DefaultListLimit = 20

	selectRunSQL = `SELECT id, input, created_at, records, loaded, skipped, wallets,
		mean_score, median_score, std_score, min_score, max_score, weights
		FROM run`

	insertRunSQL = `INSERT INTO run (id, input, created_at, records, loaded, skipped, wallets,
		mean_score, median_score, std_score, min_score, max_score, weights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertScoreSQL = `INSERT INTO wallet_score (run_id, address, score, category,
		volume, repayment, diversity, consistency, risk, maturity,
		transactions, liquidations, assets, volume_usd, net_balance_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectScoresSQL = `SELECT address, score, category,
		volume, repayment, diversity, consistency, risk, maturity,
		transactions, liquidations, assets, volume_usd, net_balance_usd
		FROM wallet_score
		WHERE run_id = ?
		ORDER BY score DESC, address`
)

// Run is a persisted scoring run.
type Run struct {
	ID        string         `json:"id" yaml:"id"`
	Input     string         `json:"input" yaml:"input"`
	CreatedAt time.Time      `json:"created_at" yaml:"createdAt"`
	Records   int            `json:"records" yaml:"records"`
	Loaded    int            `json:"loaded" yaml:"loaded"`
	Skipped   int            `json:"skipped" yaml:"skipped"`
	Summary   report.Summary `json:"summary" yaml:"summary"`
	Weights   score.Weights  `json:"weights" yaml:"weights"`
}

// NewRun creates a run with a fresh ID and the current time.
func NewRun(input string, records, loaded, skipped int, s report.Summary, w score.Weights) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Input:     input,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Records:   records,
		Loaded:    loaded,
		Skipped:   skipped,
		Summary:   s,
		Weights:   w,
	}
}

// SaveRun stores the run and its wallet scores in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run, scores []*score.WalletScore) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	if run == nil || run.ID == "" {
		return errors.New("run with ID required")
	}

	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	sum := run.Summary
	if _, err := tx.ExecContext(ctx, s.rebind(insertRunSQL),
		run.ID, run.Input, run.CreatedAt.Unix(), run.Records, run.Loaded, run.Skipped,
		sum.TotalWallets, sum.Average, sum.Median, sum.StdDev, sum.Min, sum.Max,
		string(weights)); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertScoreSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare score statement: %w", err)
	}
	defer stmt.Close()

	total := len(scores)
	logEvery := max(total/10, 1)

	for i, ws := range scores {
		if ws == nil {
			continue
		}
		c := ws.Components
		if _, err := stmt.ExecContext(ctx,
			run.ID, ws.Address, ws.Score, string(ws.Category),
			c.Volume, c.Repayment, c.Diversity, c.Consistency, c.Risk, c.Maturity,
			ws.Stats.Transactions, ws.Stats.Liquidations, ws.Stats.Assets, ws.Stats.VolumeUSD,
			ws.Stats.NetBalance,
		); err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", ws.Address, err)
		}
		if (i+1)%logEvery == 0 {
			slog.Debug("saving scores", "saved", i+1, "total", total)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	slog.Debug("run saved", "id", run.ID, "wallets", total)
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectRunSQL+" ORDER BY created_at DESC, id LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}

// GetRun returns a single run or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	row := s.db.QueryRowContext(ctx, s.rebind(selectRunSQL+" WHERE id = ?"), id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// GetRunScores returns the stored scores of a run, highest first. A limit
// of 0 returns all of them.
func (s *Store) GetRunScores(ctx context.Context, id string, limit int) ([]*score.WalletScore, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	q := selectScoresSQL
	args := []any{id}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores for run %s: %w", id, err)
	}
	defer rows.Close()

	list := make([]*score.WalletScore, 0)
	for rows.Next() {
		var (
			ws       score.WalletScore
			category string
			c        = &ws.Components
		)
		if err := rows.Scan(&ws.Address, &ws.Score, &category,
			&c.Volume, &c.Repayment, &c.Diversity, &c.Consistency, &c.Risk, &c.Maturity,
			&ws.Stats.Transactions, &ws.Stats.Liquidations, &ws.Stats.Assets, &ws.Stats.VolumeUSD,
			&ws.Stats.NetBalance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		ws.Category = score.Category(category)
		list = append(list, &ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		created int64
		weights string
	)
	if err := row.Scan(&r.ID, &r.Input, &created, &r.Records, &r.Loaded, &r.Skipped,
		&r.Summary.TotalWallets, &r.Summary.Average, &r.Summary.Median, &r.Summary.StdDev,
		&r.Summary.Min, &r.Summary.Max, &weights); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
		return nil, fmt.Errorf("failed to parse weights of run %s: %w", r.ID, err)
	}
	return &r, nil
}

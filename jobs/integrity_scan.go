package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/parishledger/parishledger/internal/jobs"
	"github.com/parishledger/parishledger/internal/ledger/balance"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TrialBalancer is the slice of the balance engine the scan depends on.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, organisationID, branchID uuid.UUID, fiscalYear, fiscalPeriod int) (balance.TrialBalance, error)
}

// IntegrityScanJob recomputes every tenant's trial balance and reports
// imbalances. It repairs nothing; a diverging ledger is an operational alert,
// not something a job should mutate.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Engine  TrialBalancer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, engine TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Pool:    pool,
		Engine:  engine,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan logic.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	now := j.now()
	if payload.FiscalYear == 0 {
		payload.FiscalYear = now.Year()
	}
	if payload.FiscalPeriod == 0 {
		payload.FiscalPeriod = int(now.Month())
	}

	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	var resultErr error
	defer func() {
		tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int("fiscal_year", payload.FiscalYear),
		slog.Int("fiscal_period", payload.FiscalPeriod),
	)
	logger.Info("starting integrity scan")

	scopes, err := j.scopes(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("resolve scopes", slog.Any("error", err))
		return resultErr
	}

	results := make([]scanResult, len(scopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, scope := range scopes {
		g.Go(func() error {
			tb, err := j.Engine.TrialBalance(gctx, scope.organisationID, scope.branchID, payload.FiscalYear, payload.FiscalPeriod)
			results[i] = scanResult{tb: tb, err: err}
			// One failing tenant must not abort the rest of the scan.
			return nil
		})
	}
	_ = g.Wait()

	imbalances := 0
	for i, scope := range scopes {
		res := results[i]
		if res.err != nil {
			logger.Error("trial balance failed",
				slog.String("organisation_id", scope.organisationID.String()),
				slog.String("branch_id", scope.branchID.String()),
				slog.Any("error", res.err))
			resultErr = res.err
			continue
		}
		if res.tb.IsBalanced {
			continue
		}
		imbalances++
		logger.Warn("unbalanced ledger detected",
			slog.String("organisation_id", scope.organisationID.String()),
			slog.String("branch_id", scope.branchID.String()),
			slog.Float64("total_debits", res.tb.TotalDebits),
			slog.Float64("total_credits", res.tb.TotalCredits),
			slog.Float64("delta", res.tb.TotalDebits-res.tb.TotalCredits),
		)
		j.metrics().AddImbalances(scope.organisationID.String(), scope.branchID.String(), 1)
	}

	logger.Info("completed integrity scan",
		slog.Int("scopes", len(scopes)),
		slog.Int("imbalances", imbalances),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

const scanConcurrency = 4

type scanScope struct {
	organisationID uuid.UUID
	branchID       uuid.UUID
}

type scanResult struct {
	tb  balance.TrialBalance
	err error
}

func (j *IntegrityScanJob) scopes(ctx context.Context, payload IntegrityScanPayload) ([]scanScope, error) {
	if j.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT DISTINCT organisation_id, branch_id
		FROM journal_entries
		WHERE status = 'POSTED'
		ORDER BY organisation_id, branch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(payload.Organisation))
	for _, id := range payload.Organisation {
		wanted[id] = true
	}

	var scopes []scanScope
	for rows.Next() {
		var scope scanScope
		if err := rows.Scan(&scope.organisationID, &scope.branchID); err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !wanted[scope.organisationID.String()] {
			continue
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

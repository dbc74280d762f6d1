package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parishledger/parishledger/internal/ledger/balance"
)

// TrialBalancer is the slice of the balance engine the validator depends on.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, organisationID, branchID uuid.UUID, fiscalYear, fiscalPeriod int) (balance.TrialBalance, error)
}

// Scope identifies one tenant ledger to validate.
type Scope struct {
	OrganisationID uuid.UUID
	BranchID       uuid.UUID
}

// ScopeSource lists the tenant scopes with posted journal activity.
type ScopeSource interface {
	Scopes(ctx context.Context) ([]Scope, error)
}

// PoolScopeSource resolves scopes from the journal store.
type PoolScopeSource struct {
	pool *pgxpool.Pool
}

// NewPoolScopeSource wraps a pgx pool as a ScopeSource.
func NewPoolScopeSource(pool *pgxpool.Pool) *PoolScopeSource {
	return &PoolScopeSource{pool: pool}
}

// Scopes lists every organisation/branch pair with posted entries.
func (s *PoolScopeSource) Scopes(ctx context.Context) ([]Scope, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT organisation_id, branch_id
		FROM journal_entries
		WHERE status = 'POSTED'
		ORDER BY organisation_id, branch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var scope Scope
		if err := rows.Scan(&scope.OrganisationID, &scope.BranchID); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

// LedgerOpsCLI exposes operational ledger checks for the command line.
type LedgerOpsCLI struct {
	scopes ScopeSource
	engine TrialBalancer
}

// NewLedgerOpsCLI constructs the helper.
func NewLedgerOpsCLI(scopes ScopeSource, engine TrialBalancer) *LedgerOpsCLI {
	return &LedgerOpsCLI{scopes: scopes, engine: engine}
}

// ValidateOptions defines inputs for the validate command.
type ValidateOptions struct {
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// ValidateSummary describes the JSON response for ledger validate.
type ValidateSummary struct {
	OK           bool          `json:"ok"`
	FiscalYear   int           `json:"fiscal_year"`
	FiscalPeriod int           `json:"fiscal_period"`
	Scopes       []ScopeResult `json:"scopes"`
}

// ScopeResult reports one tenant's trial balance outcome.
type ScopeResult struct {
	OrganisationID string  `json:"organisation_id"`
	BranchID       string  `json:"branch_id"`
	TotalDebits    float64 `json:"total_debits"`
	TotalCredits   float64 `json:"total_credits"`
	Delta          float64 `json:"delta"`
	IsBalanced     bool    `json:"is_balanced"`
}

// ValidateCommand recomputes each tenant's trial balance and prints the
// outcome. Exit code 10 signals at least one unbalanced ledger.
func (c *LedgerOpsCLI) ValidateCommand(ctx context.Context, opts ValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	now := time.Now().UTC()
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	year := fs.Int("year", now.Year(), "fiscal year")
	period := fs.Int("period", int(now.Month()), "fiscal period (1-12)")
	orgFilter := fs.String("org", "", "limit to one organisation id")
	jsonOutput := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(opts.Args); err != nil {
		return 1
	}
	if *period < 1 || *period > 12 {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger validate: invalid period %d (expected 1-12)\n", *period)
		return 1
	}

	scopes, err := c.scopes.Scopes(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger validate: %v\n", err)
		return 1
	}

	summary := ValidateSummary{OK: true, FiscalYear: *year, FiscalPeriod: *period}
	for _, scope := range scopes {
		if *orgFilter != "" && scope.OrganisationID.String() != *orgFilter {
			continue
		}
		tb, err := c.engine.TrialBalance(ctx, scope.OrganisationID, scope.BranchID, *year, *period)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger validate: %s/%s: %v\n", scope.OrganisationID, scope.BranchID, err)
			return 1
		}
		summary.Scopes = append(summary.Scopes, ScopeResult{
			OrganisationID: scope.OrganisationID.String(),
			BranchID:       scope.BranchID.String(),
			TotalDebits:    tb.TotalDebits,
			TotalCredits:   tb.TotalCredits,
			Delta:          tb.TotalDebits - tb.TotalCredits,
			IsBalanced:     tb.IsBalanced,
		})
		if !tb.IsBalanced {
			summary.OK = false
		}
	}

	if *jsonOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func renderValidateHuman(out io.Writer, summary ValidateSummary) {
	_, _ = fmt.Fprintf(out, "Ledger validation for %d-%02d\n", summary.FiscalYear, summary.FiscalPeriod)
	if len(summary.Scopes) == 0 {
		_, _ = fmt.Fprintln(out, "No posted activity found.")
		return
	}
	for _, scope := range summary.Scopes {
		state := "balanced"
		if !scope.IsBalanced {
			state = fmt.Sprintf("UNBALANCED (delta %.2f)", scope.Delta)
		}
		_, _ = fmt.Fprintf(out, " - %s/%s: debits %.2f credits %.2f: %s\n",
			scope.OrganisationID, scope.BranchID, scope.TotalDebits, scope.TotalCredits, state)
	}
	if summary.OK {
		_, _ = fmt.Fprintln(out, "All ledgers balance.")
	}
}

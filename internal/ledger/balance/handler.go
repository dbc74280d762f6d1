package balance

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/ledger/accounts"
	"github.com/parishledger/parishledger/internal/platform/httpx"
	"github.com/parishledger/parishledger/internal/shared"
)

// Handler exposes derived balance reads over JSON.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers balance engine routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{id}", h.accountBalance)
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/trial-balance/export", h.exportTrialBalance)
}

type accountBalanceResponse struct {
	AccountID   uuid.UUID `json:"account_id"`
	DebitTotal  float64   `json:"debit_total"`
	CreditTotal float64   `json:"credit_total"`
	Balance     float64   `json:"balance"`
	AsOf        *string   `json:"as_of,omitempty"`
}

type trialBalanceRowResponse struct {
	AccountID     uuid.UUID            `json:"account_id"`
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          accounts.AccountType `json:"account_type"`
	DebitBalance  float64              `json:"debit_balance"`
	CreditBalance float64              `json:"credit_balance"`
}

type trialBalanceResponse struct {
	FiscalYear   int                       `json:"fiscal_year"`
	FiscalPeriod int                       `json:"fiscal_period"`
	Accounts     []trialBalanceRowResponse `json:"accounts"`
	TotalDebits  float64                   `json:"total_debits"`
	TotalCredits float64                   `json:"total_credits"`
	IsBalanced   bool                      `json:"is_balanced"`
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	var asOf *time.Time
	var asOfEcho *string
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid as_of date", "as_of must be YYYY-MM-DD")
			return
		}
		// Inclusive: the whole as_of day counts.
		end := parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
		asOf = &end
		asOfEcho = &raw
	}
	bal, err := h.engine.AccountBalance(r.Context(), actor.OrganisationID, id, asOf)
	if err != nil {
		h.respondError(w, "derive account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accountBalanceResponse{
		AccountID:   bal.AccountID,
		DebitTotal:  bal.DebitTotal,
		CreditTotal: bal.CreditTotal,
		Balance:     bal.Balance,
		AsOf:        asOfEcho,
	})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tb, ok := h.loadTrialBalance(w, r)
	if !ok {
		return
	}
	resp := trialBalanceResponse{
		FiscalYear:   tb.FiscalYear,
		FiscalPeriod: tb.FiscalPeriod,
		Accounts:     make([]trialBalanceRowResponse, 0, len(tb.Accounts)),
		TotalDebits:  tb.TotalDebits,
		TotalCredits: tb.TotalCredits,
		IsBalanced:   tb.IsBalanced,
	}
	for _, row := range tb.Accounts {
		resp.Accounts = append(resp.Accounts, trialBalanceRowResponse{
			AccountID:     row.AccountID,
			Code:          row.Code,
			Name:          row.Name,
			Type:          row.Type,
			DebitBalance:  row.DebitBalance,
			CreditBalance: row.CreditBalance,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) exportTrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, ok := h.loadTrialBalance(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=trial-balance-%d-%02d.csv", tb.FiscalYear, tb.FiscalPeriod))
	if err := WriteCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) loadTrialBalance(w http.ResponseWriter, r *http.Request) (TrialBalance, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return TrialBalance{}, false
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid fiscal year", "year must be an integer")
		return TrialBalance{}, false
	}
	period, err := strconv.Atoi(r.URL.Query().Get("period"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid fiscal period", "period must be an integer")
		return TrialBalance{}, false
	}
	tb, err := h.engine.TrialBalance(r.Context(), actor.OrganisationID, actor.BranchID, year, period)
	if err != nil {
		h.respondError(w, "build trial balance", err)
		return TrialBalance{}, false
	}
	return tb, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !shared.IsValidation(err) && !shared.IsNotFound(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

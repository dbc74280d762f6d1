package bank

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/platform/httpx"
	"github.com/parishledger/parishledger/internal/shared"
)

// Handler exposes bank accounts and their reconciliation state over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers bank account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Put("/{id}/balance", h.updateBalance)
	r.Delete("/{id}", h.deactivate)
}

type createBankAccountRequest struct {
	GLAccountID   uuid.UUID   `json:"gl_account_id"`
	AccountName   string      `json:"account_name"`
	BankName      string      `json:"bank_name"`
	AccountNumber string      `json:"account_number"`
	Type          AccountType `json:"account_type"`
	Currency      string      `json:"currency"`
}

type updateBankAccountRequest struct {
	AccountName   *string      `json:"account_name"`
	BankName      *string      `json:"bank_name"`
	AccountNumber *string      `json:"account_number"`
	Type          *AccountType `json:"account_type"`
}

type updateBalanceRequest struct {
	BankBalance float64 `json:"bank_balance"`
}

type bankAccountResponse struct {
	ID             uuid.UUID   `json:"id"`
	GLAccountID    uuid.UUID   `json:"gl_account_id"`
	AccountName    string      `json:"account_name"`
	BankName       string      `json:"bank_name"`
	AccountNumber  string      `json:"account_number"`
	Type           AccountType `json:"account_type"`
	Currency       string      `json:"currency"`
	BankBalance    float64     `json:"bank_balance"`
	Status         Status      `json:"status"`
	LastReconciled *time.Time  `json:"last_reconciled,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type reconciliationResponse struct {
	bankAccountResponse
	BookBalance  float64 `json:"book_balance"`
	Difference   float64 `json:"difference"`
	IsReconciled bool    `json:"is_reconciled"`
}

func toBankAccountResponse(b BankAccount) bankAccountResponse {
	return bankAccountResponse{
		ID:             b.ID,
		GLAccountID:    b.GLAccountID,
		AccountName:    b.AccountName,
		BankName:       b.BankName,
		AccountNumber:  b.AccountNumber,
		Type:           b.Type,
		Currency:       b.Currency,
		BankBalance:    b.BankBalance,
		Status:         b.Status,
		LastReconciled: b.LastReconciled,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toReconciliationResponse(rec Reconciliation) reconciliationResponse {
	return reconciliationResponse{
		bankAccountResponse: toBankAccountResponse(rec.BankAccount),
		BookBalance:         rec.BookBalance,
		Difference:          rec.Difference,
		IsReconciled:        rec.IsReconciled,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createBankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	account, err := h.service.Create(r.Context(), CreateInput{
		GLAccountID:   req.GLAccountID,
		AccountName:   req.AccountName,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		Type:          req.Type,
		Currency:      req.Currency,
	}, actor)
	if err != nil {
		h.respondError(w, "create bank account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBankAccountResponse(account))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	recs, err := h.service.FindAll(r.Context(), actor.OrganisationID, actor.BranchID)
	if err != nil {
		h.respondError(w, "list bank accounts", err)
		return
	}
	out := make([]reconciliationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReconciliationResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bank_accounts": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid bank account id", err.Error())
		return
	}
	rec, err := h.service.FindOne(r.Context(), actor.OrganisationID, id)
	if err != nil {
		h.respondError(w, "get bank account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(rec))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid bank account id", err.Error())
		return
	}
	var req updateBankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	account, err := h.service.Update(r.Context(), id, UpdateInput{
		AccountName:   req.AccountName,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		Type:          req.Type,
	}, actor)
	if err != nil {
		h.respondError(w, "update bank account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBankAccountResponse(account))
}

func (h *Handler) updateBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid bank account id", err.Error())
		return
	}
	var req updateBalanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if _, err := h.service.UpdateBankBalance(r.Context(), id, req.BankBalance, actor); err != nil {
		h.respondError(w, "update bank balance", err)
		return
	}
	// Respond with the freshly derived reconciliation state.
	rec, err := h.service.FindOne(r.Context(), actor.OrganisationID, id)
	if err != nil {
		h.respondError(w, "reload reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(rec))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid bank account id", err.Error())
		return
	}
	account, err := h.service.Deactivate(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, "deactivate bank account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBankAccountResponse(account))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !shared.IsValidation(err) && !shared.IsNotFound(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

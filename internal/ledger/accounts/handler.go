package accounts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/platform/httpx"
	"github.com/parishledger/parishledger/internal/shared"
)

// Handler exposes the account registry over JSON.
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

// MountRoutes registers account registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/code/{code}", h.getByCode)
	r.Get("/{id}", h.get)
	r.Get("/{id}/hierarchy", h.hierarchy)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
}

type createAccountRequest struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Type          AccountType   `json:"account_type"`
	SubType       string        `json:"sub_type"`
	NormalBalance NormalBalance `json:"normal_balance"`
	ParentID      *uuid.UUID    `json:"parent_id"`
	FundID        *uuid.UUID    `json:"fund_id"`
	MinistryID    *uuid.UUID    `json:"ministry_id"`
	Currency      string        `json:"currency"`
	Notes         string        `json:"notes"`
}

type updateAccountRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	SubType     *string    `json:"sub_type"`
	FundID      *uuid.UUID `json:"fund_id"`
	MinistryID  *uuid.UUID `json:"ministry_id"`
	Notes       *string    `json:"notes"`
}

type accountResponse struct {
	ID              uuid.UUID     `json:"id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Type            AccountType   `json:"account_type"`
	SubType         string        `json:"sub_type,omitempty"`
	NormalBalance   NormalBalance `json:"normal_balance"`
	ParentID        *uuid.UUID    `json:"parent_id,omitempty"`
	FundID          *uuid.UUID    `json:"fund_id,omitempty"`
	MinistryID      *uuid.UUID    `json:"ministry_id,omitempty"`
	Currency        string        `json:"currency"`
	Notes           string        `json:"notes,omitempty"`
	IsActive        bool          `json:"is_active"`
	IsSystemAccount bool          `json:"is_system_account"`
	IsBankAccount   bool          `json:"is_bank_account"`
	BankAccountID   *uuid.UUID    `json:"bank_account_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type hierarchyResponse struct {
	accountResponse
	Children []accountResponse `json:"children"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Code:            a.Code,
		Name:            a.Name,
		Description:     a.Description,
		Type:            a.Type,
		SubType:         a.SubType,
		NormalBalance:   a.NormalBalance,
		ParentID:        a.ParentID,
		FundID:          a.FundID,
		MinistryID:      a.MinistryID,
		Currency:        a.Currency,
		Notes:           a.Notes,
		IsActive:        a.IsActive,
		IsSystemAccount: a.IsSystemAccount,
		IsBankAccount:   a.IsBankAccount,
		BankAccountID:   a.BankAccountID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	account, err := h.service.Create(r.Context(), CreateAccountInput{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		SubType:       req.SubType,
		NormalBalance: req.NormalBalance,
		ParentID:      req.ParentID,
		FundID:        req.FundID,
		MinistryID:    req.MinistryID,
		Currency:      req.Currency,
		Notes:         req.Notes,
	}, actor)
	if err != nil {
		h.respondError(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	accountType := AccountType(r.URL.Query().Get("type"))
	list, err := h.service.ChartOfAccounts(r.Context(), actor.OrganisationID, actor.BranchID, accountType)
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
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
	account, err := h.service.GetByID(r.Context(), actor.OrganisationID, id)
	if err != nil {
		h.respondError(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) getByCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	account, err := h.service.GetByCode(r.Context(), actor.OrganisationID, actor.BranchID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, "get account by code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
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
	tree, err := h.service.Hierarchy(r.Context(), actor.OrganisationID, id)
	if err != nil {
		h.respondError(w, "get account hierarchy", err)
		return
	}
	resp := hierarchyResponse{accountResponse: toAccountResponse(tree.Account), Children: make([]accountResponse, 0, len(tree.Children))}
	for _, c := range tree.Children {
		resp.Children = append(resp.Children, toAccountResponse(c))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	account, err := h.service.Update(r.Context(), id, UpdateAccountInput{
		Name:        req.Name,
		Description: req.Description,
		SubType:     req.SubType,
		FundID:      req.FundID,
		MinistryID:  req.MinistryID,
		Notes:       req.Notes,
	}, actor)
	if err != nil {
		h.respondError(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || !actor.Valid() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	account, err := h.service.Deactivate(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, "deactivate account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !shared.IsValidation(err) && !shared.IsNotFound(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

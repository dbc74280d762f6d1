package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/platform/httpx"
	"github.com/parishledger/parishledger/internal/shared"
)

// Handler exposes audit trail reads over JSON. There are no write routes;
// entries are produced by the domain services.
type Handler struct {
	logger *slog.Logger
	trail  *Trail
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, trail *Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, trail: trail}
}

// MountRoutes registers audit trail routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listByOrganisation)
	r.Get("/entities/{type}/{id}", h.listByEntity)
	r.Get("/actors/{id}", h.listByActor)
}

type entryResponse struct {
	ID         uuid.UUID      `json:"id"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Action     Action         `json:"action"`
	Changes    map[string]any `json:"changes,omitempty"`
	ActorID    uuid.UUID      `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type listResponse struct {
	Entries []entryResponse   `json:"entries"`
	Paging  shared.Pagination `json:"paging"`
}

func toListResponse(result Result) listResponse {
	out := listResponse{Entries: make([]entryResponse, 0, len(result.Entries)), Paging: result.Paging}
	for _, e := range result.Entries {
		out.Entries = append(out.Entries, entryResponse{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Changes:    e.Changes,
			ActorID:    e.ActorID,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}

func (h *Handler) listByOrganisation(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.trail.ListByOrganisation(r.Context(), actor.OrganisationID, filters)
	if err != nil {
		h.respondError(w, "list audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toListResponse(result))
}

func (h *Handler) listByEntity(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	entityType := EntityType(chi.URLParam(r, "type"))
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid entity id", err.Error())
		return
	}
	page, pageSize := parsePaging(r)
	result, err := h.trail.ListByEntity(r.Context(), actor.OrganisationID, entityType, entityID, page, pageSize)
	if err != nil {
		h.respondError(w, "list entity audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toListResponse(result))
}

func (h *Handler) listByActor(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid actor id", err.Error())
		return
	}
	page, pageSize := parsePaging(r)
	result, err := h.trail.ListByActor(r.Context(), actor.OrganisationID, actorID, page, pageSize)
	if err != nil {
		h.respondError(w, "list actor audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toListResponse(result))
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	filters := Filters{
		EntityType: EntityType(q.Get("entity_type")),
		Action:     Action(q.Get("action")),
	}
	filters.Page, filters.PageSize = parsePaging(r)
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filters{}, shared.Validation("invalid date filter", "from must be YYYY-MM-DD")
		}
		filters.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filters{}, shared.Validation("invalid date filter", "to must be YYYY-MM-DD")
		}
		// Inclusive end of day.
		filters.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return Filters{}, shared.Validation("invalid date filter", "to predates from")
	}
	return filters, nil
}

func parsePaging(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !shared.IsValidation(err) && !shared.IsNotFound(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

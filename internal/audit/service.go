package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parishledger/parishledger/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// FailureObserver counts swallowed audit write failures, normally backed by
// the Prometheus metrics registry.
type FailureObserver interface {
	ObserveAuditWriteFailure()
}

// Trail is the append-only audit recorder. Writes are best-effort: a failed
// insert is logged and counted but never surfaced, so a broken audit store
// cannot take down ledger mutations.
type Trail struct {
	repo     Repository
	logger   *slog.Logger
	observer FailureObserver
	now      func() time.Time
}

// NewTrail builds the audit trail service. observer may be nil.
func NewTrail(repo Repository, logger *slog.Logger, observer FailureObserver) *Trail {
	return &Trail{repo: repo, logger: logger, observer: observer, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (t *Trail) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Record appends an audit entry. It never returns an error.
func (t *Trail) Record(ctx context.Context, entry Entry) {
	if t == nil || t.repo == nil {
		return
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = t.now()
	}
	if err := t.repo.Insert(ctx, entry); err != nil {
		if t.logger != nil {
			t.logger.Warn("audit write failed",
				slog.String("entity_type", string(entry.EntityType)),
				slog.String("entity_id", entry.EntityID.String()),
				slog.String("action", string(entry.Action)),
				slog.Any("error", err))
		}
		if t.observer != nil {
			t.observer.ObserveAuditWriteFailure()
		}
	}
}

// Result wraps listing output with paging information.
type Result struct {
	Entries []Entry
	Paging  shared.Pagination
}

// ListByEntity returns the newest-first audit history of one entity.
func (t *Trail) ListByEntity(ctx context.Context, organisationID uuid.UUID, entityType EntityType, entityID uuid.UUID, page, pageSize int) (Result, error) {
	return t.paged(ctx, page, pageSize, func(limit, offset int) ([]Entry, error) {
		return t.repo.ListByEntity(ctx, organisationID, entityType, entityID, limit, offset)
	})
}

// ListByActor returns the newest-first audit history produced by one actor.
func (t *Trail) ListByActor(ctx context.Context, organisationID, actorID uuid.UUID, page, pageSize int) (Result, error) {
	return t.paged(ctx, page, pageSize, func(limit, offset int) ([]Entry, error) {
		return t.repo.ListByActor(ctx, organisationID, actorID, limit, offset)
	})
}

// ListByOrganisation returns the newest-first organisation-wide history with
// optional type, action and date-range filters.
func (t *Trail) ListByOrganisation(ctx context.Context, organisationID uuid.UUID, filters Filters) (Result, error) {
	return t.paged(ctx, filters.Page, filters.PageSize, func(limit, offset int) ([]Entry, error) {
		return t.repo.ListByOrganisation(ctx, organisationID, filters, limit, offset)
	})
}

// paged fetches pageSize+1 rows so HasNext is answered without a count query.
func (t *Trail) paged(_ context.Context, page, pageSize int, fetch func(limit, offset int) ([]Entry, error)) (Result, error) {
	page, pageSize = shared.NormalisePage(page, pageSize, defaultPageSize, maxPageSize)
	offset := (page - 1) * pageSize
	entries, err := fetch(pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := shared.Pagination{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

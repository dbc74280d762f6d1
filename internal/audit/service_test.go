package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	entries   []Entry
	insertErr error
}

func (r *memoryAuditRepo) Insert(ctx context.Context, entry Entry) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryAuditRepo) ListByEntity(ctx context.Context, organisationID uuid.UUID, entityType EntityType, entityID uuid.UUID, limit, offset int) ([]Entry, error) {
	var matched []Entry
	for _, e := range r.entries {
		if e.OrganisationID == organisationID && e.EntityType == entityType && e.EntityID == entityID {
			matched = append(matched, e)
		}
	}
	return window(matched, limit, offset), nil
}

func (r *memoryAuditRepo) ListByActor(ctx context.Context, organisationID, actorID uuid.UUID, limit, offset int) ([]Entry, error) {
	var matched []Entry
	for _, e := range r.entries {
		if e.OrganisationID == organisationID && e.ActorID == actorID {
			matched = append(matched, e)
		}
	}
	return window(matched, limit, offset), nil
}

func (r *memoryAuditRepo) ListByOrganisation(ctx context.Context, organisationID uuid.UUID, filters Filters, limit, offset int) ([]Entry, error) {
	var matched []Entry
	for _, e := range r.entries {
		if e.OrganisationID != organisationID {
			continue
		}
		if filters.EntityType != "" && e.EntityType != filters.EntityType {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		matched = append(matched, e)
	}
	return window(matched, limit, offset), nil
}

func window(entries []Entry, limit, offset int) []Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

type countingObserver struct {
	failures int
}

func (o *countingObserver) ObserveAuditWriteFailure() { o.failures++ }

func entry(orgID, actorID uuid.UUID) Entry {
	return Entry{
		EntityType:     EntityAccount,
		EntityID:       uuid.New(),
		Action:         ActionCreate,
		ActorID:        actorID,
		OrganisationID: orgID,
	}
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	repo := &memoryAuditRepo{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), nil)
	stamp := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	trail.WithNow(func() time.Time { return stamp })

	trail.Record(context.Background(), entry(uuid.New(), uuid.New()))

	require.Len(t, repo.entries, 1)
	require.NotEqual(t, uuid.Nil, repo.entries[0].ID)
	require.Equal(t, stamp, repo.entries[0].OccurredAt)
}

func TestRecordSwallowsInsertFailure(t *testing.T) {
	repo := &memoryAuditRepo{insertErr: errors.New("connection refused")}
	observer := &countingObserver{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), observer)

	// Does not panic and does not propagate the error.
	trail.Record(context.Background(), entry(uuid.New(), uuid.New()))
	trail.Record(context.Background(), entry(uuid.New(), uuid.New()))

	require.Empty(t, repo.entries)
	require.Equal(t, 2, observer.failures)
}

func TestRecordNilTrailIsSafe(t *testing.T) {
	var trail *Trail
	trail.Record(context.Background(), entry(uuid.New(), uuid.New()))
}

func TestListByEntityPaging(t *testing.T) {
	repo := &memoryAuditRepo{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), nil)
	orgID, actorID := uuid.New(), uuid.New()
	entityID := uuid.New()
	for i := 0; i < 7; i++ {
		e := entry(orgID, actorID)
		e.EntityID = entityID
		trail.Record(context.Background(), e)
	}

	first, err := trail.ListByEntity(context.Background(), orgID, EntityAccount, entityID, 1, 5)
	require.NoError(t, err)
	require.Len(t, first.Entries, 5)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	second, err := trail.ListByEntity(context.Background(), orgID, EntityAccount, entityID, 2, 5)
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	require.False(t, second.Paging.HasNext)
	require.Equal(t, 1, second.Paging.PrevPage)
}

func TestListByActorScopesToOrganisation(t *testing.T) {
	repo := &memoryAuditRepo{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), nil)
	orgA, orgB, actorID := uuid.New(), uuid.New(), uuid.New()
	trail.Record(context.Background(), entry(orgA, actorID))
	trail.Record(context.Background(), entry(orgB, actorID))

	result, err := trail.ListByActor(context.Background(), orgA, actorID, 1, 10)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, orgA, result.Entries[0].OrganisationID)
}

func TestListByOrganisationFilters(t *testing.T) {
	repo := &memoryAuditRepo{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), nil)
	orgID, actorID := uuid.New(), uuid.New()

	created := entry(orgID, actorID)
	trail.Record(context.Background(), created)
	reconciled := entry(orgID, actorID)
	reconciled.EntityType = EntityBankAccount
	reconciled.Action = ActionReconcile
	trail.Record(context.Background(), reconciled)

	result, err := trail.ListByOrganisation(context.Background(), orgID, Filters{Action: ActionReconcile})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, EntityBankAccount, result.Entries[0].EntityType)
	require.Equal(t, defaultPageSize, result.Paging.PageSize)
}

func TestPageSizeIsClamped(t *testing.T) {
	repo := &memoryAuditRepo{}
	trail := NewTrail(repo, slog.New(slog.DiscardHandler), nil)
	orgID := uuid.New()

	result, err := trail.ListByOrganisation(context.Background(), orgID, Filters{Page: -3, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
}

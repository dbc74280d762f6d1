package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and reads audit log rows.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, organisationID uuid.UUID, entityType EntityType, entityID uuid.UUID, limit, offset int) ([]Entry, error)
	ListByActor(ctx context.Context, organisationID, actorID uuid.UUID, limit, offset int) ([]Entry, error)
	ListByOrganisation(ctx context.Context, organisationID uuid.UUID, filters Filters, limit, offset int) ([]Entry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a pgx-backed audit repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Insert(ctx context.Context, e Entry) error {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO audit_logs (id, entity_type, entity_id, action, changes, actor_id, organisation_id, branch_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.EntityType, e.EntityID, e.Action, changes, e.ActorID, e.OrganisationID, e.BranchID, e.OccurredAt)
	return err
}

const auditColumns = `id, entity_type, entity_id, action, changes, actor_id, organisation_id, branch_id, occurred_at`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &changes,
			&e.ActorID, &e.OrganisationID, &e.BranchID, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) ListByEntity(ctx context.Context, organisationID uuid.UUID, entityType EntityType, entityID uuid.UUID, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs
WHERE organisation_id=$1 AND entity_type=$2 AND entity_id=$3
ORDER BY occurred_at DESC LIMIT $4 OFFSET $5`, organisationID, entityType, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) ListByActor(ctx context.Context, organisationID, actorID uuid.UUID, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs
WHERE organisation_id=$1 AND actor_id=$2
ORDER BY occurred_at DESC LIMIT $3 OFFSET $4`, organisationID, actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) ListByOrganisation(ctx context.Context, organisationID uuid.UUID, filters Filters, limit, offset int) ([]Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE organisation_id=$1`
	args := []any{organisationID}
	if filters.EntityType != "" {
		args = append(args, filters.EntityType)
		query += ` AND entity_type=$` + strconv.Itoa(len(args))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		query += ` AND action=$` + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += ` AND occurred_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		query += ` AND occurred_at <= $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}


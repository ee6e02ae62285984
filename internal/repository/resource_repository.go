package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rentcore/internal/domain"
)

type ResourceRepository interface {
	Create(ctx context.Context, resource *domain.Resource) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Resource, error)
	GetByCatalogKey(ctx context.Context, key string) (*domain.Resource, error)
	GetFacilityByName(ctx context.Context, name string) (*domain.Resource, error)
	List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.EquipmentStatus) (bool, error)
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
	// LockByIDs takes row locks in id order. Callers must be inside a transaction.
	LockByIDs(ctx context.Context, ids []uuid.UUID) error
	SetCurrentReservation(ctx context.Context, ids []uuid.UUID, reservationID uuid.UUID) error
	// ClearCurrentReservation reports whether any resource carried the stamp.
	ClearCurrentReservation(ctx context.Context, reservationID uuid.UUID) (bool, error)
}

type resourceRepository struct {
	db DBTX
}

func NewResourceRepository(db DBTX) ResourceRepository {
	return &resourceRepository{db: db}
}

const resourceColumns = `id, kind, catalog_key, name, category, status, is_active, image_url,
	current_reservation_id, created_at, updated_at`

func (r *resourceRepository) Create(ctx context.Context, resource *domain.Resource) error {
	query := `
		INSERT INTO resources (id, kind, catalog_key, name, category, status, is_active, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		resource.ID, resource.Kind, resource.CatalogKey, resource.Name, resource.Category,
		resource.Status, resource.IsActive, resource.ImageURL,
	).Scan(&resource.CreatedAt, &resource.UpdatedAt)
}

func (r *resourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	return r.getOne(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
}

func (r *resourceRepository) GetByCatalogKey(ctx context.Context, key string) (*domain.Resource, error) {
	return r.getOne(ctx, `SELECT `+resourceColumns+` FROM resources WHERE catalog_key = $1`, key)
}

func (r *resourceRepository) GetFacilityByName(ctx context.Context, name string) (*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources
		WHERE kind = 'FACILITY' AND name = $1
		ORDER BY is_active DESC, created_at
		LIMIT 1`
	return r.getOne(ctx, query, strings.TrimSpace(name))
}

func (r *resourceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Resource, error) {
	var resource domain.Resource
	err := r.db.GetContext(ctx, &resource, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *resourceRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Resource, error) {
	if len(ids) == 0 {
		return []domain.Resource{}, nil
	}

	var resources []domain.Resource
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ANY($1::uuid[]) ORDER BY id`
	err := r.db.SelectContext(ctx, &resources, query, pq.Array(uuidStrings(ids)))
	return resources, err
}

func (r *resourceRepository) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources
		WHERE ($1::text IS NULL OR kind = $1)
		  AND ($2::boolean = FALSE OR is_active = TRUE)
		  AND ($3::text = '' OR category = $3)
		ORDER BY kind, category, name`

	var kind *string
	if filter.Kind != nil {
		k := string(*filter.Kind)
		kind = &k
	}

	var resources []domain.Resource
	err := r.db.SelectContext(ctx, &resources, query, kind, filter.ActiveOnly, filter.Category)
	return resources, err
}

func (r *resourceRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE resources SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return affected(res, err)
}

func (r *resourceRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.EquipmentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE resources SET status = $2, updated_at = NOW() WHERE id = $1 AND kind = 'EQUIPMENT'`, id, status)
	return affected(res, err)
}

func (r *resourceRepository) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE resources SET image_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	return err
}

func (r *resourceRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []uuid.UUID
	query := `SELECT id FROM resources WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	return r.db.SelectContext(ctx, &locked, query, pq.Array(uuidStrings(ids)))
}

func (r *resourceRepository) SetCurrentReservation(ctx context.Context, ids []uuid.UUID, reservationID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE resources
		SET current_reservation_id = $2,
			status = CASE WHEN kind = 'EQUIPMENT' AND status <> 'BROKEN' THEN 'RENTED' ELSE status END,
			updated_at = NOW()
		WHERE id = ANY($1::uuid[])`
	_, err := r.db.ExecContext(ctx, query, pq.Array(uuidStrings(ids)), reservationID)
	return err
}

func (r *resourceRepository) ClearCurrentReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	query := `
		UPDATE resources
		SET current_reservation_id = NULL,
			status = CASE WHEN kind = 'EQUIPMENT' AND status = 'RENTED' THEN 'AVAILABLE' ELSE status END,
			updated_at = NOW()
		WHERE current_reservation_id = $1`
	return affected(r.db.ExecContext(ctx, query, reservationID))
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

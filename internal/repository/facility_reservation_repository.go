package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rentcore/internal/domain"
)

type FacilityReservationRepository interface {
	Create(ctx context.Context, fr *domain.FacilityReservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FacilityReservation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.FacilityReservation, error)
	UpdateStatus(ctx context.Context, t domain.StatusTransition) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter domain.FacilityReservationFilter, params domain.PaginationParams) ([]domain.FacilityReservation, int64, error)
	ListInWindow(ctx context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.FacilityReservation, error)
	CountByStatus(ctx context.Context, status domain.ReservationStatus) (int64, error)
	// OverlappingBookings reports facility_id as the booking's resource.
	OverlappingBookings(ctx context.Context, q domain.ConflictQuery) ([]domain.Booking, error)
}

type facilityReservationRepository struct {
	db DBTX
}

func NewFacilityReservationRepository(db DBTX) FacilityReservationRepository {
	return &facilityReservationRepository{db: db}
}

const facilityReservationSelect = `
	SELECT fr.id, fr.user_id, fr.facility_id, fr.start_at, fr.end_at, fr.status, fr.reject_reason,
		fr.purpose, fr.team_members, fr.headcount, fr.reviewed_by, fr.reviewed_at,
		fr.created_at, fr.updated_at,
		f.kind AS "facility.kind", f.catalog_key AS "facility.catalog_key", f.name AS "facility.name"
	FROM facility_reservations fr
	JOIN resources f ON f.id = fr.facility_id`

// facilityRow flattens the joined facility columns; sqlx cannot scan into a
// nil pointer field.
type facilityRow struct {
	domain.FacilityReservation
	Facility struct {
		Kind       domain.ResourceKind `db:"kind"`
		CatalogKey string              `db:"catalog_key"`
		Name       string              `db:"name"`
	} `db:"facility"`
}

func (row facilityRow) toDomain() domain.FacilityReservation {
	fr := row.FacilityReservation
	fr.Facility = &domain.ResourceSummary{
		ID:         fr.FacilityID,
		Kind:       row.Facility.Kind,
		CatalogKey: row.Facility.CatalogKey,
		Name:       row.Facility.Name,
	}
	if fr.TeamMembers == nil {
		fr.TeamMembers = domain.TeamRoster{}
	}
	return fr
}

func (r *facilityReservationRepository) Create(ctx context.Context, fr *domain.FacilityReservation) error {
	query := `
		INSERT INTO facility_reservations (id, user_id, facility_id, start_at, end_at, status, purpose, team_members, headcount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		fr.ID, fr.UserID, fr.FacilityID, fr.StartAt, fr.EndAt, fr.Status, fr.Purpose, fr.TeamMembers, fr.Headcount,
	).Scan(&fr.CreatedAt, &fr.UpdatedAt)
}

func (r *facilityReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FacilityReservation, error) {
	return r.getOne(ctx, facilityReservationSelect+` WHERE fr.id = $1`, id)
}

func (r *facilityReservationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.FacilityReservation, error) {
	return r.getOne(ctx, facilityReservationSelect+` WHERE fr.id = $1 FOR UPDATE OF fr`, id)
}

func (r *facilityReservationRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.FacilityReservation, error) {
	var row facilityRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fr := row.toDomain()
	return &fr, nil
}

func (r *facilityReservationRepository) UpdateStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	query := `
		UPDATE facility_reservations
		SET status = $3, reject_reason = $4, reviewed_by = $5, reviewed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, t.ID, t.From, t.To, t.RejectReason, t.ReviewedBy, t.ReviewedAt)
	return affected(res, err)
}

func (r *facilityReservationRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM facility_reservations WHERE id = $1`, id)
	return affected(res, err)
}

func (r *facilityReservationRepository) List(ctx context.Context, filter domain.FacilityReservationFilter, params domain.PaginationParams) ([]domain.FacilityReservation, int64, error) {
	params.Normalize()

	w := &whereBuilder{}
	if filter.UserID != nil {
		w.add("fr.user_id = ?", *filter.UserID)
	}
	if filter.FacilityID != nil {
		w.add("fr.facility_id = ?", *filter.FacilityID)
	}
	if len(filter.Statuses) > 0 {
		w.add("fr.status = ANY(?::text[])", pq.Array(domain.StatusStrings(filter.Statuses)))
	}
	if filter.From != nil {
		w.add("fr.end_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("fr.start_at <= ?", *filter.To)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM facility_reservations fr`+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	where := w.String()
	limit := w.next(params.PageSize)
	offset := w.next(params.Offset())
	query := facilityReservationSelect + where + ` ORDER BY fr.created_at DESC LIMIT ` + limit + ` OFFSET ` + offset

	var rows []facilityRow
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, 0, err
	}
	return toFacilityReservations(rows), total, nil
}

func (r *facilityReservationRepository) ListInWindow(ctx context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.FacilityReservation, error) {
	query := facilityReservationSelect + `
		WHERE fr.status = ANY($1::text[]) AND fr.start_at <= $3 AND fr.end_at >= $2
		ORDER BY fr.start_at`

	var rows []facilityRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(domain.StatusStrings(statuses)), from, to); err != nil {
		return nil, err
	}
	return toFacilityReservations(rows), nil
}

func (r *facilityReservationRepository) CountByStatus(ctx context.Context, status domain.ReservationStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM facility_reservations WHERE status = $1`, status)
	return count, err
}

func (r *facilityReservationRepository) OverlappingBookings(ctx context.Context, q domain.ConflictQuery) ([]domain.Booking, error) {
	if len(q.ResourceIDs) == 0 || len(q.BlockingStatuses) == 0 {
		return []domain.Booking{}, nil
	}

	query := `
		SELECT id AS reservation_id, facility_id AS resource_id, start_at, end_at, status
		FROM facility_reservations
		WHERE facility_id = ANY($1::uuid[])
		  AND status = ANY($2::text[])
		  AND start_at <= $4
		  AND end_at >= $3
		  AND ($5::uuid IS NULL OR id <> $5)`

	var bookings []domain.Booking
	err := r.db.SelectContext(ctx, &bookings, query,
		pq.Array(uuidStrings(q.ResourceIDs)), pq.Array(domain.StatusStrings(q.BlockingStatuses)),
		q.Start, q.End, q.ExcludeID,
	)
	return bookings, err
}

func toFacilityReservations(rows []facilityRow) []domain.FacilityReservation {
	out := make([]domain.FacilityReservation, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}

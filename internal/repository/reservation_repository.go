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

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	InsertItems(ctx context.Context, reservationID uuid.UUID, resourceIDs []uuid.UUID) ([]domain.ReservationItem, error)
	DeleteItems(ctx context.Context, reservationID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	UpdateWindow(ctx context.Context, reservation *domain.Reservation) error
	UpdateStatus(ctx context.Context, t domain.StatusTransition) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter domain.ReservationFilter, params domain.PaginationParams) ([]domain.Reservation, int64, error)
	ListInWindow(ctx context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.Reservation, error)
	CountByStatus(ctx context.Context, status domain.ReservationStatus) (int64, error)
	BookedWindows(ctx context.Context, resourceID uuid.UUID, statuses []domain.ReservationStatus) ([]domain.BookedWindow, error)
	// OverlappingBookings returns one row per (reservation, resource) pair
	// that overlaps the query window inclusively.
	OverlappingBookings(ctx context.Context, q domain.ConflictQuery) ([]domain.Booking, error)
}

type reservationRepository struct {
	db DBTX
}

func NewReservationRepository(db DBTX) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `r.id, r.user_id, r.start_at, r.end_at, r.status, r.reject_reason,
	r.subject_name, r.purpose, r.reviewed_by, r.reviewed_at, r.created_at, r.updated_at`

func (r *reservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reservations (id, user_id, start_at, end_at, status, subject_name, purpose, reviewed_by, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		reservation.ID, reservation.UserID, reservation.StartAt, reservation.EndAt, reservation.Status,
		reservation.SubjectName, reservation.Purpose, reservation.ReviewedBy, reservation.ReviewedAt,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
}

func (r *reservationRepository) InsertItems(ctx context.Context, reservationID uuid.UUID, resourceIDs []uuid.UUID) ([]domain.ReservationItem, error) {
	items := make([]domain.ReservationItem, 0, len(resourceIDs))
	for _, resourceID := range resourceIDs {
		item := domain.ReservationItem{
			ID:            uuid.New(),
			ReservationID: reservationID,
			ResourceID:    resourceID,
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO reservation_items (id, reservation_id, resource_id) VALUES ($1, $2, $3)`,
			item.ID, item.ReservationID, item.ResourceID,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *reservationRepository) DeleteItems(ctx context.Context, reservationID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reservation_items WHERE reservation_id = $1`, reservationID)
	return err
}

func (r *reservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1`, id)
}

func (r *reservationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1 FOR UPDATE`, id)
}

func (r *reservationRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.db.GetContext(ctx, &reservation, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	list := []domain.Reservation{reservation}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *reservationRepository) UpdateWindow(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		UPDATE reservations
		SET start_at = $2, end_at = $3, subject_name = $4, purpose = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.db.QueryRowxContext(ctx, query,
		reservation.ID, reservation.StartAt, reservation.EndAt, reservation.SubjectName, reservation.Purpose,
	).Scan(&reservation.UpdatedAt)
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	query := `
		UPDATE reservations
		SET status = $3, reject_reason = $4, reviewed_by = $5, reviewed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, t.ID, t.From, t.To, t.RejectReason, t.ReviewedBy, t.ReviewedAt)
	return affected(res, err)
}

func (r *reservationRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	return affected(res, err)
}

func (r *reservationRepository) List(ctx context.Context, filter domain.ReservationFilter, params domain.PaginationParams) ([]domain.Reservation, int64, error) {
	params.Normalize()

	w := &whereBuilder{}
	if filter.UserID != nil {
		w.add("r.user_id = ?", *filter.UserID)
	}
	if filter.ResourceID != nil {
		w.add("EXISTS (SELECT 1 FROM reservation_items ri WHERE ri.reservation_id = r.id AND ri.resource_id = ?)", *filter.ResourceID)
	}
	if len(filter.Statuses) > 0 {
		w.add("r.status = ANY(?::text[])", pq.Array(domain.StatusStrings(filter.Statuses)))
	}
	if filter.From != nil {
		w.add("r.end_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("r.start_at <= ?", *filter.To)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reservations r`+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	where := w.String()
	limit := w.next(params.PageSize)
	offset := w.next(params.Offset())
	query := `SELECT ` + reservationColumns + ` FROM reservations r` + where +
		` ORDER BY r.created_at DESC LIMIT ` + limit + ` OFFSET ` + offset

	var reservations []domain.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, w.args...); err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, reservations); err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

func (r *reservationRepository) ListInWindow(ctx context.Context, statuses []domain.ReservationStatus, from, to time.Time) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r
		WHERE r.status = ANY($1::text[]) AND r.start_at <= $3 AND r.end_at >= $2
		ORDER BY r.start_at`

	var reservations []domain.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, pq.Array(domain.StatusStrings(statuses)), from, to); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *reservationRepository) CountByStatus(ctx context.Context, status domain.ReservationStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reservations WHERE status = $1`, status)
	return count, err
}

func (r *reservationRepository) BookedWindows(ctx context.Context, resourceID uuid.UUID, statuses []domain.ReservationStatus) ([]domain.BookedWindow, error) {
	query := `
		SELECT r.id AS reservation_id, r.start_at, r.end_at, r.status
		FROM reservation_items ri
		JOIN reservations r ON r.id = ri.reservation_id
		WHERE ri.resource_id = $1 AND r.status = ANY($2::text[])
		ORDER BY r.start_at`

	var windows []domain.BookedWindow
	err := r.db.SelectContext(ctx, &windows, query, resourceID, pq.Array(domain.StatusStrings(statuses)))
	return windows, err
}

func (r *reservationRepository) OverlappingBookings(ctx context.Context, q domain.ConflictQuery) ([]domain.Booking, error) {
	if len(q.ResourceIDs) == 0 || len(q.BlockingStatuses) == 0 {
		return []domain.Booking{}, nil
	}

	query := `
		SELECT r.id AS reservation_id, ri.resource_id, r.start_at, r.end_at, r.status
		FROM reservation_items ri
		JOIN reservations r ON r.id = ri.reservation_id
		WHERE ri.resource_id = ANY($1::uuid[])
		  AND r.status = ANY($2::text[])
		  AND r.start_at <= $4
		  AND r.end_at >= $3
		  AND ($5::uuid IS NULL OR r.id <> $5)`

	var bookings []domain.Booking
	err := r.db.SelectContext(ctx, &bookings, query,
		pq.Array(uuidStrings(q.ResourceIDs)), pq.Array(domain.StatusStrings(q.BlockingStatuses)),
		q.Start, q.End, q.ExcludeID,
	)
	return bookings, err
}

type itemRow struct {
	ID            uuid.UUID           `db:"id"`
	ReservationID uuid.UUID           `db:"reservation_id"`
	ResourceID    uuid.UUID           `db:"resource_id"`
	Kind          domain.ResourceKind `db:"kind"`
	CatalogKey    string              `db:"catalog_key"`
	Name          string              `db:"name"`
}

func (r *reservationRepository) attachItems(ctx context.Context, reservations []domain.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(reservations))
	index := make(map[uuid.UUID]int, len(reservations))
	for i := range reservations {
		ids[i] = reservations[i].ID
		index[reservations[i].ID] = i
		reservations[i].Items = []domain.ReservationItem{}
	}

	query := `
		SELECT ri.id, ri.reservation_id, ri.resource_id, res.kind, res.catalog_key, res.name
		FROM reservation_items ri
		JOIN resources res ON res.id = ri.resource_id
		WHERE ri.reservation_id = ANY($1::uuid[])
		ORDER BY res.catalog_key`

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(uuidStrings(ids))); err != nil {
		return err
	}

	for _, row := range rows {
		i := index[row.ReservationID]
		reservations[i].Items = append(reservations[i].Items, domain.ReservationItem{
			ID:            row.ID,
			ReservationID: row.ReservationID,
			ResourceID:    row.ResourceID,
			Resource: &domain.ResourceSummary{
				ID:         row.ResourceID,
				Kind:       row.Kind,
				CatalogKey: row.CatalogKey,
				Name:       row.Name,
			},
		})
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rentcore/internal/domain"
)

type AuditLogRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	List(ctx context.Context, params domain.PaginationParams) ([]domain.AuditLog, int64, error)
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	db *sqlx.DB
}

func NewAuditLogRepository(db *sqlx.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, from_status, to_status, detail, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		log.ID, log.ActorID, log.Action, log.EntityType, log.EntityID,
		log.FromStatus, log.ToStatus, nullableJSON(log.Detail), log.IPAddress, log.UserAgent,
	).Scan(&log.CreatedAt)
}

const auditLogSelect = `
	SELECT al.id, al.actor_id, u.name AS actor_name, al.action, al.entity_type, al.entity_id,
		al.from_status, al.to_status, al.detail, al.ip_address, al.user_agent, al.created_at
	FROM audit_logs al
	LEFT JOIN users u ON al.actor_id = u.id`

func (r *auditLogRepository) List(ctx context.Context, params domain.PaginationParams) ([]domain.AuditLog, int64, error) {
	params.Normalize()

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`); err != nil {
		return nil, 0, err
	}

	var logs []domain.AuditLog
	query := auditLogSelect + ` ORDER BY al.created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &logs, query, params.PageSize, params.Offset())
	return logs, total, err
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	query := auditLogSelect + ` WHERE al.entity_type = $1 AND al.entity_id = $2 ORDER BY al.created_at`
	err := r.db.SelectContext(ctx, &logs, query, entityType, entityID)
	return logs, err
}

// CreateAuditLog marshals the detail payload and records one entry.
func CreateAuditLog(ctx context.Context, repo AuditLogRepository, input domain.CreateAuditLogInput) error {
	var detail json.RawMessage
	if input.Detail != nil {
		b, err := json.Marshal(input.Detail)
		if err != nil {
			return err
		}
		detail = b
	}

	log := &domain.AuditLog{
		ID:         uuid.New(),
		ActorID:    input.ActorID,
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		FromStatus: statusPtr(input.FromStatus),
		ToStatus:   statusPtr(input.ToStatus),
		Detail:     detail,
	}
	if input.Meta != nil {
		if input.Meta.IPAddress != "" {
			ip := input.Meta.IPAddress
			log.IPAddress = &ip
		}
		if input.Meta.UserAgent != "" {
			ua := input.Meta.UserAgent
			log.UserAgent = &ua
		}
	}

	return repo.Create(ctx, log)
}

func statusPtr(s domain.ReservationStatus) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

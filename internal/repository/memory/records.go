package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/domain"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]domain.User)}
}

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	u.users[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if user, ok := u.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, user := range u.users {
		if strings.EqualFold(user.Email, email) {
			user := user
			return &user, nil
		}
	}
	return nil, nil
}

func (u *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	user, err := u.GetByEmail(ctx, email)
	return user != nil, err
}

func (u *Users) GetSummaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UserSummary, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[uuid.UUID]domain.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := u.users[id]; ok {
			out[id] = user.Summary()
		}
	}
	return out, nil
}

func (u *Users) List(_ context.Context, role *domain.UserRole, params domain.PaginationParams) ([]domain.User, int64, error) {
	params.Normalize()
	u.mu.RLock()
	var matched []domain.User
	for _, user := range u.users {
		if role == nil || user.Role == *role {
			matched = append(matched, user)
		}
	}
	u.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, params), int64(len(matched)), nil
}

// Notifications is an in-memory repository.NotificationRepository.
type Notifications struct {
	mu    sync.RWMutex
	items []domain.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (n *Notifications) Create(_ context.Context, notif *domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	notif.CreatedAt = time.Now()
	n.items = append(n.items, *notif)
	return nil
}

func (n *Notifications) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	params.Normalize()
	n.mu.RLock()
	var matched []domain.Notification
	for i := len(n.items) - 1; i >= 0; i-- {
		item := n.items[i]
		if item.UserID == userID && (!unreadOnly || !item.IsRead) {
			matched = append(matched, item)
		}
	}
	n.mu.RUnlock()
	return page(matched, params), int64(len(matched)), nil
}

func (n *Notifications) MarkAsRead(_ context.Context, userID, id uuid.UUID) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		if n.items[i].ID == id && n.items[i].UserID == userID && !n.items[i].IsRead {
			now := time.Now()
			n.items[i].IsRead = true
			n.items[i].ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (n *Notifications) MarkAllAsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int64
	now := time.Now()
	for i := range n.items {
		if n.items[i].UserID == userID && !n.items[i].IsRead {
			n.items[i].IsRead = true
			n.items[i].ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (n *Notifications) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var count int64
	for _, item := range n.items {
		if item.UserID == userID && !item.IsRead {
			count++
		}
	}
	return count, nil
}

// All returns a copy of every stored notification, oldest first.
func (n *Notifications) All() []domain.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]domain.Notification(nil), n.items...)
}

// AuditLogs is an in-memory repository.AuditLogRepository.
type AuditLogs struct {
	mu   sync.RWMutex
	logs []domain.AuditLog
}

func NewAuditLogs() *AuditLogs {
	return &AuditLogs{}
}

func (a *AuditLogs) Create(_ context.Context, log *domain.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	log.CreatedAt = time.Now()
	a.logs = append(a.logs, *log)
	return nil
}

func (a *AuditLogs) List(_ context.Context, params domain.PaginationParams) ([]domain.AuditLog, int64, error) {
	params.Normalize()
	a.mu.RLock()
	defer a.mu.RUnlock()
	rev := make([]domain.AuditLog, 0, len(a.logs))
	for i := len(a.logs) - 1; i >= 0; i-- {
		rev = append(rev, a.logs[i])
	}
	return page(rev, params), int64(len(rev)), nil
}

func (a *AuditLogs) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []domain.AuditLog
	for _, log := range a.logs {
		if log.EntityType == entityType && log.EntityID == entityID {
			out = append(out, log)
		}
	}
	return out, nil
}

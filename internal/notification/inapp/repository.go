package inapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate      = "notification.inapp.repository.create"
	opPending     = "notification.inapp.repository.pending"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"

	errRepoNotConfigured = "in-app notification repository not configured"
)

const (
	notificationColumns = `id, organization_id, user_id, title, content, category, is_read, created_at`

	insertNotificationQuery = `
		INSERT INTO in_app_notifications (id, organization_id, user_id, title, content, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns

	pendingNotificationsQuery = `
		SELECT ` + notificationColumns + `
		FROM in_app_notifications
		WHERE user_id = $1 AND organization_id = $2 AND is_read = FALSE
		ORDER BY created_at DESC
		LIMIT $3`

	countUnreadQuery = `
		SELECT COUNT(*) FROM in_app_notifications
		WHERE user_id = $1 AND organization_id = $2 AND is_read = FALSE`

	markReadQuery = `
		UPDATE in_app_notifications SET is_read = TRUE
		WHERE user_id = $1 AND organization_id = $2 AND id = $3`

	markAllReadQuery = `
		UPDATE in_app_notifications SET is_read = TRUE
		WHERE user_id = $1 AND organization_id = $2 AND is_read = FALSE`
)

type Notification struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	UserID         uuid.UUID `json:"userId"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateParams struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Title          string
	Content        string
	Category       string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}

	row := r.pool.QueryRow(ctx, insertNotificationQuery,
		uuid.New(), p.OrganizationID, p.UserID, p.Title, p.Content, p.Category)
	n, err := scanNotification(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, apperr.Validation("invalid organizationId or userId").WithOp(opCreate)
		}
		return Notification{}, apperr.Internal(fmt.Sprintf("create in-app notification failed: %v", err)).WithOp(opCreate)
	}
	return n, nil
}

func (r *Repository) Pending(ctx context.Context, userID, orgID uuid.UUID, limit int) ([]Notification, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opPending)
	}

	rows, err := r.pool.Query(ctx, pendingNotificationsQuery, userID, orgID, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("pending notifications query failed: %v", err)).WithOp(opPending)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opPending)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opPending)
	}
	return items, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID, orgID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}

	var count int
	if err := r.pool.QueryRow(ctx, countUnreadQuery, userID, orgID).Scan(&count); err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, userID, orgID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx, markReadQuery, userID, orgID, notificationID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID, orgID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}

	if _, err := r.pool.Exec(ctx, markAllReadQuery, userID, orgID); err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.Title, &n.Content, &n.Category, &n.IsRead, &n.CreatedAt)
	return n, err
}

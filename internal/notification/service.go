package notification

import (
	"context"
	"fmt"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/shared/pagination"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Pusher delivers a realtime event to a user's open sockets.
type Pusher interface {
	Push(ctx context.Context, userID, eventType string, data any)
}

const columns = "id, user_id, type, title, message, data, read, read_at, action_url, created_at, updated_at"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db     db.Querier
	pusher Pusher
}

func NewService(db db.Querier, pusher Pusher) *Service {
	return &Service{db: db, pusher: pusher}
}

// Create stores the notification and pushes it to the recipient.
func (s *Service) Create(ctx context.Context, in NewNotification) (Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Data:      in.Data,
		ActionURL: in.ActionURL,
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	data, err := db.JSONB(n.Data)
	if err != nil {
		return Notification{}, err
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, action_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, data, n.ActionURL).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Notification{}, apperr.FromDB(err, "notification")
	}

	if s.pusher != nil {
		s.pusher.Push(ctx, n.UserID, EventType, n)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID string, p pagination.Params, unreadOnly bool) ([]Notification, pagination.Meta, error) {
	filter := sq.And{sq.Eq{"user_id": userID}}
	if unreadOnly {
		filter = append(filter, sq.Eq{"read": false})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("notifications").Where(filter).ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count notifications: %w", err)
	}

	query, args, err := psql.Select(columns).From("notifications").Where(filter).
		OrderBy("created_at DESC").
		Limit(uint64(p.Limit)).Offset(p.Offset()).
		ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Meta{}, err
	}
	return out, pagination.NewMeta(p, total), nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE notifications SET read=TRUE, read_at=COALESCE(read_at, now()), updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING `+columns, id, userID)
	n, err := scan(row)
	if err != nil {
		return Notification{}, apperr.FromDB(err, "notification")
	}
	return n, nil
}

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	var typ string
	var data []byte
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &data, &n.Read, &n.ReadAt,
		&n.ActionURL, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return Notification{}, err
	}
	n.Type = Type(typ)
	if err := db.ScanJSONB(data, &n.Data); err != nil {
		return Notification{}, err
	}
	return n, nil
}

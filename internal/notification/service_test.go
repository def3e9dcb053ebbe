package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/shared/pagination"

	"github.com/pashagolub/pgxmock/v3"
)

var notificationCols = []string{"id", "user_id", "type", "title", "message", "data", "read", "read_at", "action_url", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

type pushed struct {
	userID    string
	eventType string
	data      any
}

type recordingPusher struct {
	calls []pushed
}

func (r *recordingPusher) Push(_ context.Context, userID, eventType string, data any) {
	r.calls = append(r.calls, pushed{userID, eventType, data})
}

func TestCreatePushesToRecipient(t *testing.T) {
	mock := newMock(t)
	pusher := &recordingPusher{}
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(pgxmock.AnyArg(), "user-2", "friend_request", "New friend request", "Alice wants to be friends", []byte(`{"from":"user-1"}`), "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	n, err := NewService(mock, pusher).Create(context.Background(), NewNotification{
		UserID:  "user-2",
		Type:    TypeFriendRequest,
		Title:   "New friend request",
		Message: "Alice wants to be friends",
		Data:    map[string]any{"from": "user-1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.ID == "" || !n.CreatedAt.Equal(now) {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(pusher.calls) != 1 || pusher.calls[0].userID != "user-2" || pusher.calls[0].eventType != EventType {
		t.Fatalf("unexpected pushes: %+v", pusher.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateFailureDoesNotPush(t *testing.T) {
	mock := newMock(t)
	pusher := &recordingPusher{}
	mock.ExpectQuery(`INSERT INTO notifications`).WillReturnError(errors.New("db down"))

	_, err := NewService(mock, pusher).Create(context.Background(), NewNotification{UserID: "user-2", Type: TypeSystem, Title: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(pusher.calls) != 0 {
		t.Fatalf("expected no push on failure")
	}
}

func TestListUnreadPaginated(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE \(user_id = \$1 AND read = \$2\)`).
		WithArgs("user-1", false).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT id, user_id, type .* FROM notifications WHERE .* ORDER BY created_at DESC LIMIT 2 OFFSET 2`).
		WithArgs("user-1", false).
		WillReturnRows(pgxmock.NewRows(notificationCols).
			AddRow("n-3", "user-1", "message", "New message", "hi", []byte(`{"message_id":"m-1"}`), false, nil, "", now, now))

	items, meta, err := NewService(mock, nil).List(context.Background(), "user-1", pagination.New(2, 2), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Type != TypeMessage || items[0].Data["message_id"] != "m-1" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if meta.Total != 3 || meta.Pages != 2 || meta.Page != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkReadOwnerScoped(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE notifications SET read=TRUE`).
		WithArgs("n-1", "user-2").
		WillReturnRows(pgxmock.NewRows(notificationCols))

	_, err := NewService(mock, nil).MarkRead(context.Background(), "user-2", "n-1")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for another user's notification, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`UPDATE notifications SET read=TRUE`).
		WithArgs("n-1", "user-1").
		WillReturnRows(pgxmock.NewRows(notificationCols).
			AddRow("n-1", "user-1", "system", "Welcome", "", []byte(`{}`), true, &now, "", now, now))

	n, err := NewService(mock, nil).MarkRead(context.Background(), "user-1", "n-1")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !n.Read || n.ReadAt == nil {
		t.Fatalf("expected read notification: %+v", n)
	}
}

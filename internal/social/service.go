package social

import (
	"context"
	"fmt"
	"slices"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/events"
	"backend-navi/internal/logging"
	"backend-navi/internal/notification"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/validate"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Notifier interface {
	Create(ctx context.Context, n notification.NewNotification) (notification.Notification, error)
}

// Pusher delivers realtime events to a user's open sockets.
type Pusher interface {
	Push(ctx context.Context, userID, eventType string, data any)
}

const messageColumns = "id, sender_id, recipient_id, group_id, content, type, location, attachments, read, read_at, created_at, updated_at"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db        db.Querier
	notifier  Notifier
	pusher    Pusher
	publisher events.Publisher
}

func NewService(db db.Querier, notifier Notifier, pusher Pusher, publisher events.Publisher) *Service {
	return &Service{db: db, notifier: notifier, pusher: pusher, publisher: publisher}
}

func (s *Service) Friends(ctx context.Context, userID string) ([]Friend, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.name, u.email, u.avatar, f.created_at
		FROM user_friends f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id=$1
		ORDER BY u.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := []Friend{}
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.Avatar, &f.Since); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

func (s *Service) SendRequest(ctx context.Context, userID string, in FriendRequestInput) (FriendRequest, error) {
	if err := validate.Struct(in); err != nil {
		return FriendRequest{}, err
	}
	if in.To == userID {
		return FriendRequest{}, apperr.Validation("invalid request",
			apperr.FieldError{Field: "to", Message: "cannot send a friend request to yourself"})
	}

	var friends bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_friends WHERE user_id=$1 AND friend_id=$2)
	`, userID, in.To).Scan(&friends); err != nil {
		return FriendRequest{}, fmt.Errorf("check friendship: %w", err)
	}
	if friends {
		return FriendRequest{}, apperr.Conflict("already friends")
	}

	fr := FriendRequest{ID: uuid.NewString(), FromID: userID, ToID: in.To}
	err := s.db.QueryRow(ctx, `
		INSERT INTO friend_requests (id, from_id, to_id) VALUES ($1, $2, $3)
		RETURNING status, created_at, updated_at
	`, fr.ID, fr.FromID, fr.ToID).Scan(&fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
	if err != nil {
		return FriendRequest{}, apperr.FromDB(err, "friend request")
	}

	s.notify(ctx, notification.NewNotification{
		UserID:    fr.ToID,
		Type:      notification.TypeFriendRequest,
		Title:     "New friend request",
		Message:   "You have a new friend request",
		Data:      map[string]any{"request_id": fr.ID, "from_id": fr.FromID},
		ActionURL: "/social/friends",
	})
	events.Emit(ctx, s.publisher, events.FriendRequestSent, fr)
	return fr, nil
}

// Accept marks a pending request accepted and links both users. Only the
// recipient may accept; anyone else gets NotFound.
func (s *Service) Accept(ctx context.Context, userID, requestID string) (FriendRequest, error) {
	var fr FriendRequest
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE friend_requests SET status='accepted', updated_at=now()
			WHERE id=$1 AND to_id=$2 AND status='pending'
			RETURNING id, from_id, to_id, status, created_at, updated_at
		`, requestID, userID).Scan(&fr.ID, &fr.FromID, &fr.ToID, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO user_friends (user_id, friend_id) VALUES ($1, $2), ($2, $1)
			ON CONFLICT (user_id, friend_id) DO NOTHING
		`, fr.FromID, fr.ToID)
		return err
	})
	if err != nil {
		return FriendRequest{}, apperr.FromDB(err, "friend request")
	}

	s.notify(ctx, notification.NewNotification{
		UserID:    fr.FromID,
		Type:      notification.TypeFriendRequest,
		Title:     "Friend request accepted",
		Message:   "Your friend request was accepted",
		Data:      map[string]any{"request_id": fr.ID, "friend_id": fr.ToID},
		ActionURL: "/social/friends",
	})
	events.Emit(ctx, s.publisher, events.FriendRequestAccepted, fr)
	return fr, nil
}

// Remove unlinks both directions and clears the request history between the
// two users so either may send a new request later.
func (s *Service) Remove(ctx context.Context, userID, friendID string) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM user_friends
			WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)
		`, userID, friendID)
		if err != nil {
			return fmt.Errorf("remove friend: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("friend not found")
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM friend_requests
			WHERE (from_id=$1 AND to_id=$2) OR (from_id=$2 AND to_id=$1)
		`, userID, friendID)
		return err
	})
}

// Messages lists the caller's direct and group messages, newest first.
func (s *Service) Messages(ctx context.Context, userID string, p pagination.Params, f MessageFilter) ([]Message, pagination.Meta, error) {
	filter := sq.And{sq.Eq{"deleted": false}}
	switch {
	case f.GroupID != "":
		members, err := s.groupMembers(ctx, f.GroupID)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		if !slices.Contains(members, userID) {
			return nil, pagination.Meta{}, apperr.NotFound("group not found")
		}
		filter = append(filter, sq.Eq{"group_id": f.GroupID})
	case f.With != "":
		filter = append(filter, sq.Or{
			sq.Eq{"sender_id": userID, "recipient_id": f.With},
			sq.Eq{"sender_id": f.With, "recipient_id": userID},
		})
	default:
		filter = append(filter, sq.Or{
			sq.Eq{"sender_id": userID},
			sq.Eq{"recipient_id": userID},
			sq.Expr("group_id IN (SELECT group_id FROM group_members WHERE user_id = ?)", userID),
		})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("messages").Where(filter).ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count messages: %w", err)
	}

	query, args, err := psql.Select(messageColumns).From("messages").Where(filter).
		OrderBy("created_at DESC").
		Limit(uint64(p.Limit)).Offset(p.Offset()).
		ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Meta{}, err
	}
	return messages, pagination.NewMeta(p, total), nil
}

// Send stores a message and delivers it to the recipient, or to every other
// member of the group.
func (s *Service) Send(ctx context.Context, userID string, req SendMessageRequest) (Message, error) {
	if err := validate.Struct(req); err != nil {
		return Message{}, err
	}
	if (req.RecipientID == "") == (req.GroupID == "") {
		return Message{}, apperr.Validation("invalid request",
			apperr.FieldError{Field: "recipient_id", Message: "exactly one of recipient_id or group_id is required"})
	}
	if req.Type == "" {
		req.Type = MessageText
	}
	if req.Type == MessageText && req.Content == "" {
		return Message{}, apperr.Validation("invalid request", apperr.FieldError{Field: "content", Message: "content is required"})
	}
	if req.Type == MessageLocation && req.Location == nil {
		return Message{}, apperr.Validation("invalid request", apperr.FieldError{Field: "location", Message: "location is required"})
	}

	m := Message{
		ID:          uuid.NewString(),
		SenderID:    userID,
		Content:     req.Content,
		Type:        req.Type,
		Location:    req.Location,
		Attachments: req.Attachments,
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}

	var audience []string
	if req.RecipientID != "" {
		if req.RecipientID == userID {
			return Message{}, apperr.Validation("invalid request",
				apperr.FieldError{Field: "recipient_id", Message: "cannot message yourself"})
		}
		m.RecipientID = &req.RecipientID
		audience = []string{req.RecipientID}
	} else {
		members, err := s.groupMembers(ctx, req.GroupID)
		if err != nil {
			return Message{}, err
		}
		if !slices.Contains(members, userID) {
			return Message{}, apperr.NotFound("group not found")
		}
		m.GroupID = &req.GroupID
		audience = slices.DeleteFunc(members, func(id string) bool { return id == userID })
	}

	var location []byte
	if m.Location != nil {
		var err error
		if location, err = db.JSONB(m.Location); err != nil {
			return Message{}, err
		}
	}
	attachments, err := db.JSONB(m.Attachments)
	if err != nil {
		return Message{}, err
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, group_id, content, type, location, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, m.ID, m.SenderID, m.RecipientID, m.GroupID, m.Content, m.Type, location, attachments).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Message{}, apperr.FromDB(err, "message")
	}

	for _, uid := range audience {
		if s.pusher != nil {
			s.pusher.Push(ctx, uid, MessageEventType, m)
		}
		s.notify(ctx, notification.NewNotification{
			UserID:    uid,
			Type:      notification.TypeMessage,
			Title:     "New message",
			Message:   preview(m),
			Data:      map[string]any{"message_id": m.ID, "sender_id": m.SenderID},
			ActionURL: "/social/messages",
		})
	}
	events.Emit(ctx, s.publisher, events.MessageSent, map[string]any{
		"message_id": m.ID,
		"sender_id":  m.SenderID,
		"recipients": audience,
	})
	return m, nil
}

// Groups lists the groups userID belongs to with their members.
func (s *Service) Groups(ctx context.Context, userID string) ([]Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.name, g.description, g.avatar, g.owner_id, g.is_private, g.created_at, g.updated_at
		FROM groups g JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id=$1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []Group{}
	var ids []string
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Avatar, &g.OwnerID, &g.IsPrivate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		ids = append(ids, g.ID)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Members = members[groups[i].ID]
	}
	return groups, nil
}

// CreateGroup inserts the group with its owner as admin and the listed users
// as members in one transaction.
func (s *Service) CreateGroup(ctx context.Context, userID string, req CreateGroupRequest) (Group, error) {
	if err := validate.Struct(req); err != nil {
		return Group{}, err
	}
	g := Group{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		OwnerID:     userID,
		IsPrivate:   req.IsPrivate,
	}
	invited := slices.DeleteFunc(slices.Compact(slices.Sorted(slices.Values(req.Members))), func(id string) bool {
		return id == userID
	})

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO groups (id, name, description, avatar, owner_id, is_private)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`, g.ID, g.Name, g.Description, g.Avatar, g.OwnerID, g.IsPrivate).Scan(&g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return err
		}

		owner := Member{UserID: userID, Role: RoleAdmin}
		if err := tx.QueryRow(ctx, `
			INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, 'admin')
			RETURNING joined_at
		`, g.ID, userID).Scan(&owner.JoinedAt); err != nil {
			return err
		}
		g.Members = []Member{owner}
		if len(invited) == 0 {
			return nil
		}

		rows, err := tx.Query(ctx, `
			INSERT INTO group_members (group_id, user_id, role)
			SELECT $1, unnest($2::uuid[]), 'member'
			RETURNING user_id, joined_at
		`, g.ID, invited)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m := Member{Role: RoleMember}
			if err := rows.Scan(&m.UserID, &m.JoinedAt); err != nil {
				return err
			}
			g.Members = append(g.Members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return Group{}, apperr.FromDB(err, "group")
	}
	return g, nil
}

func (s *Service) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM group_members WHERE group_id=$1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) loadMembers(ctx context.Context, groupIDs []string) (map[string][]Member, error) {
	if len(groupIDs) == 0 {
		return map[string][]Member{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members WHERE group_id = ANY($1)
		ORDER BY joined_at
	`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	defer rows.Close()

	members := map[string][]Member{}
	for rows.Next() {
		var groupID string
		var m Member
		if err := rows.Scan(&groupID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members[groupID] = append(members[groupID], m)
	}
	return members, rows.Err()
}

func (s *Service) notify(ctx context.Context, n notification.NewNotification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Create(ctx, n); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", n.UserID).Str("type", string(n.Type)).Msg("create notification")
	}
}

func preview(m Message) string {
	switch m.Type {
	case MessageLocation:
		return "Shared a location"
	case MessageImage:
		return "Sent an image"
	case MessageRoute:
		return "Shared a route"
	}
	if r := []rune(m.Content); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return m.Content
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	var location, attachments []byte
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.GroupID, &m.Content, &m.Type, &location, &attachments,
		&m.Read, &m.ReadAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Message{}, err
	}
	if len(location) > 0 {
		if err := db.ScanJSONB(location, &m.Location); err != nil {
			return Message{}, err
		}
	}
	if err := db.ScanJSONB(attachments, &m.Attachments); err != nil {
		return Message{}, err
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	return m, nil
}

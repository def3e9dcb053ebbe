package notification

import "time"

type Type string

const (
	TypeFriendRequest Type = "friend_request"
	TypeMessage       Type = "message"
	TypeTripInvite    Type = "trip_invite"
	TypeAchievement   Type = "achievement"
	TypeSystem        Type = "system"
)

// EventType is the realtime event name pushed to the recipient's sockets.
const EventType = "notification"

type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	ActionURL string         `json:"action_url,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type NewNotification struct {
	UserID    string
	Type      Type
	Title     string
	Message   string
	Data      map[string]any
	ActionURL string
}

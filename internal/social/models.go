package social

import (
	"time"

	"backend-navi/internal/shared/geo"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
)

const (
	MessageText     = "text"
	MessageLocation = "location"
	MessageImage    = "image"
	MessageRoute    = "route"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// MessageEventType is the realtime event carrying a new message.
const MessageEventType = "message"

type Friend struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Avatar string    `json:"avatar"`
	Since  time.Time `json:"since"`
}

type FriendRequest struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FriendRequestInput struct {
	To string `json:"to" validate:"required,uuid"`
}

type Attachment struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"sender_id"`
	RecipientID *string      `json:"recipient_id,omitempty"`
	GroupID     *string      `json:"group_id,omitempty"`
	Content     string       `json:"content"`
	Type        string       `json:"type"`
	Location    *geo.Point   `json:"location,omitempty"`
	Attachments []Attachment `json:"attachments"`
	Read        bool         `json:"read"`
	ReadAt      *time.Time   `json:"read_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SendMessageRequest addresses either one recipient or one group.
type SendMessageRequest struct {
	RecipientID string       `json:"recipient_id" validate:"omitempty,uuid"`
	GroupID     string       `json:"group_id" validate:"omitempty,uuid"`
	Content     string       `json:"content" validate:"max=2000"`
	Type        string       `json:"type" validate:"omitempty,oneof=text location image route"`
	Location    *geo.Point   `json:"location"`
	Attachments []Attachment `json:"attachments" validate:"max=10,dive"`
}

type MessageFilter struct {
	// With narrows to the direct conversation with this user.
	With string
	// GroupID narrows to one group the caller belongs to.
	GroupID string
}

type Member struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar"`
	OwnerID     string    `json:"owner_id"`
	IsPrivate   bool      `json:"is_private"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Avatar      string   `json:"avatar" validate:"omitempty,url"`
	IsPrivate   bool     `json:"is_private"`
	Members     []string `json:"members" validate:"max=100,dive,uuid"`
}

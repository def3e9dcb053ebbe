package user

import "time"

type NotificationPrefs struct {
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type Preferences struct {
	Language      string            `json:"language"`
	Units         string            `json:"units"`
	Theme         string            `json:"theme"`
	VoiceEnabled  bool              `json:"voice_enabled"`
	Notifications NotificationPrefs `json:"notifications"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Language:      "en",
		Units:         "metric",
		Theme:         "auto",
		VoiceEnabled:  true,
		Notifications: NotificationPrefs{Push: true, Email: true},
	}
}

type Stats struct {
	TotalTrips    int     `json:"total_trips"`
	TotalDistance float64 `json:"total_distance"`
	TotalDuration float64 `json:"total_duration"`
	Points        int     `json:"points"`
}

// Summary is the public view of another user.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

type Profile struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone,omitempty"`
	Avatar        string      `json:"avatar,omitempty"`
	EmailVerified bool        `json:"email_verified"`
	Preferences   Preferences `json:"preferences"`
	Stats         Stats       `json:"stats"`
	Friends       []Summary   `json:"friends"`
	LastLogin     *time.Time  `json:"last_login,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type UpdateProfileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone  *string `json:"phone" validate:"omitempty,max=30"`
	Avatar *string `json:"avatar" validate:"omitempty,url"`
}

type NotificationPrefsPatch struct {
	Push  *bool `json:"push"`
	Email *bool `json:"email"`
	SMS   *bool `json:"sms"`
}

type UpdatePreferencesRequest struct {
	Language      *string                 `json:"language" validate:"omitempty,oneof=en es fr de it pt ja ko zh"`
	Units         *string                 `json:"units" validate:"omitempty,oneof=metric imperial"`
	Theme         *string                 `json:"theme" validate:"omitempty,oneof=light dark auto"`
	VoiceEnabled  *bool                   `json:"voice_enabled"`
	Notifications *NotificationPrefsPatch `json:"notifications"`
}

package user

import (
	"context"
	"fmt"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/shared/validate"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, name, phone, avatar, email_verified, preferences,
		       total_trips, total_distance, total_duration, points,
		       last_login, created_at, updated_at
		FROM users WHERE id=$1 AND is_active
	`, userID)

	var p Profile
	var prefs []byte
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.Avatar, &p.EmailVerified, &prefs,
		&p.Stats.TotalTrips, &p.Stats.TotalDistance, &p.Stats.TotalDuration, &p.Stats.Points,
		&p.LastLogin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, apperr.FromDB(err, "user")
	}
	p.Preferences = DefaultPreferences()
	if err := db.ScanJSONB(prefs, &p.Preferences); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Profile returns the user with the friend list populated.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	friends, err := s.Friends(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p.Friends = friends
	return p, nil
}

func (s *Service) Friends(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.name, u.email, u.avatar
		FROM user_friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id=$1
		ORDER BY u.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := []Summary{}
	for rows.Next() {
		var f Summary
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.Avatar); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (Profile, error) {
	if err := validate.Struct(req); err != nil {
		return Profile{}, err
	}
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Avatar != nil {
		p.Avatar = *req.Avatar
	}

	err = s.db.QueryRow(ctx, `
		UPDATE users SET name=$2, phone=$3, avatar=$4, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, userID, p.Name, p.Phone, p.Avatar).Scan(&p.UpdatedAt)
	if err != nil {
		return Profile{}, apperr.FromDB(err, "user")
	}
	return p, nil
}

// UpdatePreferences merges the given fields into the stored preferences.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, req UpdatePreferencesRequest) (Preferences, error) {
	if err := validate.Struct(req); err != nil {
		return Preferences{}, err
	}
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	prefs := p.Preferences
	if req.Language != nil {
		prefs.Language = *req.Language
	}
	if req.Units != nil {
		prefs.Units = *req.Units
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.VoiceEnabled != nil {
		prefs.VoiceEnabled = *req.VoiceEnabled
	}
	if n := req.Notifications; n != nil {
		if n.Push != nil {
			prefs.Notifications.Push = *n.Push
		}
		if n.Email != nil {
			prefs.Notifications.Email = *n.Email
		}
		if n.SMS != nil {
			prefs.Notifications.SMS = *n.SMS
		}
	}

	raw, err := db.JSONB(prefs)
	if err != nil {
		return Preferences{}, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE users SET preferences=$2, updated_at=now() WHERE id=$1`, userID, raw)
	if err != nil {
		return Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Preferences{}, apperr.NotFound("user not found")
	}
	return prefs, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT total_trips, total_distance, total_duration, points
		FROM users WHERE id=$1
	`, userID).Scan(&st.TotalTrips, &st.TotalDistance, &st.TotalDuration, &st.Points)
	if err != nil {
		return Stats{}, apperr.FromDB(err, "user")
	}
	return st, nil
}

package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/events"
	"backend-navi/internal/shared/validate"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	alertColumns = `id, type, ST_X(location::geometry), ST_Y(location::geometry), description, severity, reported_by,
	confirmed, expired, expires_at, created_at, updated_at`

	DefaultAlertRadius = 10000.0
	alertLimit         = 100
)

// NearbyAlerts returns live alerts within q.Radius meters, nearest first.
// Alerts flagged expired or past expires_at are never returned.
func (s *Service) NearbyAlerts(ctx context.Context, q AlertQuery) ([]SafetyAlert, error) {
	if q.Radius <= 0 {
		q.Radius = DefaultAlertRadius
	}
	const origin = "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography"

	b := psql.Select(alertColumns).
		Column("ST_Distance(location, "+origin+") AS distance", q.Lng, q.Lat).
		From("safety_alerts").
		Where("ST_DWithin(location, "+origin+", ?)", q.Lng, q.Lat, q.Radius).
		Where(sq.Eq{"expired": false}).
		Where("(expires_at IS NULL OR expires_at > now())")
	if q.Type != "" {
		b = b.Where(sq.Eq{"type": q.Type})
	}
	query, args, err := b.OrderBy("distance").Limit(alertLimit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build nearby alerts: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearby alerts: %w", err)
	}
	defer rows.Close()

	alerts := []SafetyAlert{}
	for rows.Next() {
		var d float64
		a, err := scanAlert(rows, &d)
		if err != nil {
			return nil, err
		}
		a.Distance = &d
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Service) ReportAlert(ctx context.Context, userID string, req AlertRequest) (SafetyAlert, error) {
	if err := validate.Struct(req); err != nil {
		return SafetyAlert{}, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return SafetyAlert{}, apperr.Validation("invalid request",
			apperr.FieldError{Field: "expires_at", Message: "expires_at must be in the future"})
	}
	a := SafetyAlert{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Location:    *req.Location,
		Description: req.Description,
		Severity:    req.Severity,
		ReportedBy:  userID,
		ExpiresAt:   req.ExpiresAt,
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO safety_alerts (id, type, location, description, severity, reported_by, expires_at)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.Type, a.Location.Lng, a.Location.Lat, a.Description, a.Severity, a.ReportedBy, a.ExpiresAt).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return SafetyAlert{}, apperr.FromDB(err, "safety alert")
	}

	events.Emit(ctx, s.publisher, events.SafetyAlertReported, a)
	return a, nil
}

// ConfirmAlert bumps the confirmation count of a live alert.
func (s *Service) ConfirmAlert(ctx context.Context, id string) (SafetyAlert, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE safety_alerts SET confirmed=confirmed+1, updated_at=now()
		WHERE id=$1 AND NOT expired AND (expires_at IS NULL OR expires_at > now())
		RETURNING `+alertColumns, id)
	a, err := scanAlert(row)
	if err != nil {
		return SafetyAlert{}, apperr.FromDB(err, "safety alert")
	}
	return a, nil
}

// ExpireAlert flags an alert expired. Only its reporter may do so.
func (s *Service) ExpireAlert(ctx context.Context, userID, id string) (SafetyAlert, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE safety_alerts SET expired=TRUE, updated_at=now()
		WHERE id=$1 AND reported_by=$2
		RETURNING `+alertColumns, id, userID)
	a, err := scanAlert(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return SafetyAlert{}, fmt.Errorf("expire alert: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM safety_alerts WHERE id=$1)`, id).Scan(&exists); err != nil {
		return SafetyAlert{}, fmt.Errorf("check alert: %w", err)
	}
	if exists {
		return SafetyAlert{}, apperr.Forbidden("only the reporter can expire this alert")
	}
	return SafetyAlert{}, apperr.NotFound("safety alert not found")
}

func scanAlert(row pgx.Row, extra ...any) (SafetyAlert, error) {
	var a SafetyAlert
	dest := []any{&a.ID, &a.Type, &a.Location.Lng, &a.Location.Lat, &a.Description, &a.Severity, &a.ReportedBy,
		&a.Confirmed, &a.Expired, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return SafetyAlert{}, err
	}
	return a, nil
}

package maps

import (
	"context"
	"fmt"
	"slices"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/shared/validate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const offlineColumns = "id, user_id, name, region, bounds, size, downloaded_at, last_updated, version, status, created_at, updated_at"

// transitions lists the statuses each status may move to.
var transitions = map[string][]string{
	StatusDownloading: {StatusCompleted, StatusFailed, StatusOutdated},
	StatusCompleted:   {StatusOutdated},
}

func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

func (s *Service) OfflineMaps(ctx context.Context, userID string) ([]OfflineMap, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+offlineColumns+` FROM offline_maps
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list offline maps: %w", err)
	}
	defer rows.Close()

	maps := []OfflineMap{}
	for rows.Next() {
		m, err := scanOffline(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// CreateOfflineMap records a downloaded (or downloading) region.
func (s *Service) CreateOfflineMap(ctx context.Context, userID string, req OfflineMapRequest) (OfflineMap, error) {
	if err := validate.Struct(req); err != nil {
		return OfflineMap{}, err
	}
	if req.Bounds.Northeast.Lat < req.Bounds.Southwest.Lat {
		return OfflineMap{}, apperr.Validation("invalid request",
			apperr.FieldError{Field: "bounds", Message: "northeast must be north of southwest"})
	}
	m := OfflineMap{
		ID:      uuid.NewString(),
		UserID:  userID,
		Name:    req.Name,
		Region:  req.Region,
		Bounds:  *req.Bounds,
		Size:    req.Size,
		Version: req.Version,
		Status:  req.Status,
	}
	if m.Status == "" {
		m.Status = StatusCompleted
	}
	if m.Status == StatusCompleted {
		now := time.Now().UTC()
		m.DownloadedAt = &now
	}
	bounds, err := db.JSONB(m.Bounds)
	if err != nil {
		return OfflineMap{}, err
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO offline_maps (id, user_id, name, region, bounds, size, downloaded_at, version, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, m.ID, m.UserID, m.Name, m.Region, bounds, m.Size, m.DownloadedAt, m.Version, m.Status).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return OfflineMap{}, apperr.FromDB(err, "offline map")
	}
	return m, nil
}

// SetOfflineStatus moves an owned map to a new status. Completing stamps
// downloaded_at and last_updated.
func (s *Service) SetOfflineStatus(ctx context.Context, userID, id string, req StatusRequest) (OfflineMap, error) {
	if err := validate.Struct(req); err != nil {
		return OfflineMap{}, err
	}
	var m OfflineMap
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `
			SELECT status FROM offline_maps WHERE id=$1 AND user_id=$2 FOR UPDATE
		`, id, userID).Scan(&current); err != nil {
			return err
		}
		if !CanTransition(current, req.Status) {
			return apperr.Validation("invalid request", apperr.FieldError{
				Field:   "status",
				Message: fmt.Sprintf("cannot change status from %s to %s", current, req.Status),
			})
		}
		row := tx.QueryRow(ctx, `
			UPDATE offline_maps
			SET status=$3,
			    downloaded_at=CASE WHEN $3 = 'completed' THEN COALESCE(downloaded_at, now()) ELSE downloaded_at END,
			    last_updated=CASE WHEN $3 = 'completed' THEN now() ELSE last_updated END,
			    updated_at=now()
			WHERE id=$1 AND user_id=$2
			RETURNING `+offlineColumns, id, userID, req.Status)
		var err error
		m, err = scanOffline(row)
		return err
	})
	if err != nil {
		return OfflineMap{}, apperr.FromDB(err, "offline map")
	}
	return m, nil
}

func (s *Service) DeleteOfflineMap(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM offline_maps WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete offline map: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("offline map not found")
	}
	return nil
}

func scanOffline(row pgx.Row) (OfflineMap, error) {
	var m OfflineMap
	var bounds []byte
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Region, &bounds, &m.Size, &m.DownloadedAt, &m.LastUpdated,
		&m.Version, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return OfflineMap{}, err
	}
	if err := db.ScanJSONB(bounds, &m.Bounds); err != nil {
		return OfflineMap{}, err
	}
	return m, nil
}

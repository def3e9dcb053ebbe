package trip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/events"
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/validate"
	"backend-navi/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Exporter stores rendered exports. *storage.Service implements it.
type Exporter interface {
	Put(ctx context.Context, ownerID string, f storage.File) (storage.Object, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const (
	columns = `id, user_id, route_id, name, start_time, end_time, duration, distance, average_speed, max_speed,
	fuel_used, carbon_footprint, path, stats, incidents, photos, is_completed, shared_with, created_at, updated_at`
	exportTTL = time.Hour
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db        db.Querier
	exporter  Exporter
	publisher events.Publisher
}

func NewService(db db.Querier, exporter Exporter, publisher events.Publisher) *Service {
	return &Service{db: db, exporter: exporter, publisher: publisher}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Trip, error) {
	if err := validate.Struct(req); err != nil {
		return Trip{}, err
	}
	t := Trip{
		ID:              uuid.NewString(),
		UserID:          userID,
		RouteID:         req.RouteID,
		Name:            req.Name,
		StartTime:       *req.StartTime,
		EndTime:         req.EndTime,
		Path:            req.Path,
		MaxSpeed:        req.MaxSpeed,
		FuelUsed:        req.FuelUsed,
		CarbonFootprint: req.CarbonFootprint,
		Incidents:       req.Incidents,
		Photos:          req.Photos,
		IsCompleted:     req.IsCompleted,
		SharedWith:      req.SharedWith,
	}
	if req.Stats != nil {
		t.Stats = *req.Stats
	}
	if t.SharedWith == nil {
		t.SharedWith = []string{}
	}
	if err := derive(&t); err != nil {
		return Trip{}, err
	}
	args, err := encode(t)
	if err != nil {
		return Trip{}, err
	}

	err = s.withCompletion(ctx, t.IsCompleted, &t, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO trips (id, user_id, route_id, name, start_time, end_time, duration, distance, average_speed,
			                   max_speed, fuel_used, carbon_footprint, path, stats, incidents, photos, is_completed, shared_with)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			RETURNING created_at, updated_at
		`, t.ID, t.UserID, t.RouteID, t.Name, t.StartTime, t.EndTime, t.Duration, t.Distance, t.AverageSpeed,
			t.MaxSpeed, t.FuelUsed, t.CarbonFootprint, args.path, args.stats, args.incidents, args.photos, t.IsCompleted, t.SharedWith).
			Scan(&t.CreatedAt, &t.UpdatedAt)
	})
	if err != nil {
		return Trip{}, apperr.FromDB(err, "trip")
	}
	return t, nil
}

// Get returns a trip owned by or shared with userID.
func (s *Service) Get(ctx context.Context, userID, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+columns+` FROM trips
		WHERE id=$1 AND (user_id=$2 OR $2::uuid = ANY(shared_with))
	`, id, userID)
	t, err := scan(row)
	if err != nil {
		return Trip{}, apperr.FromDB(err, "trip")
	}
	return t, nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+columns+` FROM trips WHERE id=$1 AND user_id=$2`, id, userID)
	t, err := scan(row)
	if err != nil {
		return Trip{}, apperr.FromDB(err, "trip")
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, userID string, p pagination.Params, f ListFilter) ([]Trip, pagination.Meta, error) {
	filter := sq.And{sq.Eq{"user_id": userID}}
	if f.Completed != nil {
		filter = append(filter, sq.Eq{"is_completed": *f.Completed})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("trips").Where(filter).ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count trips: %w", err)
	}

	query, args, err := psql.Select(columns).From("trips").Where(filter).
		OrderBy("start_time DESC").
		Limit(uint64(p.Limit)).Offset(p.Offset()).
		ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Meta{}, err
	}
	return trips, pagination.NewMeta(p, total), nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req UpdateRequest) (Trip, error) {
	if err := validate.Struct(req); err != nil {
		return Trip{}, err
	}
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return Trip{}, err
	}
	wasCompleted := t.IsCompleted
	if wasCompleted && req.IsCompleted != nil && !*req.IsCompleted {
		return Trip{}, apperr.Validation("invalid request",
			apperr.FieldError{Field: "is_completed", Message: "a completed trip cannot be reopened"})
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.StartTime != nil {
		t.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		t.EndTime = req.EndTime
	}
	if req.Path != nil {
		t.Path = *req.Path
	}
	if req.MaxSpeed != nil {
		t.MaxSpeed = *req.MaxSpeed
	}
	if req.FuelUsed != nil {
		t.FuelUsed = *req.FuelUsed
	}
	if req.CarbonFootprint != nil {
		t.CarbonFootprint = *req.CarbonFootprint
	}
	if req.Stats != nil {
		t.Stats = *req.Stats
	}
	if req.Incidents != nil {
		t.Incidents = *req.Incidents
	}
	if req.Photos != nil {
		t.Photos = *req.Photos
	}
	if req.IsCompleted != nil {
		t.IsCompleted = *req.IsCompleted
	}
	if req.SharedWith != nil {
		t.SharedWith = *req.SharedWith
	}
	if err := derive(&t); err != nil {
		return Trip{}, err
	}

	completing := t.IsCompleted && !wasCompleted
	err = s.withCompletion(ctx, completing, &t, func(q db.Querier) error {
		err := s.write(ctx, q, &t, completing)
		if completing && errors.Is(err, pgx.ErrNoRows) {
			// another request completed it after we read the row
			return apperr.Conflict("trip is already completed")
		}
		return err
	})
	if err != nil {
		return Trip{}, apperr.FromDB(err, "trip")
	}
	return t, nil
}

// AddPoints appends positions to the path and re-derives the totals.
func (s *Service) AddPoints(ctx context.Context, userID, id string, req PointsRequest) (Trip, error) {
	if err := validate.Struct(req); err != nil {
		return Trip{}, err
	}
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return Trip{}, err
	}
	if t.IsCompleted {
		return Trip{}, apperr.Validation("trip is already completed")
	}
	for _, p := range req.Points {
		t.Path = append(t.Path, []float64{p.Lng, p.Lat})
	}
	if req.Timestamp != nil {
		t.EndTime = req.Timestamp
	}
	if err := derive(&t); err != nil {
		return Trip{}, err
	}
	if err := s.write(ctx, s.db, &t, false); err != nil {
		return Trip{}, apperr.FromDB(err, "trip")
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("trip not found")
	}
	return nil
}

// Export renders the trip, stores the file and returns a signed link to it.
func (s *Service) Export(ctx context.Context, userID, id string, req ExportRequest) (Export, error) {
	if err := validate.Struct(req); err != nil {
		return Export{}, err
	}
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return Export{}, err
	}

	var body []byte
	var contentType string
	switch req.Format {
	case FormatGPX:
		body, err = renderGPX(t)
		contentType = "application/gpx+xml"
	default:
		body, err = renderCSV(t)
		contentType = "text/csv"
	}
	if err != nil {
		return Export{}, err
	}

	obj, err := s.exporter.Put(ctx, userID, storage.File{
		Name:        fmt.Sprintf("trip-%s.%s", t.ID, req.Format),
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return Export{}, err
	}
	link, err := s.exporter.SignedURL(ctx, obj.Key, exportTTL)
	if err != nil {
		return Export{}, err
	}
	return Export{Format: req.Format, URL: link, ExpiresAt: time.Now().Add(exportTTL).UTC()}, nil
}

// write saves every mutable column. With onlyOpen set the row must still be
// open, so a trip is completed (and credited) at most once.
func (s *Service) write(ctx context.Context, q db.Querier, t *Trip, onlyOpen bool) error {
	args, err := encode(*t)
	if err != nil {
		return err
	}
	where := "id=$1 AND user_id=$2"
	if onlyOpen {
		where += " AND is_completed = FALSE"
	}
	return q.QueryRow(ctx, `
		UPDATE trips
		SET name=$3, start_time=$4, end_time=$5, duration=$6, distance=$7, average_speed=$8, max_speed=$9,
		    fuel_used=$10, carbon_footprint=$11, path=$12, stats=$13, incidents=$14, photos=$15,
		    is_completed=$16, shared_with=$17, updated_at=now()
		WHERE `+where+`
		RETURNING updated_at
	`, t.ID, t.UserID, t.Name, t.StartTime, t.EndTime, t.Duration, t.Distance, t.AverageSpeed, t.MaxSpeed,
		t.FuelUsed, t.CarbonFootprint, args.path, args.stats, args.incidents, args.photos, t.IsCompleted, t.SharedWith).
		Scan(&t.UpdatedAt)
}

// withCompletion runs fn and, when the trip is being completed, credits the
// owner's stats in the same transaction.
func (s *Service) withCompletion(ctx context.Context, completing bool, t *Trip, fn func(q db.Querier) error) error {
	if !completing {
		return fn(s.db)
	}
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET total_trips=total_trips+1, total_distance=total_distance+$2, total_duration=total_duration+$3,
			    points=points+$4, updated_at=now()
			WHERE id=$1
		`, t.UserID, t.Distance, t.Duration, pointsFor(*t))
		return err
	})
	if err != nil {
		return err
	}
	events.Emit(ctx, s.publisher, events.TripCompleted, map[string]any{
		"trip_id":  t.ID,
		"user_id":  t.UserID,
		"distance": t.Distance,
		"duration": t.Duration,
	})
	return nil
}

// derive recomputes distance, duration and average speed.
func derive(t *Trip) error {
	if !geo.ValidPath(t.Path) {
		return apperr.Validation("invalid request", apperr.FieldError{Field: "path", Message: "path must be a list of [lng, lat] pairs"})
	}
	if t.EndTime != nil && t.EndTime.Before(t.StartTime) {
		return apperr.Validation("invalid request", apperr.FieldError{Field: "end_time", Message: "end_time must not be before start_time"})
	}
	t.Distance = math.Round(geo.PathLengthM(t.Path)*10) / 10
	t.Duration = 0
	if t.EndTime != nil {
		t.Duration = t.EndTime.Sub(t.StartTime).Seconds()
	}
	t.AverageSpeed = 0
	if t.Duration > 0 {
		t.AverageSpeed = math.Round((t.Distance/1000)/(t.Duration/3600)*100) / 100
	}
	return nil
}

// pointsFor awards one point per completed kilometer.
func pointsFor(t Trip) int {
	return int(t.Distance / 1000)
}

type encoded struct {
	path, stats, incidents, photos []byte
}

func encode(t Trip) (encoded, error) {
	var e encoded
	var err error
	path := t.Path
	if path == nil {
		path = [][]float64{}
	}
	incidents := t.Incidents
	if incidents == nil {
		incidents = []Incident{}
	}
	photos := t.Photos
	if photos == nil {
		photos = []Photo{}
	}
	if e.path, err = db.JSONB(path); err != nil {
		return encoded{}, err
	}
	if e.stats, err = db.JSONB(t.Stats); err != nil {
		return encoded{}, err
	}
	if e.incidents, err = db.JSONB(incidents); err != nil {
		return encoded{}, err
	}
	if e.photos, err = db.JSONB(photos); err != nil {
		return encoded{}, err
	}
	return e, nil
}

func scan(row pgx.Row) (Trip, error) {
	var t Trip
	var path, stats, incidents, photos []byte
	err := row.Scan(&t.ID, &t.UserID, &t.RouteID, &t.Name, &t.StartTime, &t.EndTime, &t.Duration, &t.Distance,
		&t.AverageSpeed, &t.MaxSpeed, &t.FuelUsed, &t.CarbonFootprint, &path, &stats, &incidents, &photos,
		&t.IsCompleted, &t.SharedWith, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Trip{}, err
	}
	if err := db.ScanJSONB(path, &t.Path); err != nil {
		return Trip{}, err
	}
	if err := db.ScanJSONB(stats, &t.Stats); err != nil {
		return Trip{}, err
	}
	if err := db.ScanJSONB(incidents, &t.Incidents); err != nil {
		return Trip{}, err
	}
	if err := db.ScanJSONB(photos, &t.Photos); err != nil {
		return Trip{}, err
	}
	if t.SharedWith == nil {
		t.SharedWith = []string{}
	}
	return t, nil
}

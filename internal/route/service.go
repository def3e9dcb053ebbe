package route

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/mapbox"
	"backend-navi/internal/notification"
	"backend-navi/internal/shared/geo"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/validate"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Router is the subset of the Mapbox client used for route planning.
type Router interface {
	Directions(ctx context.Context, req mapbox.DirectionsRequest) (mapbox.DirectionsResult, error)
	Optimize(ctx context.Context, req mapbox.OptimizeRequest) (mapbox.OptimizationResult, error)
	DistanceMatrix(ctx context.Context, origins, destinations []geo.Point) (mapbox.Matrix, error)
}

type Notifier interface {
	Create(ctx context.Context, n notification.NewNotification) (notification.Notification, error)
}

const columns = `id, user_id, name, origin, destination, waypoints, distance, duration, geometry,
	route_type, transport_mode, traffic_enabled, is_saved, is_completed, completed_at, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db       db.Querier
	router   Router
	notifier Notifier
}

func NewService(db db.Querier, router Router, notifier Notifier) *Service {
	return &Service{db: db, router: router, notifier: notifier}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Route, error) {
	if err := validate.Struct(req); err != nil {
		return Route{}, err
	}
	r := Route{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		Origin:         *req.Origin,
		Destination:    *req.Destination,
		Waypoints:      sortWaypoints(req.Waypoints),
		Distance:       req.Distance,
		Duration:       req.Duration,
		Geometry:       req.Geometry,
		RouteType:      TypeFastest,
		TransportMode:  ModeDriving,
		TrafficEnabled: true,
		IsSaved:        req.IsSaved,
	}
	if req.RouteType != "" {
		r.RouteType = Type(req.RouteType)
	}
	if req.TransportMode != "" {
		r.TransportMode = req.TransportMode
	}
	if req.TrafficEnabled != nil {
		r.TrafficEnabled = *req.TrafficEnabled
	}
	if err := checkGeometry(r.Geometry); err != nil {
		return Route{}, err
	}

	args, err := encode(r)
	if err != nil {
		return Route{}, err
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO routes (id, user_id, name, origin, destination, waypoints, distance, duration, geometry,
		                    route_type, transport_mode, traffic_enabled, is_saved)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`, r.ID, r.UserID, r.Name, args.origin, args.destination, args.waypoints, r.Distance, r.Duration, args.geometry,
		string(r.RouteType), r.TransportMode, r.TrafficEnabled, r.IsSaved).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Route{}, apperr.FromDB(err, "route")
	}
	return r, nil
}

// Get returns the route only when userID owns it.
func (s *Service) Get(ctx context.Context, userID, id string) (Route, error) {
	row := s.db.QueryRow(ctx, `SELECT `+columns+` FROM routes WHERE id=$1 AND user_id=$2`, id, userID)
	r, err := scan(row)
	if err != nil {
		return Route{}, apperr.FromDB(err, "route")
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, userID string, p pagination.Params, f ListFilter) ([]Route, pagination.Meta, error) {
	filter := sq.And{sq.Eq{"user_id": userID}}
	if f.Saved != nil {
		filter = append(filter, sq.Eq{"is_saved": *f.Saved})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("routes").Where(filter).ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count routes: %w", err)
	}

	query, args, err := psql.Select(columns).From("routes").Where(filter).
		OrderBy("created_at DESC").
		Limit(uint64(p.Limit)).Offset(p.Offset()).
		ToSql()
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	routes := []Route{}
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Meta{}, err
	}
	return routes, pagination.NewMeta(p, total), nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req UpdateRequest) (Route, error) {
	if err := validate.Struct(req); err != nil {
		return Route{}, err
	}
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return Route{}, err
	}

	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Origin != nil {
		r.Origin = *req.Origin
	}
	if req.Destination != nil {
		r.Destination = *req.Destination
	}
	if req.Waypoints != nil {
		r.Waypoints = sortWaypoints(*req.Waypoints)
	}
	if req.Distance != nil {
		r.Distance = *req.Distance
	}
	if req.Duration != nil {
		r.Duration = *req.Duration
	}
	if req.Geometry != nil {
		r.Geometry = *req.Geometry
	}
	if req.RouteType != nil {
		r.RouteType = Type(*req.RouteType)
	}
	if req.TransportMode != nil {
		r.TransportMode = *req.TransportMode
	}
	if req.TrafficEnabled != nil {
		r.TrafficEnabled = *req.TrafficEnabled
	}
	if req.IsSaved != nil {
		r.IsSaved = *req.IsSaved
	}
	completing := req.IsCompleted != nil && *req.IsCompleted && !r.IsCompleted
	if req.IsCompleted != nil {
		r.IsCompleted = *req.IsCompleted
		if !r.IsCompleted {
			r.CompletedAt = nil
		}
	}
	if err := checkGeometry(r.Geometry); err != nil {
		return Route{}, err
	}

	args, err := encode(r)
	if err != nil {
		return Route{}, err
	}
	err = s.db.QueryRow(ctx, `
		UPDATE routes
		SET name=$3, origin=$4, destination=$5, waypoints=$6, distance=$7, duration=$8, geometry=$9,
		    route_type=$10, transport_mode=$11, traffic_enabled=$12, is_saved=$13, is_completed=$14,
		    completed_at=CASE WHEN $15 THEN now() WHEN $14 THEN completed_at ELSE NULL END,
		    updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING completed_at, updated_at
	`, r.ID, userID, r.Name, args.origin, args.destination, args.waypoints, r.Distance, r.Duration, args.geometry,
		string(r.RouteType), r.TransportMode, r.TrafficEnabled, r.IsSaved, r.IsCompleted, completing).
		Scan(&r.CompletedAt, &r.UpdatedAt)
	if err != nil {
		return Route{}, apperr.FromDB(err, "route")
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM routes WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("route not found")
	}
	return nil
}

// Share notifies each listed friend about the route. Every recipient must
// be a friend of the owner.
func (s *Service) Share(ctx context.Context, userID, id string, req ShareRequest) (int, error) {
	if err := validate.Struct(req); err != nil {
		return 0, err
	}
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT friend_id FROM user_friends WHERE user_id=$1 AND friend_id = ANY($2::uuid[])
	`, userID, req.UserIDs)
	if err != nil {
		return 0, fmt.Errorf("load friends: %w", err)
	}
	friends := map[string]bool{}
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return 0, err
		}
		friends[fid] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var strangers []string
	for _, uid := range req.UserIDs {
		if !friends[uid] {
			strangers = append(strangers, uid)
		}
	}
	if len(strangers) > 0 {
		return 0, apperr.Validation("routes can only be shared with friends",
			apperr.FieldError{Field: "user_ids", Message: "not a friend: " + strings.Join(strangers, ", ")})
	}

	name := r.Name
	if name == "" {
		name = "a route"
	}
	shared := 0
	for _, uid := range slices.Compact(slices.Sorted(slices.Values(req.UserIDs))) {
		_, err := s.notifier.Create(ctx, notification.NewNotification{
			UserID:    uid,
			Type:      notification.TypeMessage,
			Title:     "Route shared with you",
			Message:   "A friend shared " + name,
			Data:      map[string]any{"route_id": r.ID, "shared_by": userID},
			ActionURL: "/routes/" + r.ID,
		})
		if err != nil {
			return shared, err
		}
		shared++
	}
	return shared, nil
}

func (s *Service) Directions(ctx context.Context, req mapbox.DirectionsRequest) (mapbox.DirectionsResult, error) {
	if err := validate.Struct(req); err != nil {
		return mapbox.DirectionsResult{}, err
	}
	return s.router.Directions(ctx, req)
}

func (s *Service) Optimize(ctx context.Context, req mapbox.OptimizeRequest) (mapbox.OptimizationResult, error) {
	if err := validate.Struct(req); err != nil {
		return mapbox.OptimizationResult{}, err
	}
	return s.router.Optimize(ctx, req)
}

func (s *Service) Matrix(ctx context.Context, req MatrixRequest) (mapbox.Matrix, error) {
	if err := validate.Struct(req); err != nil {
		return mapbox.Matrix{}, err
	}
	return s.router.DistanceMatrix(ctx, req.Origins, req.Destinations)
}

// sortWaypoints orders by Order. When no order was given the input
// position becomes the order.
func sortWaypoints(in []Stop) []Stop {
	out := slices.Clone(in)
	if out == nil {
		return []Stop{}
	}
	ordered := slices.ContainsFunc(out, func(s Stop) bool { return s.Order != 0 })
	if !ordered {
		for i := range out {
			out[i].Order = i
		}
		return out
	}
	slices.SortStableFunc(out, func(a, b Stop) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

func checkGeometry(g [][]float64) error {
	if !geo.ValidPath(g) {
		return apperr.Validation("invalid request", apperr.FieldError{Field: "geometry", Message: "geometry must be a list of [lng, lat] pairs"})
	}
	return nil
}

type encoded struct {
	origin, destination, waypoints, geometry []byte
}

func encode(r Route) (encoded, error) {
	var e encoded
	var err error
	if e.origin, err = db.JSONB(r.Origin); err != nil {
		return encoded{}, err
	}
	if e.destination, err = db.JSONB(r.Destination); err != nil {
		return encoded{}, err
	}
	if e.waypoints, err = db.JSONB(r.Waypoints); err != nil {
		return encoded{}, err
	}
	geometry := r.Geometry
	if geometry == nil {
		geometry = [][]float64{}
	}
	if e.geometry, err = db.JSONB(geometry); err != nil {
		return encoded{}, err
	}
	return e, nil
}

func scan(row pgx.Row) (Route, error) {
	var r Route
	var routeType string
	var origin, destination, waypoints, geometry []byte
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &origin, &destination, &waypoints, &r.Distance, &r.Duration, &geometry,
		&routeType, &r.TransportMode, &r.TrafficEnabled, &r.IsSaved, &r.IsCompleted, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Route{}, err
	}
	r.RouteType = Type(routeType)
	for _, f := range []struct {
		raw []byte
		dst any
	}{{origin, &r.Origin}, {destination, &r.Destination}, {waypoints, &r.Waypoints}, {geometry, &r.Geometry}} {
		if err := db.ScanJSONB(f.raw, f.dst); err != nil {
			return Route{}, err
		}
	}
	if r.Waypoints == nil {
		r.Waypoints = []Stop{}
	}
	return r, nil
}

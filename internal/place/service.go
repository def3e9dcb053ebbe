package place

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/shared/pagination"
	"backend-navi/internal/shared/validate"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	columns = `p.id, p.name, ST_X(p.location::geometry), ST_Y(p.location::geometry), p.address, p.category, p.phone,
	p.website, p.hours, p.rating_average, p.rating_count, p.photos, p.amenities, p.price_level, p.verified, p.added_by,
	p.created_at, p.updated_at`
	searchDocument = `to_tsvector('simple', p.name || ' ' || coalesce(p.address->>'formatted', '') || ' ' || p.category)`

	DefaultSearchLimit  = 20
	maxSearchLimit      = 100
	DefaultNearbyRadius = 5000.0
	nearbyLimit         = 50
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Place, error) {
	if err := validate.Struct(req); err != nil {
		return Place{}, err
	}
	p := Place{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Location:   *req.Location,
		Address:    req.Address,
		Category:   req.Category,
		Phone:      req.Phone,
		Website:    req.Website,
		Hours:      req.Hours,
		Photos:     req.Photos,
		Amenities:  req.Amenities,
		PriceLevel: req.PriceLevel,
		AddedBy:    &userID,
	}
	if p.Category == "" {
		p.Category = CategoryOther
	}
	if p.Address.Formatted == "" {
		p.Address.Formatted = formatAddress(p.Address)
	}
	if p.Hours == nil {
		p.Hours = map[string]Hours{}
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}

	address, err := db.JSONB(p.Address)
	if err != nil {
		return Place{}, err
	}
	hours, err := db.JSONB(p.Hours)
	if err != nil {
		return Place{}, err
	}
	photos, err := db.JSONB(p.Photos)
	if err != nil {
		return Place{}, err
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO places (id, name, location, address, category, phone, website, hours, photos, amenities, price_level, added_by)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Location.Lng, p.Location.Lat, address, p.Category, p.Phone, p.Website, hours, photos,
		p.Amenities, p.PriceLevel, userID).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Place{}, apperr.FromDB(err, "place")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Place, error) {
	p, err := scanWith(s.db.QueryRow(ctx, `SELECT `+columns+` FROM places p WHERE p.id=$1`, id))
	if err != nil {
		return Place{}, apperr.FromDB(err, "place")
	}
	return p, nil
}

// Search runs a full-text query over name, formatted address and category.
// An empty q lists places of the category, best rated first.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Place, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var filter sq.And
	if q.Q != "" {
		filter = append(filter, sq.Expr(searchDocument+" @@ plainto_tsquery('simple', ?)", q.Q))
	}
	if q.Category != "" {
		filter = append(filter, sq.Eq{"p.category": q.Category})
	}

	b := psql.Select(columns).From("places p")
	if len(filter) > 0 {
		b = b.Where(filter)
	}
	query, args, err := b.OrderBy("p.rating_average DESC", "p.name").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}
	return s.list(ctx, query, args, false)
}

// Nearby returns up to 50 places within q.Radius meters, nearest first.
func (s *Service) Nearby(ctx context.Context, q NearbyQuery) ([]Place, error) {
	if q.Radius <= 0 {
		q.Radius = DefaultNearbyRadius
	}
	const origin = "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography"

	b := psql.Select(columns).
		Column("ST_Distance(p.location, "+origin+") AS distance", q.Lng, q.Lat).
		From("places p").
		Where("ST_DWithin(p.location, "+origin+", ?)", q.Lng, q.Lat, q.Radius)
	if q.Category != "" {
		b = b.Where(sq.Eq{"p.category": q.Category})
	}
	query, args, err := b.OrderBy("distance").Limit(nearbyLimit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build nearby: %w", err)
	}
	return s.list(ctx, query, args, true)
}

// Saved lists the places userID saved, most recently saved first.
func (s *Service) Saved(ctx context.Context, userID string, p pagination.Params) ([]Place, pagination.Meta, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM saved_places WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count saved places: %w", err)
	}
	places, err := s.list(ctx, `
		SELECT `+columns+`
		FROM saved_places s JOIN places p ON p.id = s.place_id
		WHERE s.user_id=$1
		ORDER BY s.created_at DESC
		LIMIT $2 OFFSET $3
	`, []any{userID, p.Limit, p.Offset()}, false)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return places, pagination.NewMeta(p, total), nil
}

// Save bookmarks a place. Saving twice is a no-op.
func (s *Service) Save(ctx context.Context, userID, placeID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_places (user_id, place_id) VALUES ($1, $2)
		ON CONFLICT (user_id, place_id) DO NOTHING
	`, userID, placeID)
	if err != nil {
		return apperr.FromDB(err, "place")
	}
	return nil
}

func (s *Service) Reviews(ctx context.Context, placeID string, p pagination.Params) ([]Review, pagination.Meta, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE place_id=$1`, placeID).Scan(&total); err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("count reviews: %w", err)
	}
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.place_id, u.id, u.name, u.avatar, r.rating, r.title, r.comment, r.photos,
		       cardinality(r.helpful), r.verified, r.created_at, r.updated_at
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.place_id=$1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`, placeID, p.Limit, p.Offset())
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.PlaceID, &r.User.ID, &r.User.Name, &r.User.Avatar, &r.Rating, &r.Title,
			&r.Comment, &r.Photos, &r.HelpfulCount, &r.Verified, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, pagination.Meta{}, err
		}
		if r.Photos == nil {
			r.Photos = []string{}
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Meta{}, err
	}
	return reviews, pagination.NewMeta(p, total), nil
}

// AddReview writes the caller's review of a place, replacing any earlier one,
// and recomputes the place rating in the same transaction. The place row is
// locked so concurrent reviews recompute in turn.
func (s *Service) AddReview(ctx context.Context, userID, placeID string, req ReviewRequest) (Review, Rating, error) {
	if err := validate.Struct(req); err != nil {
		return Review{}, Rating{}, err
	}
	r := Review{
		ID:      uuid.NewString(),
		PlaceID: placeID,
		User:    Author{ID: userID},
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
		Photos:  req.Photos,
	}
	if r.Photos == nil {
		r.Photos = []string{}
	}

	var rating Rating
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM places WHERE id=$1 FOR UPDATE`, placeID).Scan(&locked); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO reviews (id, place_id, user_id, rating, title, comment, photos)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (place_id, user_id) DO UPDATE
			SET rating=EXCLUDED.rating, title=EXCLUDED.title, comment=EXCLUDED.comment,
			    photos=EXCLUDED.photos, updated_at=now()
			RETURNING id, created_at, updated_at
		`, r.ID, r.PlaceID, userID, r.Rating, r.Title, r.Comment, r.Photos).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			UPDATE places
			SET rating_average = COALESCE((SELECT ROUND(AVG(rating)::numeric, 1)::float8 FROM reviews WHERE place_id=$1), 0),
			    rating_count = (SELECT COUNT(*) FROM reviews WHERE place_id=$1),
			    updated_at = now()
			WHERE id=$1
			RETURNING rating_average, rating_count
		`, placeID).Scan(&rating.Average, &rating.Count)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, Rating{}, apperr.NotFound("place not found")
		}
		return Review{}, Rating{}, apperr.FromDB(err, "review")
	}
	return r, rating, nil
}

func (s *Service) list(ctx context.Context, query string, args []any, withDistance bool) ([]Place, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	places := []Place{}
	for rows.Next() {
		var p Place
		if withDistance {
			var d float64
			p, err = scanWith(rows, &d)
			p.Distance = &d
		} else {
			p, err = scanWith(rows)
		}
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return places, nil
}

// scanWith reads the place columns followed by any extra destinations.
func scanWith(row pgx.Row, extra ...any) (Place, error) {
	var p Place
	var address, hours, photos []byte
	dest := []any{&p.ID, &p.Name, &p.Location.Lng, &p.Location.Lat, &address, &p.Category, &p.Phone, &p.Website,
		&hours, &p.Rating.Average, &p.Rating.Count, &photos, &p.Amenities, &p.PriceLevel, &p.Verified, &p.AddedBy,
		&p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Place{}, err
	}
	if err := db.ScanJSONB(address, &p.Address); err != nil {
		return Place{}, err
	}
	if err := db.ScanJSONB(hours, &p.Hours); err != nil {
		return Place{}, err
	}
	if err := db.ScanJSONB(photos, &p.Photos); err != nil {
		return Place{}, err
	}
	if p.Hours == nil {
		p.Hours = map[string]Hours{}
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	return p, nil
}

func formatAddress(a Address) string {
	var parts []string
	for _, s := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

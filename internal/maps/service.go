// Package maps serves offline map records, safety alerts and geocoding.
package maps

import (
	"backend-navi/internal/db"
	"backend-navi/internal/events"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Service struct {
	db        db.Querier
	publisher events.Publisher
}

func NewService(db db.Querier, publisher events.Publisher) *Service {
	return &Service{db: db, publisher: publisher}
}

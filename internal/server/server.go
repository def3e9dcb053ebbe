package server

import (
	"time"

	"backend-navi/internal/auth"
	"backend-navi/internal/config"
	"backend-navi/internal/db"
	"backend-navi/internal/events"
	"backend-navi/internal/logging"
	"backend-navi/internal/mapbox"
	"backend-navi/internal/maps"
	"backend-navi/internal/metrics"
	"backend-navi/internal/notification"
	"backend-navi/internal/place"
	"backend-navi/internal/route"
	"backend-navi/internal/shared/response"
	"backend-navi/internal/social"
	"backend-navi/internal/storage"
	"backend-navi/internal/stream"
	"backend-navi/internal/trip"
	"backend-navi/internal/user"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

const (
	authRateLimit  = 20
	authRateWindow = time.Minute
	// multipart overhead on top of the largest accepted upload
	bodySlack = 1 << 20
)

// Deps are the process-wide resources shared by every handler. A nil Store
// makes uploads fail with an integration error; a nil Redis keeps realtime
// fan-out local to this instance.
type Deps struct {
	DB        db.Querier
	Redis     *redis.Client
	Mapbox    *mapbox.Client
	Store     storage.Store
	Publisher events.Publisher
}

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Deps   Deps
	Stream *stream.Hub
}

func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Mapbox == nil {
		deps.Mapbox = mapbox.New(mapbox.Config{
			BaseURL:           cfg.MapboxBaseURL,
			Token:             cfg.MapboxToken,
			Timeout:           cfg.MapboxTimeout,
			RatePerSec:        cfg.MapboxRatePerSec,
			MatrixConcurrency: cfg.MapboxMatrixConcurrency,
		})
	}

	bodyLimit := fiber.DefaultBodyLimit
	if limit := int(cfg.MaxFileSize) + bodySlack; limit > bodyLimit {
		bodyLimit = limit
	}

	app := fiber.New(fiber.Config{
		AppName:      "navi",
		BodyLimit:    bodyLimit,
		ErrorHandler: response.ErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(metrics.Middleware())
	app.Use(logging.Middleware())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Deps:   deps,
		Stream: stream.NewHub(deps.Redis),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	d := s.Deps
	authSvc := auth.NewService(s.Cfg.JWTSecret, d.DB, d.Redis, d.Publisher)
	jwtMiddleware := auth.JWTMiddleware(authSvc)

	notifications := notification.NewService(d.DB, s.Stream)
	files := storage.NewService(d.DB, d.Store, storage.Limits{
		MaxFileSize:  s.Cfg.MaxFileSize,
		AllowedTypes: s.Cfg.AllowedFileTypes,
	})

	api := s.App.Group("/api/v1")

	authGroup := api.Group("/auth", limiter.New(limiter.Config{
		Max:        authRateLimit,
		Expiration: authRateWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
		},
	}))
	auth.RegisterRoutes(authGroup, authSvc, jwtMiddleware)

	user.RegisterRoutes(api.Group("/users"), user.NewService(d.DB), jwtMiddleware)
	route.RegisterRoutes(api.Group("/routes"), route.NewService(d.DB, d.Mapbox, notifications), jwtMiddleware)
	trip.RegisterRoutes(api.Group("/trips"), trip.NewService(d.DB, files, d.Publisher), jwtMiddleware)
	place.RegisterRoutes(api.Group("/places"), place.NewService(d.DB), jwtMiddleware)
	social.RegisterRoutes(api.Group("/social"), social.NewService(d.DB, notifications, s.Stream, d.Publisher), jwtMiddleware)
	maps.RegisterRoutes(api.Group("/maps"), maps.NewService(d.DB, d.Publisher), jwtMiddleware)
	maps.RegisterGeocodeRoutes(api.Group("/geocode"), d.Mapbox, jwtMiddleware)
	notification.RegisterRoutes(api.Group("/notifications"), notifications, jwtMiddleware)
	storage.RegisterRoutes(api.Group("/uploads"), files, jwtMiddleware)
	stream.RegisterRoutes(api.Group("/stream"), s.Stream, auth.QueryTokenMiddleware(authSvc))
}

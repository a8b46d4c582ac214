package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tehshkola/apiserver/config"
	"github.com/tehshkola/apiserver/internal/auth"
	"github.com/tehshkola/apiserver/internal/db"
	"github.com/tehshkola/apiserver/internal/handlers"
	"github.com/tehshkola/apiserver/internal/mq"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/internal/storage"
	"github.com/tehshkola/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, the shared DB pool and the optional broker.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     *zap.Logger
}

// New constructs a fully wired Server. Every external client (DB pool,
// object storage, broker) is opened here and closed in Shutdown; nothing is
// initialized lazily mid-request.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objectStore, err := openStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	broker, err := OpenBroker(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open broker: %w", err)
	}
	if broker != nil {
		logger.Info("order events enabled", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.OrdersChannel))
	}

	userRepo := store.NewUserRepository(dbConn)
	productRepo := store.NewProductRepository(dbConn)
	orderRepo := store.NewOrderRepository(dbConn)
	eventRepo := store.NewEventRepository(dbConn)
	quizRepo := store.NewQuizRepository(dbConn)

	orderEvents := services.NewOrderEvents(broker, cfg.MQ.OrdersChannel, logger)

	userService := services.NewUserService(userRepo)
	quizService := services.NewQuizService(quizRepo)
	eventService := services.NewEventService(eventRepo)
	productService := services.NewProductService(productRepo)
	shopService := services.NewShopService(productRepo, userRepo, orderRepo, orderEvents, logger)
	orderService := services.NewOrderService(orderRepo, userRepo, productRepo, orderEvents, logger)
	uploadService := services.NewUploadService(objectStore, cfg.Storage.PublicBaseURL)

	tokens := auth.New(cfg.JWT.Secret)
	gate := handlers.NewGate(tokens)

	authHandler := handlers.NewAuthHandler(userService, tokens, cfg, logger)
	profileHandler := handlers.NewProfileHandler(userService, quizService, tokens, cfg.IsProduction(), logger)
	shopHandler := handlers.NewShopHandler(shopService, logger)
	eventsHandler := handlers.NewEventsHandler(eventService, logger)
	commissionHandler := handlers.NewCommissionHandler(
		userService,
		quizService,
		eventService,
		productService,
		shopService,
		orderService,
		uploadService,
		logger,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		requestLogger(logger),
		gate.Middleware,
	)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
		r.Route("/shop", func(r chi.Router) {
			handlers.ShopRouter(r, shopHandler)
		})
		r.Route("/profile", func(r chi.Router) {
			handlers.ProfileRouter(r, profileHandler)
		})
		r.Route("/quiz", func(r chi.Router) {
			handlers.QuizRouter(r, profileHandler)
		})
		r.Route("/events", func(r chi.Router) {
			handlers.EventsRouter(r, eventsHandler)
		})
		r.Route("/commission", func(r chi.Router) {
			handlers.CommissionRouter(r, commissionHandler)
		})
	})

	// Pages are plain static files; the gate above already enforces the
	// protected page prefixes.
	router.NotFound(http.FileServer(http.Dir(cfg.StaticDir)).ServeHTTP)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown and closes external clients.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

// OpenBroker connects the configured message broker, or returns nil when
// order events are disabled.
func OpenBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func openStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Package server assembles the API process from configuration: stores,
// object storage, identity, the scorer client and the HTTP router.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ezkiller2517/arkzkh-app/handlers"
	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/alignment"
	"github.com/ezkiller2517/arkzkh-app/internal/blueprint"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/internal/database"
	"github.com/ezkiller2517/arkzkh-app/internal/draft/service"
	"github.com/ezkiller2517/arkzkh-app/internal/oidc"
	"github.com/ezkiller2517/arkzkh-app/internal/sessions"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/ezkiller2517/arkzkh-app/internal/tokens"
	"github.com/ezkiller2517/arkzkh-app/internal/upload"
	"github.com/ezkiller2517/arkzkh-app/internal/users"
	"github.com/ezkiller2517/arkzkh-app/pkg/events"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// App is a fully wired server.
type App struct {
	Config  *config.Config
	Router  *gin.Engine
	Bus     *events.Bus
	Drafts  *service.Service
	Scoring *alignment.Service
	Storage storage.Backend

	mongo   *mongo.Client
	redis   redis.UniversalClient
	oidc    middleware.Verifier
	started time.Time
}

// Options override collaborators, mainly for tests.
type Options struct {
	// Registerer receives the Prometheus collectors; nil skips registration.
	Registerer prometheus.Registerer
	// IDTokens replaces OIDC discovery.
	IDTokens middleware.Verifier
	Clock    clock.Clock
}

// New connects to the configured backends and builds the router. With an
// empty MongoDB URI and no Redis host everything runs in process.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Bus: events.NewBus(), started: time.Now()}
	if opts.Registerer != nil {
		metrics.RegisterCollectors(opts.Registerer)
	}

	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unreachable, continuing without it: %v", cfg.Redis.Addr(), err)
			_ = rc.Close()
		} else {
			a.redis = rc
			logger.Infof("connected to redis at %s", cfg.Redis.Addr())
		}
	}

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.mongo = client
		db = client.Database(cfg.MongoDB.Database)
	}

	backend, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("object storage: %w", err)
	}
	if eb, ok := backend.(interface{ EnsureBucket(context.Context) error }); ok {
		if err := eb.EnsureBucket(ctx); err != nil {
			logger.Warnf("could not ensure bucket %s: %v", backend.Bucket(), err)
		}
	}
	a.Storage = backend

	var (
		userRepo      users.UserRepository
		blueprintRepo blueprint.Repository
		sessionRepo   sessions.Repository
	)
	if db != nil {
		a.Drafts = service.NewMongoService(db.Collection("drafts"), a.Bus)
		userRepo = users.NewMongoUserRepository(a.mongo, db)
		blueprintRepo = blueprint.NewMongoRepo(db.Collection("blueprints"))
	} else {
		logger.Warnf("MONGODB_URI not set; drafts, users and blueprints are kept in memory")
		a.Drafts = service.NewMemoryService(a.Bus)
		userRepo = users.NewMemoryUserRepository(opts.Clock)
		blueprintRepo = blueprint.NewMemoryRepo(opts.Clock)
	}
	switch {
	case a.redis != nil:
		sessionRepo = sessions.NewRedisRepository(a.redis, "session:")
	case db != nil:
		sessionRepo, err = sessions.NewMongoRepository(ctx, db.Collection("sessions"))
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("sessions: %w", err)
		}
	default:
		sessionRepo = sessions.NewMemoryRepository()
	}

	scorer := ai.NewScorerClient(cfg.Scorer.URL, cfg.Scorer.Timeout, nil)
	if !scorer.Configured() {
		logger.Warnf("SCORER_URL not set; scoring and extraction will fail with SCORING_FAILED")
	}
	userSvc := users.NewService(userRepo)
	blueprints := blueprint.NewService(blueprintRepo, scorer)
	a.Scoring = alignment.NewService(scorer, a.Drafts, blueprints)

	a.oidc = opts.IDTokens
	if a.oidc == nil {
		a.oidc = discoverOIDC(ctx, cfg.Keycloak)
	}
	var access middleware.Verifier
	if cfg.JWT.Secret != "" {
		access = tokens.NewVerifier(cfg.JWT, opts.Clock)
	}
	blacklist := sessions.NewRedisBlacklist(a.redis)

	deps := handlers.Deps{
		Verifier:    middleware.ChainVerifier{access, a.oidc},
		Revoked:     blacklist,
		Users:       userSvc,
		Auth:        handlers.NewAuthHandler(cfg, a.oidc, sessions.NewService(sessionRepo, opts.Clock, cfg.JWT.RefreshTokenTTL), blacklist, opts.Clock),
		UsersAPI:    handlers.NewUserHandler(userSvc),
		Drafts:      handlers.NewDraftHandler(a.Drafts, a.Scoring),
		Uploads:     handlers.NewUploadHandler(upload.NewIssuer(backend, opts.Clock, cfg.Upload.URLExpiry), upload.NewRegistrar(backend, a.Drafts, cfg.Storage.PublicBaseURL, cfg.Upload.ReadURLTTL), a.Drafts),
		Blueprint:   handlers.NewBlueprintHandler(blueprints),
		ScoreLimit:  middleware.NewRateLimiter(cfg.RateLimit, a.redis, "score"),
		UploadLimit: middleware.NewRateLimiter(cfg.RateLimit, a.redis, "uploads"),
	}
	if mem, ok := backend.(*storage.MemoryStorage); ok {
		deps.ObjectStore = mem.Handler()
	}
	a.Router = handlers.NewRouter(deps)
	a.Router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	a.Router.GET("/ready", a.ready)
	a.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return a, nil
}

func discoverOIDC(ctx context.Context, kc config.KeycloakConfig) middleware.Verifier {
	issuer := kc.Issuer()
	if issuer == "" || kc.ClientID == "" {
		return nil
	}
	v, err := oidc.NewVerifier(ctx, issuer, kc.ClientID)
	if err != nil {
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
		return nil
	}
	logger.Infof("OIDC verifier ready for %s", issuer)
	return v
}

// ready returns 200 only when every configured dependency answers.
func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	deps := gin.H{}
	ok := true
	if a.mongo != nil {
		up := database.Healthy(ctx, a.mongo, 2*time.Second)
		deps["mongo"], ok = up, ok && up
	}
	if a.redis != nil {
		up := a.redis.Ping(ctx).Err() == nil
		deps["redis"], ok = up, ok && up
	}
	if a.Config.Keycloak.URL != "" {
		up := a.oidc != nil
		deps["oidc"], ok = up, ok && up
	}
	deps["storage"] = a.Storage.Bucket()
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(a.started).Round(time.Second).String()})
}

// Watch drains the events bus into the log, the write-failure counter and,
// when configured, the Redis notifier channel until ctx is done.
func (a *App) Watch(ctx context.Context) {
	ch, cancel := a.Bus.Subscribe(256)
	go func() {
		defer cancel()
		events.Drain(ctx, ch, func(e events.Event) {
			metrics.WriteFailures.WithLabelValues(e.Op).Inc()
			logger.Errorw("async write failed", logger.Fields{"op": e.Op, "org": e.OrgID, "draftId": e.DraftID, "user": e.UserID, "code": e.Code, "msg": e.Message})
		})
	}()
	if a.redis != nil && a.Config.Server.EventsChannel != "" {
		fch, fcancel := a.Bus.Subscribe(256)
		fw := events.NewRedisForwarder(a.redis, a.Config.Server.EventsChannel)
		go func() {
			defer fcancel()
			fw.Run(ctx, fch)
		}()
	}
}

// Run serves HTTP until ctx is done, then drains in-flight requests and
// background writes.
func (a *App) Run(ctx context.Context) error {
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.Watch(watchCtx)

	srv := &http.Server{
		Addr:         a.Config.Server.Host + ":" + a.Config.Server.Port,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	a.Drafts.Wait()
	a.Scoring.Wait()
	a.Close(shutdownCtx)
	return nil
}

// Close releases backend connections.
func (a *App) Close(ctx context.Context) {
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
		a.mongo = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/vanilla/internal/cache"
	"github.com/dropDatabas3/vanilla/internal/config"
	vhttp "github.com/dropDatabas3/vanilla/internal/http"
	"github.com/dropDatabas3/vanilla/internal/messaging"
	"github.com/dropDatabas3/vanilla/internal/metrics"
	"github.com/dropDatabas3/vanilla/internal/nonce"
	"github.com/dropDatabas3/vanilla/internal/oauth"
	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/rate"
	"github.com/dropDatabas3/vanilla/internal/session"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/store/memory"
	pgdriver "github.com/dropDatabas3/vanilla/internal/store/pg"
	"github.com/dropDatabas3/vanilla/internal/template"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/user"
)

func main() {
	// .env primero, para que las VANILLA_* lleguen antes de Load.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfgPath := os.Getenv("VANILLA_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.L().Fatal("storage", logger.Err(err))
	}
	defer repo.Close()

	overrides, err := config.LoadStoreOverrides(cfg.Stores.OverridesFile, cfg.App.Env)
	if err != nil {
		logger.L().Fatal("store overrides", logger.Err(err))
	}

	cc, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		logger.L().Fatal("cache", logger.Err(err))
	}
	defer func() { _ = cc.Close() }()

	gateway, err := messaging.New(messaging.Config{
		Driver:  cfg.Messaging.Driver,
		BaseURL: cfg.Messaging.BaseURL,
		Timeout: cfg.Messaging.Timeout,
		SMTP: messaging.SMTPConfig{
			Host: cfg.Messaging.SMTP.Host,
			Port: cfg.Messaging.SMTP.Port,
			User: cfg.Messaging.SMTP.User,
			Pass: cfg.Messaging.SMTP.Pass,
		},
	})
	if err != nil {
		logger.L().Fatal("messaging", logger.Err(err))
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled && cfg.Cache.Kind == "redis" {
		rc := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		limiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.Rate.Window)
	}

	var resolver session.IdentityResolver
	if cfg.Identity.BaseURL != "" {
		resolver = session.NewHTTPIdentityResolver(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	}

	m := metrics.New()
	if err := m.Register(nil); err != nil {
		logger.L().Fatal("metrics", logger.Err(err))
	}

	h := &vhttp.Handlers{
		Cfg:     cfg,
		Repo:    repo,
		Tenants: tenant.NewService(repo, overrides),
		Users:   user.NewService(repo),
		Nonces:  nonce.NewEngine(repo),
		OAuth:   oauth.NewService(repo),
		Sessions: session.NewManager(cc, session.Config{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		}),
		Identity: resolver,
		Gateway:  gateway,
		Renderer: template.NewRenderer(cfg.Template.Timeout),
		Metrics:  m,
		Limiter:  limiter,
	}

	srv := vhttp.NewServer(cfg.Server.Addr, h.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("service up", logger.Addr(cfg.Server.Addr))
		return vhttp.Serve(gctx, srv)
	})
	if cfg.Server.MetricsAddr != "" {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", promhttp.Handler())
		msrv := vhttp.NewServer(cfg.Server.MetricsAddr, mmux)
		g.Go(func() error {
			logger.L().Info("metrics up", logger.Addr(cfg.Server.MetricsAddr))
			return vhttp.Serve(gctx, msrv)
		})
	}
	if err := g.Wait(); err != nil {
		logger.L().Fatal("serve", logger.Err(err))
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (core.Repository, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return pgdriver.New(ctx, cfg.Storage.DSN, pgdriver.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
	default:
		return memory.New(), nil
	}
}

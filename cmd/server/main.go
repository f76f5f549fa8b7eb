package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/nolmart/internal/cart"
	"github.com/Skotchmaster/nolmart/internal/catalog"
	"github.com/Skotchmaster/nolmart/internal/checkout"
	"github.com/Skotchmaster/nolmart/internal/config"
	pkgdb "github.com/Skotchmaster/nolmart/internal/db"
	"github.com/Skotchmaster/nolmart/internal/es"
	"github.com/Skotchmaster/nolmart/internal/httpserver"
	"github.com/Skotchmaster/nolmart/internal/logging"
	loggingmw "github.com/Skotchmaster/nolmart/internal/middleware/logging"
	"github.com/Skotchmaster/nolmart/internal/mykafka"
	"github.com/Skotchmaster/nolmart/internal/repo"
	"github.com/Skotchmaster/nolmart/internal/service"
	"github.com/Skotchmaster/nolmart/internal/storage"
	"github.com/Skotchmaster/nolmart/internal/validate"
)

func main() {
	cfg := config.Load()

	logger, syncLogs := logging.New(cfg.AppEnv, cfg.LogLevel)
	defer syncLogs()
	logger = logger.With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	var db *gorm.DB
	if cfg.CatalogSource == "db" || cfg.CartStorage == "db" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		var err error
		db, err = pkgdb.Open(openCtx, cfg.DatabaseDriver, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
	}

	var esCatalog *es.Catalog
	if cfg.ESURL != "" {
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		esCatalog = es.NewCatalog(client, cfg.ESIndex)
	}

	var publisher mykafka.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		publisher = prod
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka close failed", "error", err)
		}
	}()

	var products *repo.GormRepo
	var source catalog.Source
	switch cfg.CatalogSource {
	case "db":
		r, err := repo.New(db)
		if err != nil {
			log.Fatalf("product repo: %v", err)
		}
		products, source = r, r
	case "es":
		if esCatalog == nil {
			log.Fatal("CATALOG_SOURCE=es requires ES_URL")
		}
		source = esCatalog
	case "json", "":
		if strings.HasPrefix(cfg.CatalogJSON, "http://") || strings.HasPrefix(cfg.CatalogJSON, "https://") {
			source = catalog.NewHTTPSource(cfg.CatalogJSON, 10*time.Second)
		} else {
			source = catalog.FileSource{Path: cfg.CatalogJSON}
		}
	default:
		log.Fatalf("unknown CATALOG_SOURCE %q", cfg.CatalogSource)
	}

	cache := catalog.New(source, catalog.WithLogger(logger.With("component", "catalog")))
	if _, err := cache.Load(ctx); err != nil {
		logger.Warn("initial catalog load failed", "error", err)
	}

	kv, err := cartStorage(cfg, db)
	if err != nil {
		log.Fatalf("cart storage: %v", err)
	}
	carts := cart.NewRegistry(kv,
		cart.WithPlaceholder(cfg.PlaceholderImage),
		cart.WithLogger(logger.With("component", "cart")),
	)
	carts.OnOpen(mykafka.CartForwarder(ctx, publisher, logger.With("component", "cart_events")))
	if cfg.CartIdleTTL > 0 {
		go carts.RunEviction(ctx, cfg.CartIdleTTL, max(cfg.CartIdleTTL/4, time.Second))
	}

	go runCatalogRefresh(ctx, cfg, cache, logger)

	if len(cfg.KafkaBrokers) > 0 {
		listener := mykafka.NewProductListener(cfg.KafkaBrokers, mykafka.InstanceGroupID(cfg.ServiceName+"-catalog"), logger.With("component", "product_events"))
		go func() {
			listener.Run(ctx, func(ctx context.Context, ev mykafka.ProductEvent) {
				if _, err := cache.Reload(ctx); err != nil {
					logger.Warn("catalog reload after product event failed", "event", ev.Type, "id", ev.ID, "error", err)
				}
			})
			_ = listener.Close()
		}()
	}

	cartHTTP := &httpserver.CartHTTP{Carts: carts, Catalog: cache}
	deps := &httpserver.Deps{
		Catalog: &httpserver.CatalogHTTP{Cache: cache},
		Cart:    cartHTTP,
		Checkout: &httpserver.CheckoutHTTP{
			Carts:   cartHTTP,
			Catalog: cache,
			Handoff: checkout.NewHandoff(cfg.StoreName, cfg.WhatsAppNumber, cfg.Currency),
		},
		JWTSecret:     cfg.JWTSecret,
		MediaDir:      cfg.MediaDir,
		MediaURL:      cfg.MediaBaseURL,
		SecureCookies: cfg.AppEnv == "production",
	}

	if cfg.AdminEnabled() {
		svc := &service.AdminService{
			Repo:         products,
			Publisher:    publisher,
			Catalog:      cache,
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			JWTSecret:    cfg.JWTSecret,
		}
		if esCatalog != nil {
			svc.Indexer = esCatalog
		}
		deps.Admin = &httpserver.AdminHTTP{
			Svc:   svc,
			Media: &service.Media{Dir: cfg.MediaDir, BaseURL: cfg.MediaBaseURL},
		}
	} else {
		logger.Info("admin api disabled", "catalog_source", cfg.CatalogSource)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("nolmart listening", "addr", srv.Addr, "catalog_source", cfg.CatalogSource, "cart_storage", cfg.CartStorage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("db close failed", "error", err)
			}
		}
	}

	logger.Info("shutdown complete")
}

func cartStorage(cfg config.Config, db *gorm.DB) (storage.KV, error) {
	switch cfg.CartStorage {
	case "db":
		return storage.NewGorm(db)
	case "file":
		return storage.NewFile(cfg.CartDir)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return nil, errors.New("unknown CART_STORAGE " + strconv.Quote(cfg.CartStorage))
	}
}

// runCatalogRefresh keeps the cache current: a file watcher for a local products.json and a
// periodic reload when a TTL is configured.
func runCatalogRefresh(ctx context.Context, cfg config.Config, cache *catalog.Cache, logger *slog.Logger) {
	if cfg.CatalogWatch && cfg.CatalogSource == "json" && !strings.Contains(cfg.CatalogJSON, "://") {
		go func() {
			if err := catalog.Watch(ctx, cfg.CatalogJSON, cache); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("catalog watch stopped", "path", cfg.CatalogJSON, "error", err)
			}
		}()
	}

	if cfg.CatalogTTL <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CatalogTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := cache.Reload(ctx); err != nil {
				logger.Warn("scheduled catalog reload failed", "error", err)
			}
		}
	}
}

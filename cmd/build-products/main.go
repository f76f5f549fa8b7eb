// Command build-products compiles the markdown product files into the products.json catalog
// document served by the storefront. With -watch it rebuilds on every change, with -index it also
// pushes the result into Elasticsearch.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Skotchmaster/nolmart/internal/config"
	"github.com/Skotchmaster/nolmart/internal/content"
	"github.com/Skotchmaster/nolmart/internal/es"
	"github.com/Skotchmaster/nolmart/internal/logging"
)

const rebuildDebounce = 300 * time.Millisecond

func main() {
	src := flag.String("src", "content/products", "directory with the product markdown files")
	out := flag.String("out", "public/products.json", "catalog document to write")
	baseURL := flag.String("base-url", "", "prefix for relative image paths")
	watch := flag.Bool("watch", false, "rebuild whenever a product file changes")
	index := flag.Bool("index", false, "also index the products into Elasticsearch (ES_URL)")
	flag.Parse()

	cfg := config.Load()
	logger, syncLogs := logging.New(cfg.AppEnv, cfg.LogLevel)
	defer syncLogs()
	logger = logger.With("service", "build-products")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	var indexer *es.Catalog
	if *index {
		if cfg.ESURL == "" {
			log.Fatal("-index requires ES_URL")
		}
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		indexer = es.NewCatalog(client, cfg.ESIndex)
	}

	b := content.Builder{BaseURL: *baseURL}
	run := func() error {
		return build(ctx, b, *src, *out, indexer)
	}

	if err := run(); err != nil {
		if !*watch {
			log.Fatalf("build: %v", err)
		}
		logger.Error("build failed", "error", err)
	}
	if !*watch {
		return
	}

	if err := watchDir(ctx, *src, run); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("watch: %v", err)
	}
}

func build(ctx context.Context, b content.Builder, src, out string, indexer *es.Catalog) error {
	l := logging.FromContext(ctx)

	products, err := b.BuildDir(src)
	if err != nil {
		return err
	}
	if err := content.WriteFile(out, products); err != nil {
		return err
	}
	l.Info("catalog written", "path", out, "products", len(products))

	if indexer == nil {
		return nil
	}
	n, err := indexer.IndexAll(ctx, products)
	if err != nil {
		return err
	}
	l.Info("catalog indexed", "index", indexer.Index, "products", n)
	return nil
}

func watchDir(ctx context.Context, dir string, rebuild func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("dir", dir)
	l.Info("watching product files")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".md") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(rebuildDebounce)
			} else {
				timer.Reset(rebuildDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			if err := rebuild(); err != nil {
				l.Error("rebuild failed", "error", err)
			}
		}
	}
}

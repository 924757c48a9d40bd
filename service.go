package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	gtransport "google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"elainedb.dev/geotube/config"
	"elainedb.dev/geotube/fetch"
	"elainedb.dev/geotube/geocode"
	"elainedb.dev/geotube/handler"
	"elainedb.dev/geotube/metrics"
	"elainedb.dev/geotube/pipeline"
	"elainedb.dev/geotube/repository"
	"elainedb.dev/geotube/storage"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("unable to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var store storage.VideoStore
	if cfg.HasStore() {
		postgres, err := storage.NewPostgres(storage.PostgresInfo{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Database,
		})
		if err != nil {
			logger.Error("unable to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = postgres
	} else {
		logger.Warn("no store configured, falling back to in-memory store")
		store = storage.NewMemory()
	}

	httpClient := &http.Client{
		Transport: &gtransport.APIKey{
			Key: cfg.Upstream.APIKey,
			Transport: &fetch.IdentityTransport{
				Package: cfg.Upstream.AppPackage,
				Cert:    cfg.Upstream.AppCert,
			},
		},
	}
	ytClient, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		logger.Error("unable to create youtube service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	yt := fetch.NewYoutube(ytClient, logger)

	geocoder := geocode.NewNominatim(geocode.NominatimConfig{
		Endpoint:  cfg.Geocoder.Endpoint,
		UserAgent: cfg.Geocoder.UserAgent,
	}, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	pipe := pipeline.New(cfg.Upstream.ChannelIDs, yt, yt, geocoder, store, m, logger)
	repo := repository.New(store, pipe, m, logger,
		repository.WithTTL(cfg.TTL()),
		repository.WithRetention(cfg.Retention()))

	// Warm the cache so the first read does not pay for a full run.
	go func() {
		if _, err := repo.GetLatest(ctx); err != nil {
			logger.Error("initial fetch failed", slog.String("error", err.Error()))
		}
	}()

	srv := handler.New(repo, registry, logger)
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.APIPort), srv.Router()); err != nil {
			logger.Error("http server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()
	logger.Info("http server started", slog.Int("port", cfg.APIPort))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)
	<-done

	logger.Info("service stopped")
}

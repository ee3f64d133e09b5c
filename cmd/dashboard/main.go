package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/agora/config"
	"github.com/spacesedan/agora/internal/api"
	"github.com/spacesedan/agora/internal/clients"
	"github.com/spacesedan/agora/internal/db"
	"github.com/spacesedan/agora/internal/digest"
	"github.com/spacesedan/agora/internal/logging"
	"github.com/spacesedan/agora/internal/monitoring"
	"github.com/spacesedan/agora/internal/processing"
	"github.com/spacesedan/agora/internal/producer"
	"github.com/spacesedan/agora/internal/reflections"
	"github.com/spacesedan/agora/internal/scheduler"
	"github.com/spacesedan/agora/internal/sentiment"
	"github.com/spacesedan/agora/internal/summary"
)

type summarizerClient interface {
	summary.Completer
	monitoring.HealthChecker
}

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger("info")
		slog.Error("[Dashboard] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("[Dashboard] Table store unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()

	if err := db.EnsureAll(ctx, backend); err != nil {
		slog.Error("[Dashboard] Failed to prepare tables", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var summaryStore summary.Store = summary.NewTableStore(backend, cfg.Store.RetentionRows)
	if len(cfg.Store.ValkeyAddresses) > 0 {
		vc, err := clients.NewValkeyClient(clients.ValkeyConfig{
			InitAddress: cfg.Store.ValkeyAddresses,
			Password:    cfg.Store.ValkeyPassword,
			TLS:         cfg.Store.ValkeyTLS,
			TTL:         cfg.Store.ValkeyTTL,
		})
		if err != nil {
			slog.Warn("[Dashboard] Valkey unavailable, caching in the table store only",
				slog.String("error", err.Error()))
		} else {
			defer vc.Close()
			summaryStore = summary.NewLayeredStore(vc, summaryStore)
		}
	}

	completer := newSummarizer(cfg)

	var healthy atomic.Bool
	healthy.Store(true)

	summaryOpts := []summary.Option{
		summary.WithTimeout(cfg.Summarizer.Timeout),
		summary.WithMaxTokens(cfg.Summarizer.MaxTokens),
		summary.WithTemperature(cfg.Summarizer.Temperature),
		summary.WithHealth(&healthy),
	}
	if cfg.Summarizer.Cache {
		summaryOpts = append(summaryOpts, summary.WithStore(summaryStore))
	}
	summaries := summary.NewService(completer, summaryOpts...)

	reddit := clients.NewRedditClient(clients.RedditConfig{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		MinInterval:  cfg.Reddit.MinInterval,
	})

	finderOpts := []processing.FinderOption{
		processing.WithSearchLimit(cfg.Analysis.SearchLimit),
		processing.WithHotLimit(cfg.Analysis.HotLimit),
	}
	if len(cfg.Analysis.Subreddits) > 0 {
		finderOpts = append(finderOpts, processing.WithSubreddits(cfg.Analysis.Subreddits))
	}
	finder := processing.NewFinder(reddit, finderOpts...)

	aggregator := sentiment.NewAggregator(sentiment.NewVaderScorer(),
		sentiment.WithFilter(sentiment.NewFilter(cfg.Analysis.MinCommentLength, cfg.Analysis.StrictFilter)),
		sentiment.WithWorkers(cfg.Analysis.ScoringWorkers))
	analyzer := processing.NewAnalyzer(reddit, aggregator, summaries, cfg.Analysis.CommentLimit)

	refl := reflections.NewService(backend, reflections.WithRetention(cfg.Store.RetentionRows))
	digests := digest.NewBuilder(refl, summaries, digest.WithTopHeadlines(cfg.Digest.Top))

	morning := scheduler.New("morning-digest", digests.Refresh)
	if err := morning.Daily(cfg.Digest.At, cfg.Digest.Timezone); err != nil {
		slog.Error("[Dashboard] Failed to schedule digest", slog.String("error", err.Error()))
		os.Exit(1)
	}
	morning.Start()
	defer morning.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.MonitorSummarizerHealth(ctx, completer, &healthy, cfg.Summarizer.HealthEvery)
	}()

	if cfg.Warm.Interval > 0 {
		warmer := producer.NewWarmer(finder, analyzer, cfg.Warm.Subreddits)
		wg.Add(1)
		go func() {
			defer wg.Done()
			warmer.Run(ctx, cfg.Warm.Interval)
		}()
	}

	srv := api.NewServer(api.Deps{
		Finder:      finder,
		Analyzer:    analyzer,
		Reflections: refl,
		Digest:      digests,
		Healthy:     &healthy,
		PageSize:    cfg.Analysis.PageSize,
	})

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// analysis waits on Reddit and the summarizer
		WriteTimeout: cfg.Summarizer.Timeout + 60*time.Second,
	}

	go func() {
		slog.Info("[Dashboard] Server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Dashboard] Server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Dashboard] Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Dashboard] Server shutdown", slog.String("error", err.Error()))
	}
	wg.Wait()
}

func openBackend(ctx context.Context, cfg *config.Config) (db.Backend, error) {
	switch cfg.Store.Backend {
	case config.StoreDynamoDB:
		client, err := clients.NewDynamoDBClient(ctx, clients.AWSConfig{
			Region:   cfg.Store.AWSRegion,
			Endpoint: cfg.Store.AWSEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return db.NewDynamoBackend(client, cfg.Store.DynamoPrefix), nil
	default:
		return db.NewSQLiteBackend(cfg.Store.SQLitePath)
	}
}

func newSummarizer(cfg *config.Config) summarizerClient {
	if cfg.Summarizer.Backend == config.SummarizerHuggingFace {
		return clients.NewHuggingFaceClient(clients.HuggingFaceConfig{
			Endpoint: cfg.Summarizer.HFEndpoint,
			Timeout:  cfg.Summarizer.Timeout,
		})
	}
	return clients.NewOpenAIClient(clients.OpenAIConfig{
		APIKey:  cfg.Summarizer.OpenAIKey,
		Model:   cfg.Summarizer.OpenAIModel,
		Timeout: cfg.Summarizer.Timeout,
	})
}

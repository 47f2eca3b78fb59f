package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/api"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/cache"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/client"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/config"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/events"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/identity"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/logging"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/normalizer"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/service"
)

const shutdownTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("autoreply stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	policy, err := identity.ParsePolicy(cfg.Reply.NumberingPolicy)
	if err != nil {
		return err
	}
	resolver := identity.NewResolver(policy)

	if cfg.Platform.Token == "" || cfg.Platform.PhoneNumberID == "" {
		logger.Warn("WHATSAPP_TOKEN or PHONE_NUMBER_ID not set, replies will fail until configured")
	}
	graph := client.NewGraphClient(cfg.Platform)

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.AMQP.Enabled {
		rp, err := events.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return err
		}
		publisher = rp
	}
	defer publisher.Close()

	dispatcher := service.NewDispatcher(graph, service.ReplyOptions{
		Prefix:   cfg.Reply.Prefix,
		Template: replyTemplate(cfg.Reply),
	}).WithHooks(service.PublishingHooks(publisher, logger))

	if cfg.Reply.AllowedAddress != "" {
		dispatcher.WithAllowPolicy(service.AllowOnly(resolver.Canonicalize(cfg.Reply.AllowedAddress)))
	}

	opts := []service.PipelineOption{service.WithPublisher(publisher)}
	if cfg.Reply.SelfAddress != "" {
		opts = append(opts, service.WithSelfAddress(resolver.Canonicalize(cfg.Reply.SelfAddress)))
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, delivery guard will fail open", "error", err.Error())
		}
		opts = append(opts, service.WithDeliveryGuard(cache.NewRedisGuard(rdb, cfg.Redis.TTL)))
	}

	pipeline := service.NewPipeline(normalizer.New(logger), resolver, dispatcher, logger, opts...)

	handler := api.NewHandler(api.Options{
		VerifyToken: cfg.Webhook.VerifyToken,
		AppSecret:   cfg.Webhook.AppSecret,
		HealthText:  cfg.Server.HealthText,
	}, pipeline, logger)
	if cfg.Server.DebugEndpoint {
		handler.WithDebug(graph)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("autoreply starting",
		"addr", cfg.Server.Address,
		"numbering_policy", policy,
		"template", cfg.Reply.TemplateName != "",
		"redis", cfg.Redis.Enabled,
		"amqp", cfg.AMQP.Enabled,
		"debug_endpoint", cfg.Server.DebugEndpoint,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := handler.Wait(shutdownCtx); err != nil {
			logger.Error("abandoning webhook tasks at shutdown deadline",
				"pending", handler.Pending(),
				"error", err.Error(),
			)
		}
		return nil
	})
	return g.Wait()
}

func replyTemplate(cfg config.ReplyConfig) *model.TemplateRef {
	if cfg.TemplateName == "" {
		return nil
	}
	return &model.TemplateRef{Name: cfg.TemplateName, LanguageCode: cfg.TemplateLanguage}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/ai"
	"github.com/preetsinghmakkar/groupcall/internal/config"
	"github.com/preetsinghmakkar/groupcall/internal/handlers"
	"github.com/preetsinghmakkar/groupcall/internal/metrics"
	"github.com/preetsinghmakkar/groupcall/internal/queue"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/routes"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/preetsinghmakkar/groupcall/internal/sessionlock"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
)

const (
	connectTimeout = 10 * time.Second
	lockPrefix     = "groupcall:"
	streamMaxLen   = 10000
	memoryQueueLen = 1024
)

// transcriptChannel is the message channel seen from both ends.
type transcriptChannel interface {
	queue.Producer
	queue.Consumer
}

func setupDI(cfg *config.Config, log zerolog.Logger, dispatch services.Dispatcher) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, dispatch)
	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})

	registerInfrastructure(injector)
	registerStores(injector)
	registerServices(injector)
	registerHTTP(injector)

	return injector
}

func registerInfrastructure(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*sql.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return repositories.Open(ctx, cfg.DatabaseURL)
	})

	do.Provide(injector, func(i do.Injector) (redis.UniversalClient, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is not set")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return client, nil
	})

	do.Provide(injector, func(i do.Injector) (*sessionlock.Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[zerolog.Logger](i)
		opts := []sessionlock.Option{sessionlock.WithLogger(log.With().Str("component", "locks").Logger())}
		if cfg.RedisURL != "" {
			client, err := do.Invoke[redis.UniversalClient](i)
			if err != nil {
				return nil, err
			}
			opts = append(opts, sessionlock.WithLocker(sessionlock.NewRedisLocker(client, lockPrefix), cfg.SessionLockTTL))
		}
		return sessionlock.NewManager(opts...), nil
	})

	do.Provide(injector, func(i do.Injector) (transcriptChannel, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[zerolog.Logger](i).With().Str("component", "queue").Logger()
		if cfg.RedisURL == "" {
			log.Warn().Msg("REDIS_URL not set, using in-process transcript channel")
			return queue.NewMemory(memoryQueueLen, log), nil
		}
		client, err := do.Invoke[redis.UniversalClient](i)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisStream(client,
			queue.WithStream(cfg.TranscriptStream),
			queue.WithGroup(cfg.TranscriptGroup),
			queue.WithMaxLen(streamMaxLen),
			queue.WithStreamLogger(log),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*websocket.Hub, error) {
		return websocket.NewHub(do.MustInvoke[zerolog.Logger](i), do.MustInvoke[*metrics.Metrics](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*ai.Coach, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := ai.NewClient(ai.Config{URL: cfg.AIURL, Token: cfg.AIToken, Model: cfg.AIModel})
		log := do.MustInvoke[zerolog.Logger](i)
		if !client.Configured() {
			log.Warn().Msg("AI_API_TOKEN not set, feedback and reports use fallback text")
		}
		return ai.NewCoach(client, log, do.MustInvoke[*metrics.Metrics](i)), nil
	})
}

func registerStores(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*repositories.Stores, error) {
		if do.MustInvoke[*config.Config](i).DatabaseURL == "" {
			return repositories.NewMemoryStores(), nil
		}
		db, err := do.Invoke[*sql.DB](i)
		if err != nil {
			return nil, err
		}
		return repositories.NewPostgresStores(db), nil
	})

	do.Provide(injector, func(i do.Injector) (repositories.SessionStore, error) {
		return do.MustInvoke[*repositories.Stores](i).Sessions, nil
	})
	do.Provide(injector, func(i do.Injector) (repositories.TranscriptionStore, error) {
		return do.MustInvoke[*repositories.Stores](i).Transcriptions, nil
	})
	do.Provide(injector, func(i do.Injector) (repositories.ReportStore, error) {
		return do.MustInvoke[*repositories.Stores](i).Reports, nil
	})
	do.Provide(injector, func(i do.Injector) (repositories.AuditLogStore, error) {
		return do.MustInvoke[*repositories.Stores](i).AuditLogs, nil
	})
	do.Provide(injector, func(i do.Injector) (repositories.UserStore, error) {
		return do.MustInvoke[*repositories.Stores](i).Users, nil
	})
}

func serviceOptions(i do.Injector) []services.Option {
	return []services.Option{
		services.WithLogger(do.MustInvoke[zerolog.Logger](i)),
		services.WithMetrics(do.MustInvoke[*metrics.Metrics](i)),
		services.WithDispatcher(do.MustInvoke[services.Dispatcher](i)),
	}
}

func registerServices(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*services.ReportService, error) {
		return services.NewReportService(
			do.MustInvoke[repositories.SessionStore](i),
			do.MustInvoke[repositories.TranscriptionStore](i),
			do.MustInvoke[repositories.ReportStore](i),
			do.MustInvoke[*ai.Coach](i),
			serviceOptions(i)...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.AdmissionService, error) {
		return services.NewAdmissionService(
			do.MustInvoke[repositories.SessionStore](i),
			do.MustInvoke[repositories.TranscriptionStore](i),
			do.MustInvoke[repositories.UserStore](i),
			do.MustInvoke[*sessionlock.Manager](i),
			do.MustInvoke[*websocket.Hub](i),
			do.MustInvoke[*services.ReportService](i),
			serviceOptions(i)...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.TranscriptService, error) {
		return services.NewTranscriptService(
			do.MustInvoke[repositories.TranscriptionStore](i),
			do.MustInvoke[transcriptChannel](i),
			do.MustInvoke[*websocket.Hub](i),
			serviceOptions(i)...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.FeedbackWorker, error) {
		return services.NewFeedbackWorker(
			do.MustInvoke[transcriptChannel](i),
			do.MustInvoke[*ai.Coach](i),
			do.MustInvoke[*websocket.Hub](i),
			serviceOptions(i)...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.AuditService, error) {
		return services.NewAuditService(do.MustInvoke[repositories.AuditLogStore](i), serviceOptions(i)...), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.AdminService, error) {
		return services.NewAdminService(
			do.MustInvoke[*services.AdmissionService](i),
			do.MustInvoke[*services.AuditService](i),
			do.MustInvoke[repositories.UserStore](i),
			serviceOptions(i)...,
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*services.ExpirySweeper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return services.NewExpirySweeper(do.MustInvoke[*services.AdmissionService](i), cfg.SweepInterval, serviceOptions(i)...), nil
	})
}

func registerHTTP(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*gin.Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[zerolog.Logger](i)
		admission := do.MustInvoke[*services.AdmissionService](i)
		transcripts := do.MustInvoke[*services.TranscriptService](i)
		reports := do.MustInvoke[*services.ReportService](i)
		audit := do.MustInvoke[*services.AuditService](i)

		if !cfg.IsDevelopment() {
			gin.SetMode(gin.ReleaseMode)
		}

		h := routes.Handlers{
			Session:   handlers.NewSessionHandler(admission, transcripts, log),
			Report:    handlers.NewReportHandler(reports, admission, log),
			Admin:     handlers.NewAdminHandler(do.MustInvoke[*services.AdminService](i), audit, log),
			WebSocket: handlers.NewWebSocketHandler(do.MustInvoke[*websocket.Hub](i), transcripts, admission, cfg.CORSOrigins, cfg.SendBuffer, log),
		}
		return routes.NewRouter(h, routes.Options{
			AllowedOrigins: cfg.CORSOrigins,
			JWTSecret:      cfg.JWTSecret,
			Metrics:        do.MustInvoke[*metrics.Metrics](i).Handler(),
			Logger:         log,
		}), nil
	})
}

// closeResources releases connections that were actually opened.
func closeResources(injector do.Injector, cfg *config.Config, log zerolog.Logger) {
	if cfg.DatabaseURL != "" {
		if db, err := do.Invoke[*sql.DB](injector); err == nil {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close database")
			}
		}
	}
	if cfg.RedisURL != "" {
		if client, err := do.Invoke[redis.UniversalClient](injector); err == nil {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("close redis")
			}
		}
	}
}

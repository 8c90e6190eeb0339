package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/treehouse-chat/treehouse-backend/api/routes"
	"github.com/treehouse-chat/treehouse-backend/internal/accounts"
	"github.com/treehouse-chat/treehouse-backend/internal/auth"
	"github.com/treehouse-chat/treehouse-backend/internal/channels"
	"github.com/treehouse-chat/treehouse-backend/internal/invitations"
	"github.com/treehouse-chat/treehouse-backend/internal/memberships"
	"github.com/treehouse-chat/treehouse-backend/internal/messages"
	"github.com/treehouse-chat/treehouse-backend/internal/profiles"
	"github.com/treehouse-chat/treehouse-backend/internal/realtime"
	"github.com/treehouse-chat/treehouse-backend/internal/users"
	"github.com/treehouse-chat/treehouse-backend/pkg/auth/session"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/db"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
	"github.com/treehouse-chat/treehouse-backend/pkg/metrics"
	"github.com/treehouse-chat/treehouse-backend/pkg/migrate"
	"github.com/treehouse-chat/treehouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)
	realtimeMetrics := metrics.NewRealtimeMetrics(promRegistry)

	userRepo := users.NewRepository(dbClient.DB())
	profileRepo := profiles.NewRepository(dbClient.DB())
	channelRepo := channels.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	messageRepo := messages.NewRepository(dbClient.DB())
	invitationRepo := invitations.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		ProfileRepo:    profileRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	profileService, err := profiles.NewService(profileRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create profile service", err)
		os.Exit(1)
	}

	accountService, err := accounts.NewService(accounts.ServiceParams{
		UserRepo: userRepo,
		TxRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create account service", err)
		os.Exit(1)
	}

	channelService, err := channels.NewService(channels.ServiceParams{
		ChannelRepo:    channelRepo,
		MembershipRepo: membershipRepo,
		TxRunner:       dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create channel service", err)
		os.Exit(1)
	}

	broker, err := realtime.NewBroker(redisClient, realtimeMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime broker", err)
		os.Exit(1)
	}

	messageService, err := messages.NewService(messages.ServiceParams{
		MessageRepo: messageRepo,
		Access:      channelService,
		ProfileRepo: profileRepo,
		Publisher:   broker,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message service", err)
		os.Exit(1)
	}

	invitationService, err := invitations.NewService(invitations.ServiceParams{
		InvitationRepo: invitationRepo,
		ChannelRepo:    channelRepo,
		Config:         cfg.Invitations,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}

	hub, err := realtime.NewHub(realtime.HubParams{
		Opener:     realtime.RedisStreams{Client: redisClient},
		Metrics:    realtimeMetrics,
		Logger:     logg,
		SendBuffer: cfg.Realtime.SendBufferSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime hub", err)
		os.Exit(1)
	}
	defer hub.Close()

	pump := realtime.NewPump(cfg.Realtime, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			redisClient,
			promRegistry,
			httpMetrics,
			sessionManager,
			authService,
			registerService,
			profileService,
			accountService,
			channelService,
			messageService,
			invitationService,
			hub,
			pump,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

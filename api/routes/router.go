package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/treehouse-chat/treehouse-backend/api/controllers"
	"github.com/treehouse-chat/treehouse-backend/api/middleware"
	"github.com/treehouse-chat/treehouse-backend/internal/accounts"
	"github.com/treehouse-chat/treehouse-backend/internal/auth"
	"github.com/treehouse-chat/treehouse-backend/internal/channels"
	"github.com/treehouse-chat/treehouse-backend/internal/invitations"
	"github.com/treehouse-chat/treehouse-backend/internal/messages"
	"github.com/treehouse-chat/treehouse-backend/internal/profiles"
	"github.com/treehouse-chat/treehouse-backend/internal/realtime"
	"github.com/treehouse-chat/treehouse-backend/pkg/auth/session"
	"github.com/treehouse-chat/treehouse-backend/pkg/config"
	"github.com/treehouse-chat/treehouse-backend/pkg/db"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
	"github.com/treehouse-chat/treehouse-backend/pkg/metrics"
	"github.com/treehouse-chat/treehouse-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP redis.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	profileService profiles.Service,
	accountService accounts.Service,
	channelService channels.Service,
	messageService messages.Service,
	invitationService invitations.Service,
	hub *realtime.Hub,
	pump *realtime.Pump,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cacheP))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
			r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		})

		// Invitation previews are reachable from the emailed link without a login.
		r.Get("/invitations/{token}", controllers.InviteDetails(invitationService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", controllers.ProfileMe(profileService, logg))
				r.Patch("/", controllers.ProfileUpdate(profileService, logg))
				r.Delete("/", controllers.AccountDelete(accountService, sessionManager, logg))
			})

			r.Route("/channels", func(r chi.Router) {
				r.Post("/", controllers.ChannelCreate(channelService, logg))
				r.Get("/", controllers.ChannelList(channelService, logg))

				r.Route("/{channelId}", func(r chi.Router) {
					r.Get("/", controllers.ChannelGet(channelService, logg))
					r.Patch("/", controllers.ChannelUpdate(channelService, logg))
					r.Delete("/", controllers.ChannelDelete(channelService, logg))
					r.Get("/members", controllers.ChannelMembers(channelService, logg))
					r.Post("/leave", controllers.ChannelLeave(channelService, logg))

					r.Route("/messages", func(r chi.Router) {
						r.Post("/", controllers.MessageSend(messageService, logg))
						r.Get("/", controllers.MessageList(messageService, logg))
						r.Get("/subscribe", controllers.MessageSubscribe(channelService, hub, pump, logg))
					})

					r.Route("/invitations", func(r chi.Router) {
						r.Post("/", controllers.InviteCreate(invitationService, logg))
						r.Get("/", controllers.InviteList(invitationService, logg))
					})
				})
			})

			r.Post("/invitations/{token}/accept", controllers.InviteAccept(invitationService, logg))
			r.Delete("/invitations/{token}", controllers.InviteRevoke(invitationService, logg))
		})
	})

	return r
}

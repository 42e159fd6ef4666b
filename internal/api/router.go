package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/actionable-app/actionable/internal/app"
	iauth "github.com/actionable-app/actionable/internal/auth"
	"github.com/actionable-app/actionable/internal/auth/providers"
	"github.com/actionable-app/actionable/internal/cache"
	"github.com/actionable-app/actionable/internal/handlers"
	"github.com/actionable-app/actionable/internal/middleware"
	"github.com/actionable-app/actionable/internal/notify"
	"github.com/actionable-app/actionable/internal/realtime"
	"github.com/actionable-app/actionable/internal/services"
	"github.com/actionable-app/actionable/internal/storage"
)

// Dependencies bundles the wired components the router mounts.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Local    *providers.LocalProvider
	Google   *providers.GoogleProvider
	Accounts *iauth.AccountService
	KV       cache.Store
	Hub      *realtime.Hub
	Notify   *notify.Service
	Avatars  *storage.Bucket
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil || deps.Sessions == nil || deps.Local == nil || deps.Accounts == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}
	if deps.KV == nil {
		return nil, fmt.Errorf("key-value store must be provided")
	}

	taskService, err := services.NewTaskService(deps.DB, deps.Hub)
	if err != nil {
		return nil, err
	}
	upcomingService, err := services.NewUpcomingService(deps.DB)
	if err != nil {
		return nil, err
	}
	profileService, err := services.NewProfileService(deps.DB)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	cfg := deps.Config
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(middleware.NewRateStore(deps.KV), cfg.Server.RateLimit, cfg.Server.RateLimitWindow))

	r.GET("/health", handlers.Health())
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(
		deps.Local, deps.Google, deps.Accounts, deps.Sessions,
		deps.KV, deps.Hub, cfg.Auth.DeepLinkURL,
	)
	taskHandler := handlers.NewTaskHandler(taskService, upcomingService)
	profileHandler := handlers.NewProfileHandler(profileService, deps.Avatars)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub)

	if deps.Avatars != nil {
		r.GET("/avatars/*path", profileHandler.ServeAvatar)
	}

	// Public auth routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/signin", authHandler.SignIn)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/exchange", authHandler.ExchangeCode)
		authGroup.GET("/oauth/google", authHandler.BeginGoogle)
		authGroup.GET("/oauth/google/callback", authHandler.GoogleCallback)
	}

	requireAuth := middleware.Auth(deps.JWT)

	apiGroup := r.Group("/api")
	apiGroup.Use(requireAuth)

	apiGroup.GET("/auth/me", authHandler.Me)
	apiGroup.POST("/auth/signout", authHandler.SignOut)

	tasks := apiGroup.Group("/tasks")
	{
		tasks.GET("", taskHandler.List)
		tasks.POST("", taskHandler.Create)
		tasks.GET("/upcoming", taskHandler.Upcoming)
		tasks.DELETE("/completed", taskHandler.DeleteCompleted)
		tasks.POST("/complete-all", taskHandler.MarkAllComplete)
		tasks.GET("/:id", taskHandler.Get)
		tasks.PATCH("/:id", taskHandler.Update)
		tasks.POST("/:id/toggle", taskHandler.Toggle)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	profile := apiGroup.Group("/profile")
	{
		profile.GET("", profileHandler.Get)
		profile.PATCH("", profileHandler.Update)
		profile.POST("/avatar", profileHandler.UploadAvatar)
	}

	if deps.Notify != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Notify)
		notifications := apiGroup.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.DELETE("", notificationHandler.ClearAll)
			notifications.POST("/reminders", notificationHandler.ScheduleReminder)
			notifications.POST("/daily-summary", notificationHandler.EnableDailySummary)
			notifications.DELETE("/daily-summary", notificationHandler.DisableDailySummary)
			notifications.POST("/push", notificationHandler.RegisterPush)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/:id/snooze", notificationHandler.Snooze)
		}
	}

	if deps.Hub != nil {
		apiGroup.GET("/realtime", realtimeHandler.Serve)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fitcoach/internal/auth"
	"fitcoach/internal/billing"
	"fitcoach/internal/calendar"
	"fitcoach/internal/config"
	"fitcoach/internal/ledger"
	"fitcoach/internal/notify"
	"fitcoach/internal/reminder"
	"fitcoach/internal/session"
	"fitcoach/internal/user"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	notify *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service, sweeper *reminder.Sweeper) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	userRepo := user.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	sessionRepo := session.NewRepository(db)

	userService := user.NewService(userRepo, cfg.JWTSecret)
	ledgerService := ledger.NewService(ledgerRepo)
	sessionService := session.NewService(sessionRepo, ledgerService, userRepo, notifyService)

	userHandler := user.NewHandler(userService)
	ledgerHandler := ledger.NewHandler(ledgerService)
	sessionHandler := session.NewHandler(sessionService)
	billingHandler := billing.NewHandler(ledgerService, cfg.StripeWebhookSecret)
	calendarHandler := calendar.NewHandler(sessionService, cfg.CalcomWebhookSecret)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/billing", billingHandler.HandleWebhook)
		webhooks.POST("/calendar", calendarHandler.HandleWebhook)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.GET("/packages", ledgerHandler.ListMyPackages)
		protected.GET("/sessions", sessionHandler.ListMySessions)
		protected.POST("/sessions/recurring", sessionHandler.BookRecurring)
		protected.POST("/sessions/:sessionID/cancel", sessionHandler.CancelSession)
	}

	coach := router.Group("/coach")
	coach.Use(authMiddleware, auth.RequireRole(auth.RoleCoach))
	{
		coach.GET("/clients", userHandler.ListClients)
		coach.GET("/clients/:clientID/sessions", sessionHandler.ListClientSessions)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/users", userHandler.ListUsers)
		admin.GET("/packages", ledgerHandler.ListAllPackages)
		admin.POST("/packages/:packageID/cancel", ledgerHandler.CancelPackage)
		admin.GET("/sessions/stats", sessionHandler.GetSessionStats)
		admin.POST("/reminders/run", RunReminders(sweeper))
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-notification", TestNotification(notifyService))
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		notify: notifyService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"boxbook/internal/auth"
	"boxbook/internal/config"
	"boxbook/internal/enrollment"
	"boxbook/internal/ledger"
	"boxbook/internal/notify"
	"boxbook/internal/schedule"
	"boxbook/internal/tariff"
	"boxbook/internal/user"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
}

func New(db *sqlx.DB, cfg *config.Config, notifier *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	classRepo := schedule.NewRepository(db)
	classHandler := schedule.NewHandler(classRepo)

	tariffRepo := tariff.NewRepository(db)
	tariffHandler := tariff.NewHandler(tariffRepo)

	creditLedger := ledger.NewRepository(db)
	ledgerHandler := ledger.NewHandler(creditLedger, tariffRepo)

	store := enrollment.NewStore(db)
	evaluator := tariff.NewEvaluator(tariffRepo, store)
	enrollService := enrollment.NewService(store, classRepo, tariffRepo, creditLedger, evaluator, notifier)
	enrollHandler := enrollment.NewHandler(enrollService)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.Me)

		protected.GET("/classes", classHandler.ListClasses)
		protected.GET("/classes/:id", classHandler.GetClass)
		protected.GET("/classes/:id/enrollments", enrollHandler.GetClassRoster)

		protected.POST("/classes/:id/enroll", enrollHandler.Enroll)
		protected.DELETE("/classes/:id/enroll", enrollHandler.Cancel)
		protected.POST("/classes/:id/waitlist", enrollHandler.MoveToWaitlist)
		protected.DELETE("/classes/:id/waitlist", enrollHandler.WaitlistCancel)
		protected.POST("/classes/:id/reinstate", enrollHandler.Reinstate)
		protected.GET("/enrollments", enrollHandler.GetMyEnrollments)

		protected.GET("/credits", ledgerHandler.GetMyCredits)
		protected.GET("/credits/transactions", ledgerHandler.GetMyTransactions)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/classes", classHandler.CreateClass)
		admin.POST("/classes/:id/cancel", classHandler.CancelClass)
		admin.POST("/classes/:id/promote", enrollHandler.Promote)
		admin.DELETE("/enrollments/:id", enrollHandler.DeleteRecord)

		admin.POST("/tariffs", tariffHandler.CreatePlan)
		admin.POST("/tariffs/:id/rules", tariffHandler.CreateWeeklyRule)
		admin.POST("/assignments", tariffHandler.CreateAssignment)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
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

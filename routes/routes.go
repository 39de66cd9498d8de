package routes

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/astrodart-api/config"
	"github.com/LovationAdmin/astrodart-api/handlers"
	"github.com/LovationAdmin/astrodart-api/middleware"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

// NewRouter wires CORS, request logging, rate limiting and every route.
func NewRouter(cfg *config.Config, s store.Store, agg handlers.Aggregator, ws *handlers.WSHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	log.Printf("🌍 CORS: Allowing origin %s", cfg.FrontendURL)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		utils.LogAPIRequest(c.Request.Method, c.Request.URL.Path, middleware.GetUserID(c), c.Writer.Status(), time.Since(start).String())
	})

	router.Use(middleware.RateLimiter(cfg.RateLimit))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
			"mode":   utils.GetEnvMode(),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	plaidHandler := handlers.NewPlaidHandler(agg, s)

	api := router.Group("/api")
	{
		SetupAuthRoutes(api, s, cfg)
		SetupPublicPlaidRoutes(api, plaidHandler)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		{
			SetupUserRoutes(protected, s)
			SetupPlaidRoutes(protected, plaidHandler)
			protected.GET("/ws", ws.HandleWS)
		}
	}

	return router
}

// SetupAuthRoutes sets up public account routes.
func SetupAuthRoutes(rg *gin.RouterGroup, s store.Store, cfg *config.Config) {
	authHandler := &handlers.AuthHandler{
		Store:     s,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
	}
	userHandler := &handlers.UserHandler{Store: s}

	rg.POST("/login", authHandler.Login)
	rg.PUT("/user", authHandler.Signup)
	rg.DELETE("/user", userHandler.DeleteAccount)
}

// SetupUserRoutes sets up protected document routes.
func SetupUserRoutes(rg *gin.RouterGroup, s store.Store) {
	userHandler := &handlers.UserHandler{Store: s}

	rg.POST("/checklist", userHandler.UpdateChecklist)
	rg.POST("/items", userHandler.UpdateItems)
	rg.POST("/user/2fa/setup", userHandler.SetupTOTP)
	rg.POST("/user/2fa/verify", userHandler.VerifyTOTP)
	rg.POST("/user/2fa/disable", userHandler.DisableTOTP)
}

func SetupPublicPlaidRoutes(rg *gin.RouterGroup, h *handlers.PlaidHandler) {
	rg.GET("/info", h.Info)
	rg.GET("/categories", h.Categories)
}

// SetupPlaidRoutes sets up the protected aggregator pass-throughs.
func SetupPlaidRoutes(rg *gin.RouterGroup, h *handlers.PlaidHandler) {
	rg.POST("/create_link_token", h.CreateLinkToken)
	rg.POST("/set_access_token", h.SetAccessToken)
	rg.POST("/auth", h.Auth)
	rg.POST("/balance", h.Balance)
	rg.POST("/liabilities", h.Liabilities)
	rg.POST("/investments", h.Investments)
	rg.POST("/transactions", h.Transactions)
}

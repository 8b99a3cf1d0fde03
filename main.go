// main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/carelens-app/carelens/ai"
	"github.com/carelens-app/carelens/config"
	"github.com/carelens-app/carelens/endpoint"
	"github.com/carelens-app/carelens/middleware"
	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.HealthLog{}, &model.Session{}, &model.SecurityLog{}); err != nil {
		log.Fatalf("Error migrating schema: %v", err)
	}

	// Security events persist to the same DB; geoip and the username cache
	// enrich them (both optional).
	util.SetSecurityLoggerDB(db)
	util.InitUsernameCacheFromEnv()
	if err := util.InitGeoIP(""); err != nil {
		log.Printf("GeoIP disabled: %v", err)
	}

	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, falling back to DB sessions: %v", err)
	}

	// Without a key the analysis endpoints answer 500; everything else
	// keeps working.
	if aiClient, err := ai.NewClient(ai.ConfigFromEnv()); err != nil {
		log.Printf("Analysis client disabled: %v", err)
	} else {
		endpoint.SetAIClient(aiClient)
	}

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	// Basic HTTP handler for root path
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	api := router.Group("/api")

	authLimiter := middleware.RateLimiter(middleware.RateLimitConfig{})
	api.POST("/register", authLimiter, endpoint.Register)
	api.POST("/login", authLimiter, endpoint.Login)
	api.DELETE("/logout", endpoint.Logout)

	authed := api.Group("")
	authed.Use(middleware.SessionAuth())

	authed.GET("/user", endpoint.CurrentUser)
	authed.GET("/profile", endpoint.GetProfile)
	authed.POST("/profile", endpoint.UpdateProfile)

	// One outbound AI call per request; rate limit the expensive endpoints.
	aiLimiter := middleware.RateLimiter(middleware.RateLimitConfig{Limit: 10})
	authed.POST("/symptoms/analyze", aiLimiter, endpoint.AnalyzeSymptoms)
	authed.GET("/symptoms", endpoint.ListSymptomLogs)
	authed.DELETE("/symptoms", endpoint.ClearSymptomLogs)
	authed.POST("/risks/assess", aiLimiter, endpoint.AssessRisks)

	authed.POST("/health-logs", endpoint.CreateHealthLog)
	authed.GET("/health-logs", endpoint.ListHealthLogs)
	authed.GET("/lifestyle", endpoint.GetLifestyle)
	authed.POST("/lifestyle", endpoint.LogLifestyle)

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}

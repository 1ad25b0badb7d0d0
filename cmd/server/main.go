package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/voicebridge/go-convai-mirror/internal/api/handlers"
	"github.com/voicebridge/go-convai-mirror/internal/api/middleware"
	"github.com/voicebridge/go-convai-mirror/internal/config"
	"github.com/voicebridge/go-convai-mirror/internal/elevenlabs"
	"github.com/voicebridge/go-convai-mirror/internal/repository"
	"github.com/voicebridge/go-convai-mirror/internal/service"
)

func main() {

	// LOAD ENV
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed load config:", err)
	}
	if cfg.ElevenLabsAPIKey == "" {
		log.Println("WARNING: ELEVENLABS_API_KEY is empty, sync requests will fail")
	}

	// INIT DB
	repo, err := repository.NewPostgresRepoFromConfig(&repository.DBConfig{
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal("failed connect db:", err)
	}

	// MIGRATIONS
	if err := repo.RunMigrations(context.Background()); err != nil {
		log.Fatal("migration error:", err)
	}

	// ADMIN SEED
	hashed, _ := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err := repo.UpsertAdmin(context.Background(), cfg.AdminUsername, string(hashed)); err != nil {
		log.Println("failed seeding admin:", err)
	} else {
		log.Println("admin seeded OK")
	}

	// SERVICES
	client := elevenlabs.NewClient(cfg.ElevenLabsAPIKey)
	syncService := service.NewSyncService(repo, client)
	syncService.PageSize = cfg.SyncPageSize
	syncService.MaxPages = cfg.SyncMaxPages
	syncService.BatchSize = cfg.SyncBatchSize
	syncService.PageDelay = cfg.SyncPageDelay
	syncService.BatchDelay = cfg.SyncBatchDelay

	// HANDLERS
	authHandler := handlers.NewAuthHandler(repo, cfg.JWTSecret)
	syncHandler := handlers.NewSyncHandler(syncService, repo, cfg.AgentID)
	convHandler := handlers.NewConversationHandler(repo, cfg.AgentID)

	// ROUTER
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api := r.Group("/api/v1")

	// AUTH ROUTES
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// SYNC ROUTES (protected)
	sync := api.Group("/sync")
	sync.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		sync.POST("/conversations", syncHandler.TriggerSync)
		sync.GET("/history", syncHandler.GetSyncHistory)
	}

	// READ ROUTES
	api.GET("/conversations", convHandler.ListConversations)
	api.GET("/conversations/:id", convHandler.GetConversation)
	api.GET("/agents/:id/stats", convHandler.GetAgentStats)

	// START SERVER
	log.Println("Server running on port:", cfg.Port)
	r.Run(":" + cfg.Port)
}

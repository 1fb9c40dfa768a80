package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"geoguesser-backend/internal/config"
	"geoguesser-backend/internal/database"
	"geoguesser-backend/internal/handlers"
	"geoguesser-backend/internal/middleware"
	"geoguesser-backend/internal/mirror"
	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/repository"
	"geoguesser-backend/internal/router"
	"geoguesser-backend/internal/services"
	"geoguesser-backend/internal/session"
	"geoguesser-backend/internal/storage"
	"geoguesser-backend/internal/websocket"
)

// conversationClient adapts the concrete Gemini client to the session
// package's interface.
type conversationClient struct {
	client *services.ConversationClient
}

func (c *conversationClient) StartSession(ctx context.Context, imageData []byte, mimeType string) (session.Conversation, *models.LocationGuess, error) {
	conv, guess, err := c.client.StartSession(ctx, imageData, mimeType)
	if err != nil {
		return nil, nil, err
	}
	return conv, guess, nil
}

func main() {
	log.Println("🚀 Starting GeoGuesser Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	var logger *zap.Logger
	var err error
	if cfg.Env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer logger.Sync()

	// ──── Step 2: Initialize MongoDB ────
	mongoDB, err := database.NewMongo(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("✗ MongoDB connection failed: %v", err)
	}
	defer mongoDB.Close()
	log.Println("✓ MongoDB connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Initialize Local Storage ────
	imageStore, err := storage.NewImageStore(cfg.StoragePath, logger)
	if err != nil {
		log.Fatalf("✗ Image storage initialization failed: %v", err)
	}
	log.Println("✓ Image storage ready")

	mirrorStore, err := mirror.Open(cfg.MirrorPath)
	if err != nil {
		log.Fatalf("✗ Mirror database initialization failed: %v", err)
	}
	defer mirrorStore.Close()
	log.Println("✓ Local mirror ready")

	// ──── Step 5: Initialize Gemini Client ────
	aiClient, err := services.NewConversationClient(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs, logger)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer aiClient.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Repositories & Services ────
	logRepo := repository.NewLogRepo(mongoDB.DB, redisClients.Cache, logger)
	manager := session.NewManager(&conversationClient{client: aiClient}, logRepo, mirrorStore, imageStore, logger)

	// ──── Initialize Handlers ────
	adminAuth := middleware.NewAdminAuth(cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(manager)
	logHandler := handlers.NewLogHandler(logRepo, imageStore)
	mirrorHandler := handlers.NewMirrorHandler(mirrorStore)
	adminHandler := handlers.NewAdminHandler(adminAuth, cfg.AdminPasswordHash)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, adminAuth, logger)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		adminAuth,
		sessionHandler,
		logHandler,
		mirrorHandler,
		adminHandler,
		wsHub,
		cfg.StoragePath,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ GeoGuesser Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/api/handlers"
	cacheredis "github.com/primesandzooms/chatbot-backend/internal/cache/redis"
	"github.com/primesandzooms/chatbot-backend/internal/ingestion"
	"github.com/primesandzooms/chatbot-backend/internal/llm"
	"github.com/primesandzooms/chatbot-backend/internal/metrics"
	"github.com/primesandzooms/chatbot-backend/internal/middleware/ratelimit"
	"github.com/primesandzooms/chatbot-backend/internal/middleware/security"
	"github.com/primesandzooms/chatbot-backend/internal/middleware/validation"
	"github.com/primesandzooms/chatbot-backend/internal/rag"
	"github.com/primesandzooms/chatbot-backend/internal/storage/sqlite"
	"github.com/primesandzooms/chatbot-backend/internal/telegram"
	"github.com/primesandzooms/chatbot-backend/internal/vector/milvus"
	"github.com/primesandzooms/chatbot-backend/pkg/config"
	appLogger "github.com/primesandzooms/chatbot-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Primes and Zooms chatbot API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var embeddingCache llm.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		embeddingCache,
	)

	milvusClient, err := milvus.NewClient(
		context.Background(),
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
		cfg.LLM.EmbeddingModel,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	scraper := ingestion.NewScraper(cfg.Crawler)
	chunker, err := ingestion.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Invalid chunker configuration", zap.Error(err))
	}

	pipeline := ingestion.NewPipeline(scraper, chunker, llmClient, milvusClient, sqliteClient)
	engine := rag.NewEngine(llmClient, milvusClient, llmClient, sqliteClient, cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	chatHandler := handlers.NewChatHandler(engine, sqliteClient)
	streamHandler := handlers.NewStreamHandler(engine)
	adminHandler := handlers.NewAdminHandler(pipeline, milvusClient)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/history", chatHandler.GetHistory)

	api.Use("/chat/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/chat/stream", websocket.New(streamHandler.HandleConnection))

	api.Post("/admin/ingest", adminHandler.HandleIngest)
	api.Get("/admin/stats", adminHandler.HandleStats)
	api.Post("/admin/clear", adminHandler.HandleClear)

	if cfg.Telegram.BotToken != "" {
		bot := telegram.NewBot(cfg.Telegram.BotToken, engine)
		telegramHandler := handlers.NewTelegramHandler(bot, cfg.Telegram.WebhookSecret)
		api.Post("/telegram/webhook", telegramHandler.HandleWebhook)
		api.Post("/telegram/webhook/setup", telegramHandler.HandleWebhookSetup)
	}

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "primes-and-zooms-chatbot",
			"time":    time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

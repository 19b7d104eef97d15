package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/deltapoly/assistant/config"
	"github.com/deltapoly/assistant/internal/api/handlers"
	"github.com/deltapoly/assistant/internal/api/middleware"
	"github.com/deltapoly/assistant/internal/api/routes"
	"github.com/deltapoly/assistant/internal/assistant"
	"github.com/deltapoly/assistant/internal/cache"
	"github.com/deltapoly/assistant/internal/logger"
	"github.com/deltapoly/assistant/internal/prompt"
	"github.com/deltapoly/assistant/internal/providers/embed"
	"github.com/deltapoly/assistant/internal/providers/llm"
	"github.com/deltapoly/assistant/internal/ratelimit"
	mongorepo "github.com/deltapoly/assistant/internal/repositories/mongo"
	pgrepo "github.com/deltapoly/assistant/internal/repositories/postgres"
	"github.com/deltapoly/assistant/internal/retrieval"
	"github.com/deltapoly/assistant/internal/sanitize"
	"github.com/deltapoly/assistant/internal/services"
	"github.com/deltapoly/assistant/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx := context.Background()
	settings := config.LoadAssistantSettings()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.EnsurePostgresSchema(); err != nil {
		log.Fatalf("PostgreSQL schema error: %v", err)
	}
	l.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	l.Info("MongoDB connected")

	// Providers
	gen, err := llm.NewVertexGemini(ctx, settings.GCPProject, settings.GCPLocation, settings.GenModel)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer gen.Close()

	embedder, err := embed.NewVertexEmbedder(ctx, settings.GCPProject, settings.GCPLocation, settings.EmbedModel)
	if err != nil {
		log.Fatalf("Embedder init error: %v", err)
	}

	// Repositories
	convoRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	productRepo := pgrepo.NewProductRepo(config.PostgresDB)
	kbRepo := mongorepo.NewKnowledgeRepo(config.MongoDatabase())

	// Retrieval
	productSearcher := retrieval.NewPGProductSearcher(embedder, productRepo)
	kbSearcher := retrieval.NewMongoKnowledgeSearcher(kbRepo)
	retriever := retrieval.NewService(
		productSearcher,
		kbSearcher,
		cache.NewRedisCache(config.RedisClient),
		retrieval.Config{Timeout: settings.RetrievalTimeout},
		l,
	)

	// Assistant core
	convos := services.NewConversationService(convoRepo)
	limiter := ratelimit.NewRedisLimiter(config.RedisClient, l)
	executor := assistant.NewToolExecutor(assistant.NewRegistry(assistant.RegistryDeps{
		Products: productRepo,
		Searcher: productSearcher,
	}), l)

	orch := assistant.NewOrchestrator(
		assistant.Config{
			MaxToolTurns: settings.MaxToolTurns,
			HistoryLimit: settings.HistoryLimit,
			PromptTier:   prompt.TierStandard,
			ShortLimit:   settings.ShortLimit,
			ShortWindow:  settings.ShortWindow,
			LongLimit:    settings.LongLimit,
			LongWindow:   settings.LongWindow,
		},
		limiter, convos, retriever, executor, gen, sanitize.Default(), l,
	)

	archiver := &workers.Archiver{
		Convos:   convoRepo,
		Interval: settings.ArchiveInterval,
		IdleFor:  settings.ArchiveIdleFor,
		Logger:   l,
	}
	if err := archiver.Start(ctx); err != nil {
		log.Fatalf("Archiver start error: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Chat:    handlers.NewChatHandler(orch),
		History: handlers.NewHistoryHandler(convos),
		WS:      handlers.NewWSHandler(orch),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

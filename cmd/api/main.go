// @title LebLingo API
// @version 1.0
// @description Backend API for the LebLingo Lebanese-Arabic learning application.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8090
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"leblingo/internal/adapter"
	"leblingo/internal/adapter/embedding"
	"leblingo/internal/adapter/evaluator"
	"leblingo/internal/adapter/generation"
	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/database"
	"leblingo/internal/domain"
	"leblingo/internal/handler"
	"leblingo/internal/logger"
	"leblingo/internal/middleware"
	"leblingo/internal/repository"
	"leblingo/internal/service"

	_ "leblingo/cmd/api/docs"

	"github.com/gofiber/swagger"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger logs every HTTP request with method, path, status and latency.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// Connect to database
	db, err := database.NewSQLXOracleDB(cfg.DB)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Redis and cache adapter
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	appLogger.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	// Embedding service
	var embeddingService domain.EmbeddingService
	switch cfg.Embedding.Source {
	case "ollama":
		appLogger.Info("Initializing Ollama Embedding Service",
			zap.String("server_url", cfg.Embedding.Ollama.ServerURL),
			zap.String("model", cfg.Embedding.Ollama.Model))
		embeddingService, err = embedding.NewOllamaEmbeddingService(cfg.Embedding.Ollama.ServerURL, cfg.Embedding.Ollama.Model)
		if err != nil {
			appLogger.Fatal("Failed to create Ollama Embedding Service", zap.Error(err))
		}
	case "openai":
		appLogger.Info("Initializing OpenAI Embedding Service", zap.String("model", cfg.Embedding.OpenAI.Model))
		embeddingTTL := cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Embedding, 24*time.Hour)
		embeddingService, err = embedding.NewOpenAIEmbeddingService(cfg.Embedding.OpenAI.APIKey, cfg.Embedding.OpenAI.Model, cacheAdapter, embeddingTTL)
		if err != nil {
			appLogger.Fatal("Failed to create OpenAI Embedding Service", zap.Error(err))
		}
	default:
		appLogger.Fatal(fmt.Sprintf("Unsupported embedding source: %s. Please check EMBEDDING_SOURCE in config.", cfg.Embedding.Source))
	}

	// LLM client shared by story generation, quiz generation and translation judging
	ollamaHTTPClient := &http.Client{Timeout: 20 * time.Second}
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.Ollama.ServerURL),
		ollama.WithModel(cfg.LLM.Ollama.Model),
		ollama.WithHTTPClient(ollamaHTTPClient),
	)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Repositories
	lessonRepository := repository.NewSQLXLessonRepository(db)
	quizRepository := repository.NewSQLXQuizRepository(db)
	profileRepository := repository.NewSQLXProfileRepository(db)
	progressRepository := repository.NewSQLXProgressRepository(db)
	attemptRepository := repository.NewSQLXAttemptRepository(db)
	userRepository := repository.NewSQLXUserRepository(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	// Generation and evaluation adapters
	storyGenerator := generation.NewStoryGenerator(llm)
	quizGenerator := generation.NewQuizGenerator(llm)
	translationJudge := evaluator.NewTranslationJudge(llm)

	// Services
	judgmentCache := service.NewTranslationJudgmentCache(cacheAdapter, cfg)
	resultTTL := cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.AnswerEvaluation, 24*time.Hour)
	anonymousResults := service.NewAnonymousResultCacheService(cacheAdapter, resultTTL)
	progressService := service.NewProgressService(progressRepository, attemptRepository, profileRepository, lessonRepository, cacheAdapter, cfg)
	evaluationService := service.NewEvaluationService(quizRepository, attemptRepository, translationJudge, embeddingService, judgmentCache, progressService, txManager, cacheAdapter, cfg)
	sessionService := service.NewSessionService(cacheAdapter, quizRepository, evaluationService, anonymousResults, cfg)
	lessonService := service.NewLessonService(lessonRepository, storyGenerator, cacheAdapter, cfg)
	quizService := service.NewQuizService(lessonRepository, quizRepository, quizGenerator, cacheAdapter, cfg)
	authService, err := service.NewAuthService(userRepository, cacheAdapter, cfg)
	if err != nil {
		appLogger.Fatal("Failed to create AuthService", zap.Error(err))
	}
	userService := service.NewUserService(userRepository, profileRepository, attemptRepository)
	syncService := service.NewSyncService(profileRepository, lessonRepository, quizRepository, attemptRepository, progressRepository, progressService, userService, cacheAdapter)
	rateLimitService := service.NewRateLimitService(cacheAdapter, cfg)
	appLogger.Info("Services initialized")

	// Handlers
	authHandler := handler.NewAuthHandler(authService, cfg)
	userHandler := handler.NewUserHandler(userService)
	lessonHandler := handler.NewLessonHandler(lessonService, rateLimitService)
	quizHandler := handler.NewQuizHandler(quizService, evaluationService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	progressHandler := handler.NewProgressHandler(progressService)
	syncHandler := handler.NewSyncHandler(syncService)
	healthHandler := handler.NewHealthHandler(db, cacheAdapter, lessonRepository)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))
	app.Use(recover.New())

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/health", healthHandler.Liveness)

	protected := middleware.Protected(authService)
	optionalAuth := middleware.OptionalAuth(authService)
	rateLimited := middleware.RateLimited(rateLimitService)
	validate := middleware.NewValidationMiddleware()

	apiGroup := app.Group("/api")
	apiGroup.Get("/health", healthHandler.Readiness)

	// Auth routes
	authGroup := apiGroup.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", protected, authHandler.Logout)
	authGroup.Get("/google/login", authHandler.GoogleLogin)
	authGroup.Get("/google/callback", authHandler.GoogleCallback)

	// User routes
	userGroup := apiGroup.Group("/users", protected)
	userGroup.Get("/me", userHandler.GetMyProfile)
	userGroup.Put("/me/profile", userHandler.UpdateMyProfile)
	userGroup.Get("/me/attempts", userHandler.GetMyAttempts)
	userGroup.Get("/me/errors", validate.ValidateDaysParam(), userHandler.GetMyErrors)

	// Content generation routes
	apiGroup.Post("/story", protected, rateLimited, lessonHandler.GenerateStory)
	apiGroup.Post("/quiz", protected, rateLimited, quizHandler.GetOrGenerateQuiz)
	apiGroup.Get("/lessons", lessonHandler.ListLessons)
	apiGroup.Get("/lessons/:id", validate.ValidateIDParam("id"), lessonHandler.GetLesson)
	apiGroup.Get("/topics", lessonHandler.ListTopics)
	apiGroup.Get("/limits", protected, lessonHandler.GetLimits)

	// Quiz session routes: anonymous users get sessions too
	sessionGroup := apiGroup.Group("/sessions", optionalAuth)
	sessionGroup.Post("/", sessionHandler.CreateSession)
	sessionGroup.Get("/:id", sessionHandler.GetSession)
	sessionGroup.Post("/:id/answer", sessionHandler.Answer)
	sessionGroup.Post("/:id/navigate", sessionHandler.Navigate)
	sessionGroup.Post("/:id/complete", sessionHandler.Complete)
	apiGroup.Get("/results/:id", optionalAuth, sessionHandler.GetResult)

	// One-shot attempt evaluation
	apiGroup.Post("/quizzes/:id/attempts", protected, validate.ValidateIDParam("id"), quizHandler.EvaluateAttempt)

	// Progress routes
	progressGroup := apiGroup.Group("/progress", protected)
	progressGroup.Post("/lessons/:id/view", validate.ValidateIDParam("id"), progressHandler.RecordLessonView)
	progressGroup.Post("/lessons/:id/toggle", validate.ValidateIDParam("id"), progressHandler.RecordTranslationToggle)
	progressGroup.Put("/lessons/:id", validate.ValidateIDParam("id"), progressHandler.UpdateLessonProgress)
	progressGroup.Get("/lessons/:id", validate.ValidateIDParam("id"), progressHandler.GetLessonProgress)
	progressGroup.Get("/summary", progressHandler.GetSummary)
	progressGroup.Get("/trends", validate.ValidateDaysParam(), progressHandler.GetTrends)
	progressGroup.Get("/dashboard", progressHandler.GetDashboard)
	progressGroup.Get("/analytics", validate.ValidateDaysParam(), progressHandler.GetAnalytics)

	// Sync routes
	syncGroup := apiGroup.Group("/sync", protected)
	syncGroup.Post("/", syncHandler.Sync)
	syncGroup.Post("/offline-queue", syncHandler.ProcessOfflineQueue)
	syncGroup.Get("/status", syncHandler.GetStatus)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/adaptive-api/internal/config"
	"github.com/yourusername/adaptive-api/internal/handler"
	"github.com/yourusername/adaptive-api/internal/middleware"
	pgRepo "github.com/yourusername/adaptive-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/adaptive-api/internal/repository/redis"
	"github.com/yourusername/adaptive-api/internal/service/adaptive"
	"github.com/yourusername/adaptive-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	stateRepo := pgRepo.NewDifficultyStateRepo(db)
	snapshotRepo := pgRepo.NewSnapshotRepo(db)
	logRepo := pgRepo.NewAdjustmentLogRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем движок адаптивной сложности
	engine := adaptive.NewEngine(&adaptive.Dependencies{
		StateRepo:    stateRepo,
		SnapshotRepo: snapshotRepo,
		LogRepo:      logRepo,
		CacheRepo:    cacheRepo,
		Config:       engineConfig(cfg.Engine),
	})

	// Инициализируем обработчики
	difficultyHandler := handler.NewDifficultyHandler(engine)
	sessionHandler := handler.NewSessionHandler(engine)
	adminHandler := handler.NewAdminHandler(engine)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.SupabaseJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	// В production (GIN_MODE=release): не доверяем прокси (защита от IP spoofing)
	// В development: доверяем localhost
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check для оркестратора
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "postgres": err.Error()})
			return
		}
		// Redis не критичен: движок работает fail-open без кеша
		redisStatus := "ok"
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = err.Error()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisStatus})
	})

	// Настраиваем маршруты API
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	{
		// Приём снапшотов завершённых сессий
		api.POST("/sessions",
			rateLimiter.LimitByIP(middleware.SessionIngestRateLimitConfig()),
			sessionHandler.CompleteSession)

		// Маршруты в рамках одной темы
		topics := api.Group("/topics/:topic")
		topics.Use(middleware.ExtractTopicParam("topic"))
		{
			topics.GET("/recommended", difficultyHandler.GetRecommended)
			topics.GET("/state", difficultyHandler.GetState)
			topics.GET("/adjustments", difficultyHandler.GetAdjustments)

			// Override — редкая ручная операция, лимитируем отдельно
			override := topics.Group("/override")
			override.Use(rateLimiter.Limit(middleware.DefaultOverrideRateLimitConfig()))
			{
				override.PUT("", difficultyHandler.SetOverride)
				override.DELETE("", difficultyHandler.ClearOverride)
			}
		}

		// Админские маршруты (service role): чужие состояния и экспорт журнала
		admin := api.Group("/admin")
		admin.Use(authMiddleware.ServiceRoleOnly())
		{
			adminTopic := admin.Group("/users/:userID/topics/:topic")
			adminTopic.Use(
				middleware.ExtractUUIDParam("userID", "targetUserID"),
				middleware.ExtractTopicParam("topic"),
			)
			{
				adminTopic.GET("/state", adminHandler.GetUserState)
				adminTopic.GET("/adjustments", adminHandler.GetUserAdjustments)
				adminTopic.GET("/adjustments/export", adminHandler.ExportAdjustments)
			}
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// После получения сигнала SIGINT или SIGTERM начинаем graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}

// engineConfig накладывает ненулевые значения из файла конфигурации
// поверх дефолтного тюнинга движка
func engineConfig(ec config.EngineConfig) *adaptive.Config {
	cfg := adaptive.DefaultConfig()
	if ec.Gain != 0 {
		cfg.Gain = ec.Gain
	}
	if ec.DampingDivisor != 0 {
		cfg.DampingDivisor = ec.DampingDivisor
	}
	if ec.StabilityReward != 0 {
		cfg.StabilityReward = ec.StabilityReward
	}
	if ec.StabilityPenalty != 0 {
		cfg.StabilityPenalty = ec.StabilityPenalty
	}
	if ec.SmallErrorThreshold != 0 {
		cfg.SmallErrorThreshold = ec.SmallErrorThreshold
	}
	if ec.VolatilityThreshold != 0 {
		cfg.VolatilityThreshold = ec.VolatilityThreshold
	}
	if ec.LookbackSessions != 0 {
		cfg.LookbackSessions = ec.LookbackSessions
	}
	if ec.LookbackDays != 0 {
		cfg.LookbackDays = ec.LookbackDays
	}
	if ec.MaxRetries != 0 {
		cfg.MaxRetries = ec.MaxRetries
	}
	if ec.RecommendedCacheTTLSec != 0 {
		cfg.RecommendedCacheTTL = time.Duration(ec.RecommendedCacheTTLSec) * time.Second
	}
	return cfg
}

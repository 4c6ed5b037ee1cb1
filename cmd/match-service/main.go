package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intDatabase "vibelink-backend/internal/database"
	matchHandler "vibelink-backend/internal/handler/http/match"
	"vibelink-backend/internal/middleware"
	"vibelink-backend/internal/repository/cassandra"
	"vibelink-backend/internal/repository/cockroach"
	redisRepo "vibelink-backend/internal/repository/redis"
	matchService "vibelink-backend/internal/service/match"
	pkgDatabase "vibelink-backend/pkg/database"
	"vibelink-backend/pkg/env"
	"vibelink-backend/pkg/jwt"
	"vibelink-backend/pkg/logger"
	"vibelink-backend/pkg/metrics"
)

func main() {
	ctx := context.Background()

	// 1. Logger
	logger.InitDefault()
	defer logger.Sync()
	log := logger.Log

	// 2. JWT Manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}

	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	// 3. Metrics
	appMetrics := metrics.NewMetrics("match-service")
	intDatabase.InitRedisMetrics(appMetrics.GetRegistry())

	// 4. CockroachDB holds queue entries and sessions; the service cannot
	// run without it
	dbConfig := &pkgDatabase.CockroachConfig{
		Host:     env.GetString("DB_HOST", "localhost"),
		Port:     env.GetInt("DB_PORT", 26257),
		User:     env.GetString("DB_USER", "root"),
		Password: env.GetStringFromFile("DB_PASSWORD", ""),
		Database: env.GetString("DB_NAME", "vibelink"),
		SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
	}

	db := connectCockroachWithRetry(ctx, log, dbConfig)
	defer db.Close()

	queueRepo := cockroach.NewQueueRepository(db.Pool)
	sessionRepo := cockroach.NewSessionRepository(db.Pool)
	userRepo := cockroach.NewUserRepository(db.Pool)

	// 5. Cassandra holds the append-only report log
	cassandraDB, err := pkgDatabase.NewCassandraDBFromEnv()
	if err != nil {
		log.Fatal("failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	log.Info("connected to Cassandra")

	reportRepo := cassandra.NewReportRepository(cassandraDB.Session)

	// 6. Redis with degraded mode support
	redisConfig := &intDatabase.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}

	redisDB, err := intDatabase.NewRedisDB(redisConfig)
	if err != nil {
		log.Warn("failed to connect to Redis, continuing degraded", zap.Error(err))
	} else {
		log.Info("connected to Redis")
	}
	defer redisDB.Close()

	go redisDB.StartHealthCheck(ctx, 10*time.Second)

	eventRepo := redisRepo.NewMatchEventRepository(redisDB)
	presenceRepo := redisRepo.NewQueuePresenceRepository(redisDB)
	throttleRepo := redisRepo.NewReportThrottleRepository(redisDB)

	// 7. Match service with policy knobs
	svcConfig := matchService.DefaultConfig()
	svcConfig.QueueTTL = env.GetDuration("MATCH_QUEUE_TTL", 0)
	svcConfig.ReportThrottleWindow = env.GetDuration("MATCH_REPORT_THROTTLE", time.Hour)

	matchSvc := matchService.NewService(
		queueRepo,
		sessionRepo,
		userRepo,
		reportRepo,
		eventRepo,
		presenceRepo,
		throttleRepo,
		svcConfig,
		log,
	)

	matchHdlr := matchHandler.NewHandler(matchSvc, appMetrics)

	// 8. Router
	router := gin.New()

	var trustedProxies []string
	if os.Getenv("ENV") == "production" {
		trustedProxies = []string{env.GetString("TRUSTED_PROXY_CIDR", "10.0.0.0/8")}
	} else {
		trustedProxies = []string{"127.0.0.1"}
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Fatal("failed to set trusted proxies", zap.Error(err))
	}

	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "match-service",
			"time":    time.Now().UTC(),
		})
	})

	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	// 9. Authenticated routes
	revocationChecker := middleware.NewRedisRevocationChecker(redisDB.Client)
	rateLimiter := middleware.NewRateLimiter(
		redisDB.Client,
		env.GetInt("MATCH_RATE_LIMIT", 60),
		time.Minute,
	)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager, revocationChecker))
	v1.Use(rateLimiter.Middleware())
	matchHdlr.RegisterRoutes(v1)

	// 10. Start server
	port := env.GetString("PORT", "8084")
	log.Info("match service starting", zap.String("port", port))
	if err := router.Run(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

// connectCockroachWithRetry dials CockroachDB with exponential backoff and
// exits the process when every attempt fails
func connectCockroachWithRetry(ctx context.Context, log *zap.Logger, cfg *pkgDatabase.CockroachConfig) *pkgDatabase.CockroachDB {
	const maxRetries = 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	db, err := pkgDatabase.NewCockroachDB(ctx, cfg)
	if err == nil {
		log.Info("connected to CockroachDB")
		return db
	}

	for attempt := 2; attempt <= maxRetries; attempt++ {
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Warn("CockroachDB connection failed, retrying",
			zap.Int("attempt", attempt-1),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		time.Sleep(delay)

		db, err = pkgDatabase.NewCockroachDB(ctx, cfg)
		if err == nil {
			log.Info("connected to CockroachDB", zap.Int("attempt", attempt))
			return db
		}
	}

	log.Fatal("failed to connect to CockroachDB", zap.Int("attempts", maxRetries), zap.Error(err))
	return nil
}

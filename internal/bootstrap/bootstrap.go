package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	appAuth "github.com/00Thor/CCPUR-sub000/internal/app/auth"
	appControllers "github.com/00Thor/CCPUR-sub000/internal/app/controllers"
	"github.com/00Thor/CCPUR-sub000/internal/app/jobs"
	appMigrations "github.com/00Thor/CCPUR-sub000/internal/app/migrations"
	appRepos "github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	appRoutes "github.com/00Thor/CCPUR-sub000/internal/app/routes"
	appServices "github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/config"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	appMiddleware "github.com/00Thor/CCPUR-sub000/internal/middleware"
	pkgAuth "github.com/00Thor/CCPUR-sub000/internal/pkg/auth"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/email"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/filestorage"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/notify"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/otp"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/payment"
	"github.com/00Thor/CCPUR-sub000/internal/seed"
)

// ConfigPathEnv overrides the default config file location
const ConfigPathEnv = "CONFIG_PATH"

// uploadBodySlack is allowed on top of the upload limit for multipart framing
const uploadBodySlack = 1 << 20

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos        *appRepos.Repositories
	Transactor   db.Transactor
	JWTService   *pkgAuth.JWTService
	AuthzService *appAuth.AuthorizationService
	BlobStore    filestorage.BlobStore
	Notifier     *notify.Notifier
	Gateway      payment.Gateway

	AuthService        appServices.AuthService
	ApplicationService appServices.ApplicationService
	StudentService     appServices.StudentService
	AcademicService    appServices.AcademicService
	PaymentService     appServices.PaymentService
	FileService        appServices.FileService

	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware
	Scheduler      *jobs.Scheduler

	// queueClient is set when notifications go through the worker queue
	queueClient *asynq.Client
	Logger      zerolog.Logger
}

// Close releases clients owned by the dependency graph
func (d *Dependencies) Close() {
	if d.queueClient != nil {
		if err := d.queueClient.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close queue client")
		}
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(service string) (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv(ConfigPathEnv)
	if configPath == "" {
		configPath = filepath.Join("configs", "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	lgr := logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  strings.ToLower(cfg.Logging.Format) == "text",
		Service: service,
	})
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// OpenDatabase establishes the database connection
func OpenDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")
	return database, nil
}

// Migrate applies pending migrations from the configured directory
func Migrate(ctx context.Context, cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) error {
	migrationsDir := cfg.Server.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Str("path", migrationsDir).Msg("Running database migrations...")
	applied, err := appMigrations.NewMigrator(database.Pool, lgr).MigrateFromDirectory(ctx, migrationsDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", applied).Msg("Database migrations successfully applied.")
	return nil
}

// Seed creates the default semesters, fees and admin account
func Seed(ctx context.Context, cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) error {
	repos := appRepos.NewRepositories(database.Pool)
	return seed.CreateDefaultData(ctx, seed.Stores{
		Semesters: repos.SemesterRepository,
		Fees:      repos.FeeRepository,
		Users:     repos.UserRepository,
	}, cfg, lgr)
}

// SetupDatabase connects, migrates and seeds when auto-migration is on
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	database, err := OpenDatabase(cfg, lgr)
	if err != nil {
		return nil, err
	}
	if !cfg.Server.AutoMigrate {
		return database, nil
	}
	if err := Migrate(ctx, cfg, database, lgr); err != nil {
		database.Close()
		return nil, err
	}
	if err := Seed(ctx, cfg, database, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}
	return database, nil
}

// NewRedisClient connects to Redis and checks it answers
func NewRedisClient(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		lgr.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// QueueRedisOpt returns the asynq connection options for the configured Redis
func QueueRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewEmailSender builds the SMTP sender from configuration
func NewEmailSender(cfg *config.Config, lgr zerolog.Logger) *email.SMTPSender {
	return email.NewSMTPSender(email.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.FromEmail,
		UseTLS:    cfg.SMTP.UseTLS,
	}, lgr.With().Str("component", "email").Logger())
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(ctx context.Context, cfg *config.Config, database *db.PostgresDB, rdb redis.Cmdable, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database.Pool)
	deps.Transactor = database

	store, err := filestorage.New(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	deps.BlobStore = store

	var dispatcher notify.Dispatcher
	if strings.EqualFold(cfg.Notifications.Mode, "queue") {
		deps.queueClient = asynq.NewClient(QueueRedisOpt(cfg))
		dispatcher = notify.NewQueueDispatcher(deps.queueClient, cfg.Notifications.MaxRetry)
	} else {
		dispatcher = notify.NewDirectDispatcher(NewEmailSender(cfg, lgr))
	}
	deps.Notifier = notify.NewNotifier(dispatcher, cfg.Server.FrontendURL, cfg.SMTP.FromName)
	lgr.Info().Str("mode", cfg.Notifications.Mode).Msg("Notifications configured")

	deps.Gateway = payment.NewRazorpayGateway(payment.RazorpayConfig{
		KeyID:         cfg.Payments.KeyID,
		KeySecret:     cfg.Payments.KeySecret,
		WebhookSecret: cfg.Payments.WebhookSecret,
	})

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.JWT.Secret,
		TokenTTL:    cfg.AccessTokenTTL(),
		TokenIssuer: cfg.JWT.Issuer,
	})
	deps.AuthzService = appAuth.NewAuthorizationService(
		deps.Repos.ApplicationRepository,
		deps.Repos.StudentRepository,
		lgr,
	)

	deps.AuthService = appServices.NewAuthService(
		deps.Repos.UserRepository,
		deps.Repos.PasswordResetTokenRepository,
		deps.Transactor,
		otp.NewStore(rdb),
		deps.Notifier,
		deps.JWTService,
		appServices.AuthConfig{OTPTTL: cfg.OTPTTL(), OTPLength: cfg.OTP.Length},
		logger.WithComponent("auth"),
	)
	deps.ApplicationService = appServices.NewApplicationService(
		deps.Repos.ApplicationRepository,
		deps.Repos.StudentRepository,
		deps.Repos.FileRepository,
		deps.Repos.UserRepository,
		deps.Transactor,
		deps.AuthzService,
		deps.Notifier,
		logger.WithComponent("applications"),
	)
	deps.StudentService = appServices.NewStudentService(
		deps.Repos.StudentRepository,
		deps.Transactor,
		deps.AuthzService,
		logger.WithComponent("students"),
	)
	deps.AcademicService = appServices.NewAcademicService(
		deps.Repos.AcademicRecordRepository,
		deps.Repos.SemesterRepository,
		deps.Repos.StudentRepository,
		deps.Transactor,
		deps.AuthzService,
		logger.WithComponent("academic"),
	)
	deps.PaymentService = appServices.NewPaymentService(
		deps.Repos.PaymentRepository,
		deps.Repos.FeeRepository,
		deps.Transactor,
		deps.Gateway,
		deps.AuthzService,
		appServices.PaymentConfig{Currency: cfg.Payments.Currency, PendingTTL: cfg.PendingPaymentTTL()},
		logger.WithComponent("payments"),
	)
	deps.FileService = appServices.NewFileService(
		deps.Repos.FileRepository,
		deps.Repos.BlobDeletionRepository,
		deps.Transactor,
		deps.BlobStore,
		deps.AuthzService,
		cfg.Storage.MaxUploadBytes,
		logger.WithComponent("files"),
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)
	deps.Controllers = appRoutes.Controllers{
		Auth:        appControllers.NewAuthController(deps.AuthService, lgr),
		Application: appControllers.NewApplicationController(deps.ApplicationService, lgr),
		Student:     appControllers.NewStudentController(deps.StudentService, deps.AcademicService, lgr),
		Payment:     appControllers.NewPaymentController(deps.PaymentService, lgr),
		File:        appControllers.NewFileController(deps.FileService, lgr),
	}

	deps.Scheduler = jobs.NewScheduler(logger.WithComponent("jobs"))
	if err := jobs.RegisterMaintenance(deps.Scheduler, jobs.Config{
		TokenCleanupSpec:     cfg.Jobs.TokenCleanupSpec,
		BlobRetrySpec:        cfg.Jobs.BlobRetrySpec,
		PaymentExpirySpec:    cfg.Jobs.PaymentExpirySpec,
		BlobRetryBatch:       cfg.Jobs.BlobRetryBatch,
		BlobRetryMaxAttempts: cfg.Jobs.BlobRetryMaxAttempts,
	}, jobs.Maintenance{
		Tokens:   deps.Repos.PasswordResetTokenRepository,
		Blobs:    deps.FileService,
		Payments: deps.PaymentService,
	}); err != nil {
		deps.Close()
		return nil, err
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		appMiddleware.RequestLogger(lgr),
		appMiddleware.Metrics(),
		appMiddleware.MaxBodySize(cfg.Storage.MaxUploadBytes+uploadBodySlack),
	)
	router.MaxMultipartMemory = cfg.Storage.MaxUploadBytes

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

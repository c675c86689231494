package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	appControllers "github.com/yigit/campuspass/internal/app/controllers"
	appMigrations "github.com/yigit/campuspass/internal/app/migrations"
	"github.com/yigit/campuspass/internal/app/models"
	appRepos "github.com/yigit/campuspass/internal/app/repositories"
	appRoutes "github.com/yigit/campuspass/internal/app/routes"
	appServices "github.com/yigit/campuspass/internal/app/services"
	"github.com/yigit/campuspass/internal/config"
	"github.com/yigit/campuspass/internal/db"
	appMiddleware "github.com/yigit/campuspass/internal/middleware"
	pkgAuth "github.com/yigit/campuspass/internal/pkg/auth"
	"github.com/yigit/campuspass/internal/pkg/breaker"
	"github.com/yigit/campuspass/internal/pkg/helpers"
	"github.com/yigit/campuspass/internal/pkg/logger"
	"github.com/yigit/campuspass/internal/pkg/mailer"
	"github.com/yigit/campuspass/internal/pkg/metrics"
	"github.com/yigit/campuspass/internal/pkg/qrcode"
	"github.com/yigit/campuspass/internal/pkg/runlock"
	"github.com/yigit/campuspass/internal/pkg/ticketcode"
	"github.com/yigit/campuspass/internal/pkg/tickettoken"
	"github.com/yigit/campuspass/internal/pkg/validation"
	"github.com/yigit/campuspass/internal/pkg/websocket"
	"github.com/yigit/campuspass/internal/seed"
)

// Options locate the configuration sources
type Options struct {
	ConfigPath string
	EnvFile    string
}

// BindFlags registers the configuration flags shared by every command
func BindFlags(fs *pflag.FlagSet) *Options {
	opts := &Options{}
	fs.StringVarP(&opts.ConfigPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	fs.StringVar(&opts.EnvFile, "env-file", ".env", "env file loaded before the configuration")
	return opts
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *db.PostgresDB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Hub     *websocket.Hub
	Mailer  mailer.Mailer

	Repos *appRepos.Repositories

	JWTService        *pkgAuth.JWTService
	AuthService       *appServices.AuthService
	OperatorService   *appServices.OperatorService
	StudentService    *appServices.StudentService
	ImportService     *appServices.ImportService
	TicketService     *appServices.TicketService
	IssuanceService   *appServices.IssuanceService
	DeliveryService   *appServices.DeliveryService
	DeliveryRunner    *appServices.DeliveryRunner
	ValidationService *appServices.ValidationService
	StatsService      *appServices.StatsService

	AuthMiddleware *appMiddleware.AuthMiddleware
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(opts *Options, service string) (*config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		logger.Error().Err(err).Msg("Failed to load env file")
		return nil, zerolog.Logger{}, err
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	lgr := logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  prettyLog,
		Service: service,
	})
	log.Logger = lgr

	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Str("dir", cfg.Database.MigrationsDir).Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, cfg.Database.MigrationsDir); err != nil {
		database.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// SetupRunLocker returns the Redis locker when Redis is configured and a
// Postgres advisory locker otherwise, so runs started by the API and by
// ticketctl exclude each other either way. The returned client is nil in
// the latter case.
func SetupRunLocker(ctx context.Context, cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (runlock.Locker, *redis.Client, error) {
	if cfg.Redis.URL == "" {
		lgr.Info().Msg("Redis not configured, batch locks use Postgres advisory locks")
		return runlock.NewPostgresLocker(database.Pool, cfg.Redis.KeyPrefix, cfg.Locks.Heartbeat), nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	lgr.Info().Str("addr", opts.Addr).Dur("lockTTL", cfg.Redis.LockTTL).Msg("Redis connection established for batch locks")
	return runlock.NewRedisLocker(client, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL), client, nil
}

// SetupMailer builds the configured mail transport behind a circuit breaker.
func SetupMailer(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) mailer.Mailer {
	checker := mailer.NewRecipientChecker(nil, cfg.Mail.CheckMX)
	mailLogger := lgr.With().Str("component", "mailer").Logger()

	var transport mailer.Mailer
	if strings.ToLower(cfg.Mail.Driver) == "log" {
		lgr.Warn().Msg("Mail driver is 'log', ticket emails are written to the log only")
		transport = mailer.NewLogMailer(checker, mailLogger)
	} else {
		smtpMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:               cfg.Mail.Host,
			Port:               cfg.Mail.Port,
			Username:           cfg.Mail.Username,
			Password:           cfg.Mail.Password,
			FromName:           cfg.Mail.FromName,
			FromEmail:          cfg.Mail.FromEmail,
			ReplyTo:            cfg.Mail.ReplyTo,
			UseTLS:             cfg.Mail.UseTLS,
			Timeout:            cfg.Mail.SendTimeout,
			MaxMessagesPerConn: cfg.Mail.MaxMessagesPerConn,
		}, checker, mailLogger)

		verifyCtx, cancel := context.WithTimeout(ctx, cfg.Mail.SendTimeout)
		if err := smtpMailer.Verify(verifyCtx); err != nil {
			// Startup goes on; sends report connection errors until the server answers.
			lgr.Warn().Err(err).Str("host", cfg.Mail.Host).Msg("SMTP server unreachable at startup")
		}
		cancel()
		transport = smtpMailer
	}

	threshold := cfg.Mail.BreakerThreshold
	if threshold < 0 {
		threshold = 0
	}
	cb := breaker.New(breaker.Settings{
		Name:                   "smtp",
		MaxConsecutiveFailures: uint32(threshold),
		Cooldown:               cfg.Mail.BreakerCooldown,
		OnStateChange: func(name string, from, to breaker.State) {
			mailLogger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Mail circuit breaker changed state")
		},
	})
	return mailer.NewGuardedMailer(transport, cb)
}

// BuildDependencies initializes application repositories, services, and middleware.
func BuildDependencies(ctx context.Context, cfg *config.Config, database *db.PostgresDB, locker runlock.Locker, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: lgr, DB: database}

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	deps.Repos = appRepos.NewRepositories(database.Pool)
	deps.Hub = websocket.NewHub(lgr.With().Str("component", "gate-feed").Logger(), deps.Metrics.GateClients)
	deps.Mailer = SetupMailer(ctx, cfg, lgr)

	codec, err := tickettoken.NewCodec(tickettoken.Config{
		Secret: cfg.TicketTokenSecret(),
		TTL:    cfg.Ticket.TokenTTL,
		Issuer: cfg.Ticket.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ticket token codec: %w", err)
	}
	renderer := qrcode.NewRenderer(qrcode.Config{Size: cfg.QR.Size, Margin: cfg.QR.Margin})
	defaults := appServices.IssuanceDefaults{
		EventName:  cfg.Ticket.DefaultEvent,
		TicketType: models.TicketType(cfg.Ticket.DefaultType),
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 12*time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	repos := deps.Repos
	deps.AuthService = appServices.NewAuthService(repos.OperatorRepository, deps.JWTService, lgr)
	deps.OperatorService = appServices.NewOperatorService(repos.OperatorRepository, lgr)
	deps.StudentService = appServices.NewStudentService(database, repos.StudentRepository, repos.TicketRepository, lgr)
	deps.ImportService = appServices.NewImportService(repos.StudentRepository, cfg.Mail.StudentDomain, lgr)
	deps.IssuanceService = appServices.NewIssuanceService(
		database,
		repos.StudentRepository,
		repos.TicketRepository,
		codec,
		ticketcode.New(),
		locker,
		deps.Metrics,
		defaults,
		lgr.With().Str("component", "issuance").Logger(),
	)
	deps.TicketService = appServices.NewTicketService(repos.TicketRepository, repos.StudentRepository, deps.IssuanceService, renderer, lgr)
	deps.DeliveryService = appServices.NewDeliveryService(
		repos.TicketRepository,
		renderer,
		deps.Mailer,
		locker,
		deps.Metrics,
		cfg.Mail.SendInterval,
		lgr.With().Str("component", "delivery").Logger(),
	)
	deps.DeliveryRunner = appServices.NewDeliveryRunner(deps.DeliveryService, lgr)
	deps.ValidationService = appServices.NewValidationService(repos.TicketRepository, codec, deps.Hub, deps.Metrics, lgr)
	deps.StatsService = appServices.NewStatsService(repos.StatsRepository, repos.TicketRepository)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	if err := seed.EnsureAdmin(ctx, repos.OperatorRepository, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, lgr); err != nil {
		// Log the error but don't fail the startup
		lgr.Error().Err(err).Msg("Failed to seed the default administrator, proceeding anyway...")
	}

	return deps, nil
}

// Close releases the mail transport, Redis and the database pool.
func (d *Dependencies) Close() error {
	var errs error
	if d.Mailer != nil {
		errs = errors.Join(errs, d.Mailer.Close())
	}
	if d.Redis != nil {
		errs = errors.Join(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errs
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	if err := validation.RegisterRules(); err != nil {
		return nil, fmt.Errorf("failed to register validation rules: %w", err)
	}

	router := gin.New()
	router.Use(
		appMiddleware.Recovery(lgr),
		appMiddleware.RequestLogger(lgr),
		appMiddleware.Metrics(deps.Metrics),
		appMiddleware.RateLimit(cfg.RateLimit.APIPerMinute),
	)

	handlers := appRoutes.Handlers{
		Auth:      appControllers.NewAuthController(deps.AuthService, lgr),
		Students:  appControllers.NewStudentController(deps.StudentService, deps.ImportService, lgr),
		Tickets:   appControllers.NewTicketController(deps.TicketService, lgr),
		Issuance:  appControllers.NewIssuanceController(deps.IssuanceService, deps.DeliveryRunner, lgr),
		Gate:      appControllers.NewGateController(deps.ValidationService),
		Stats:     appControllers.NewStatsController(deps.StatsService),
		Operators: appControllers.NewOperatorController(deps.OperatorService),
		GateFeed:  websocket.NewHandler(deps.Hub, lgr),
		Health:    deps.DB.Pool.Ping,

		LoginLimiter: appMiddleware.RateLimit(cfg.RateLimit.LoginPerMinute),
	}
	if deps.Metrics != nil {
		handlers.Metrics = deps.Metrics.Handler()
		handlers.MetricsPath = cfg.Metrics.Path
	}

	appRoutes.SetupRouter(router, handlers, deps.AuthMiddleware)
	return router, nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-panel/internal/config"
	"github.com/FilipeAphrody/sentinel-panel/internal/logging"
	"github.com/FilipeAphrody/sentinel-panel/internal/repository"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
	"github.com/FilipeAphrody/sentinel-panel/pkg/security"

	_ "github.com/lib/pq" // Postgres driver
)

// app is the wired dependency graph shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	rdb    *redis.Client

	creds     *usecase.CredentialStore
	sessions  *usecase.SessionAuthenticator
	twoFactor *usecase.TwoFactorManager
	limiter   *usecase.RateLimiter
	keys      *usecase.APIKeyRegistry
	access    *usecase.APIAccessController
}

// openApp loads configuration and connects to PostgreSQL and Redis.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.Environment)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	// Repositories
	userRepo := repository.NewPostgresUserRepo(db)
	keyRepo := repository.NewPostgresAPIKeyRepo(db)
	sessionRepo := repository.NewRedisSessionRepo(rdb)
	counterRepo := repository.NewRedisCounterRepo(rdb)

	// Usecases
	a := &app{cfg: cfg, logger: logger, db: db, rdb: rdb}
	totp := security.NewTwoFactor(cfg.Auth.TOTPIssuer)
	a.creds = usecase.NewCredentialStore(userRepo)
	attempts := usecase.NewLoginAttempts(counterRepo, cfg.Auth.LoginAttemptsLimit, cfg.Auth.LoginLockoutWindow)
	a.sessions = usecase.NewSessionAuthenticator(a.creds, attempts, sessionRepo, totp, cfg, logger)
	a.twoFactor = usecase.NewTwoFactorManager(a.creds, attempts, sessionRepo, totp, cfg, logger)
	a.limiter = usecase.NewRateLimiter(counterRepo, cfg.Auth.APIDefaultRateLimit, cfg.Auth.APIMaxRateLimit)
	a.keys = usecase.NewAPIKeyRegistry(keyRepo, a.limiter, cfg.Auth.APIMaxFailedAttempts, cfg.Auth.APIBlockDuration)
	a.access = usecase.NewAPIAccessController(a.keys, a.limiter, logger)

	return a, nil
}

func (a *app) Close() {
	a.rdb.Close()
	a.db.Close()
}

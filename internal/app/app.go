package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hitoshi/agriguard/internal/authflow"
	"github.com/hitoshi/agriguard/internal/config"
	"github.com/hitoshi/agriguard/internal/database"
	"github.com/hitoshi/agriguard/internal/handler"
	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/logger"
	"github.com/hitoshi/agriguard/internal/metrics"
	"github.com/hitoshi/agriguard/internal/middleware"
	"github.com/hitoshi/agriguard/internal/repository"
	"github.com/hitoshi/agriguard/internal/security"
	"github.com/hitoshi/agriguard/internal/session"
	"github.com/hitoshi/agriguard/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// 設定を必要としないサブコマンドはフル初期化をスキップする
	if !cmd.NeedsConfig() {
		if cmd == CommandHelp {
			Usage(w)
			return nil
		}
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", string(cfg.SessionStore)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通確認を行う。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.OpenPostgres(ctx, database.PostgresOptions{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// openSessionStore はSESSION_STOREに応じたSessionスロットの保存先を返す。
// 戻り値のcloseは保存先が保持する接続を閉じる。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionSlotStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := database.OpenRedis(ctx, database.RedisOptions{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		slog.Info("redis connection established")
		return repository.NewRedisSessionRepo(client), client.Close, nil
	case config.SessionStoreMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		return repository.NewMemorySessionRepo(), noop, nil
	default:
		return repository.NewPostgresSessionRepo(db), noop, nil
	}
}

// rateLimiterConfig はreq/min単位の設定をreq/secのRateLimiterConfigに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlc := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlc.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlc.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitOTPSend > 0 {
		rlc.OTPSendRate = rate.Limit(float64(cfg.RateLimitOTPSend) / 60.0)
		rlc.OTPSendBurst = cfg.RateLimitOTPSend
	}
	return rlc
}

// phoneConfig はConfigから電話番号OTPフローの設定を組み立てる。
func phoneConfig(cfg *config.Config) authflow.PhoneConfig {
	pc := authflow.DefaultPhoneConfig()
	pc.CountryCode = cfg.PhoneCountryCode
	pc.ResendCooldown = cfg.OTPResendCooldown
	pc.MaxAttempts = cfg.OTPMaxAttempts
	pc.FlowTTL = cfg.OTPFlowTTL
	return pc
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. Sessionスロットの保存先
	store, closeStore, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := session.NewCache(store)
	events := repository.NewPostgresAuthEventRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 4. IdPクライアント（外部通信はSSRFガード経由）
	guard := security.NewSSRFGuard()
	providerClient := guard.NewSafeClient(cfg.ProviderTimeout)

	google := identity.NewGoogleProvider(identity.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   providerClient,
	})
	toolkit := identity.NewToolkitClient(identity.ToolkitConfig{
		APIKey:     cfg.IdentityAPIKey,
		BaseURL:    cfg.IdentityAPIBaseURL,
		HTTPClient: providerClient,
	})
	idp := identity.NewClient(google, toolkit)

	// 5. 認証フロー
	ctrl := authflow.NewController(cache, security.NewProfileSanitizer(guard), idp, events, collector)
	phoneFlow := authflow.NewPhoneFlow(ctrl, idp, authflow.NewChallengeRegistry(cfg.RecaptchaSiteKey), phoneConfig(cfg))
	phoneFlow.Start()
	defer phoneFlow.Stop()

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		GuardSessions:     cache,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ClientConfig: middleware.ClientConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HealthChecker: db,
		AuthHandler: handler.NewAuthHandler(ctrl, phoneFlow, idp, idp, handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		}),
		PageHandler: handler.NewPageHandler(ctrl, handler.PageHandlerConfig{
			RecaptchaSiteKey: cfg.RecaptchaSiteKey,
			ChatWidgetURL:    cfg.ChatWidgetURL,
		}),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 保持期間を超過した認証イベントを日次で削除する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(repository.NewPostgresAuthEventRepo(db), slog.Default())
	if cfg.LogRetentionDays > 0 {
		job.RetentionDays = cfg.LogRetentionDays
	}

	slog.Info("worker starting", slog.Int("retention_days", job.RetentionDays))

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, 24*time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

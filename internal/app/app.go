package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/noteit/internal/auth"
	"github.com/hitoshi/noteit/internal/cache"
	"github.com/hitoshi/noteit/internal/config"
	"github.com/hitoshi/noteit/internal/database"
	"github.com/hitoshi/noteit/internal/folder"
	"github.com/hitoshi/noteit/internal/handler"
	"github.com/hitoshi/noteit/internal/logger"
	"github.com/hitoshi/noteit/internal/mailer"
	"github.com/hitoshi/noteit/internal/markdown"
	"github.com/hitoshi/noteit/internal/metrics"
	"github.com/hitoshi/noteit/internal/middleware"
	"github.com/hitoshi/noteit/internal/note"
	"github.com/hitoshi/noteit/internal/repository"
	"github.com/hitoshi/noteit/internal/security"
	"github.com/hitoshi/noteit/internal/tag"
	"github.com/hitoshi/noteit/internal/user"
	"github.com/hitoshi/noteit/internal/worker/cleanup"
)

// dbHealthChecker は*sql.DBをhandler.HealthCheckerに適合させるアダプタ。
type dbHealthChecker struct {
	pinger interface {
		PingContext(ctx context.Context) error
	}
}

func (c dbHealthChecker) Healthcheck(ctx context.Context) error {
	return c.pinger.PingContext(ctx)
}

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続とRedis接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// Redisが利用不能でも起動は継続する（登録確認が成立しない縮退動作になる）。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 一時ストア（Redis）接続
	store, err := cache.NewRedisStore(cfg.RedisURL, cfg.RedisConnectTimeout, cfg.RedisCommandTimeout)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	defer store.Disconnect()

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.RedisConnectTimeout)
	if err := store.Connect(connectCtx); err != nil {
		// 一時ストアの障害は致命傷にしない。確認待ち登録が機能しない縮退モードで継続する。
		slog.Error("transient store unavailable, registrations will not be verifiable",
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("transient store connection established")
	}
	connectCancel()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)
	versionRepo := repository.NewPostgresNoteVersionRepo(db)
	folderRepo := repository.NewPostgresFolderRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	tokenService := auth.NewTokenService(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		auth.TokenServiceConfig{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			VerificationTTL: cfg.VerificationTTL,
		},
	)

	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		BaseURL:  cfg.BaseURL,
	})

	authService := auth.NewService(
		userRepo, store, tokenService, smtpMailer, collector, cfg.VerificationTTL,
	)

	sanitizer := security.NewContentSanitizer()
	renderer := markdown.NewRenderer(sanitizer)

	noteService := note.NewService(noteRepo, versionRepo, folderRepo, tagRepo, renderer)
	folderService := folder.NewService(folderRepo, noteRepo)
	tagService := tag.NewService(tagRepo)
	userService := user.NewService(userRepo, folderRepo)

	// 6. レート制限の構成（configはreq/min・req/15min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rateLimiterCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 900.0)
		rateLimiterCfg.AuthBurst = cfg.RateLimitAuth
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		TokenValidator:    tokenService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		MetricsRecorder:   collector,
		MetricsGatherer:   registry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:       cfg.CookieDomain,
			CookieSecure:       cfg.CookieSecure,
			RefreshTokenMaxAge: int(cfg.RefreshTokenTTL.Seconds()),
		},

		NoteService:   noteService,
		FolderService: folderService,
		TagService:    tagService,
		UserService:   userService,

		DBChecker:    dbHealthChecker{pinger: db},
		RedisChecker: store,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、ノート履歴のクリーンアップスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	versionRepo := repository.NewPostgresNoteVersionRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	cleanupJob := cleanup.NewCleanupJob(versionRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("keep_versions", cleanupJob.KeepVersions),
	)

	// クリーンアップスケジューラをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, 24*time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

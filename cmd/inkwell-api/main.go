package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/config"
	"github.com/MarcoPoloResearchLab/inkwell/internal/database"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/MarcoPoloResearchLab/inkwell/internal/likes"
	"github.com/MarcoPoloResearchLab/inkwell/internal/logging"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metadata"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metrics"
	"github.com/MarcoPoloResearchLab/inkwell/internal/server"
	"github.com/MarcoPoloResearchLab/inkwell/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkwell-api",
		Short: "Inkwell articles, comments and likes service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Access token lifetime")
	cmd.PersistentFlags().Int("comment-rate-limit", defaults.GetInt("comments.rate_limit.max"), "Comments allowed per user and article within the window")
	cmd.PersistentFlags().Duration("comment-rate-window", defaults.GetDuration("comments.rate_limit.window"), "Sliding window for the comment rate limit")
	cmd.PersistentFlags().String("cors-origins", defaults.GetString("cors.allowed_origins"), "Comma separated list of allowed CORS origins")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "comments.rate_limit.max", "comment-rate-limit")
	bindFlag(cmd, "comments.rate_limit.window", "comment-rate-window")
	bindFlag(cmd, "cors.allowed_origins", "cors-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !strings.EqualFold(appConfig.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ids := engine.NewUUIDProvider()

	accounts, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.AuthTokenTTL,
	})
	if err != nil {
		return err
	}

	articleStore, err := articles.NewStore(articles.StoreConfig{Clock: time.Now, IDProvider: ids, Logger: logger})
	if err != nil {
		return err
	}
	commentStore, err := comments.NewStore(comments.StoreConfig{
		Clock:      time.Now,
		IDProvider: ids,
		Users:      accounts,
		RateLimit: comments.RateLimitConfig{
			Window:       appConfig.CommentRateWindow,
			MaxPerWindow: appConfig.CommentRateLimitMax,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	likeStore, err := likes.NewStore(likes.StoreConfig{Clock: time.Now, IDProvider: ids, Logger: logger})
	if err != nil {
		return err
	}

	views, err := metadata.NewAggregator(metadata.Config{
		Articles: articleStore,
		Comments: commentStore,
		Likes:    likeStore,
		Users:    accounts,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:   tokenManager,
		Accounts:       accounts,
		Articles:       articleStore,
		Comments:       commentStore,
		Likes:          likeStore,
		Views:          views,
		Realtime:       server.NewRealtimeDispatcher(),
		Metrics:        metrics.NewRecorder(),
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		CookieName:     appConfig.AuthCookieName,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down", zap.Duration("grace_period", appConfig.ShutdownGracePeriod))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownGracePeriod)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autoescuela/campus/internal/auth"
	"github.com/autoescuela/campus/internal/config"
	"github.com/autoescuela/campus/internal/exam"
	"github.com/autoescuela/campus/internal/handler"
	appI18n "github.com/autoescuela/campus/internal/i18n"
	"github.com/autoescuela/campus/internal/llm"
	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "campus",
		Short:        "Driving school learning platform and exam engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(cmd); err != nil {
				return err
			}
			setupLogging(cmd)
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.String("env-file", ".env", "Dotenv file loaded before reading the environment (optional)")
	pf.String("db", "campus.db", "SQLite database path")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `campus --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("jwt-secret", "", "HMAC secret for access tokens (at least 32 bytes)")
	f.Duration("token-ttl", auth.DefaultTTL, "Access token lifetime")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins; '*' matches one host label")
	f.Bool("dev", false, "Development mode: allow localhost origins when none are configured")
	f.StringP("lang", "l", "es", "Default response language (es, en)")
	f.String("admin-email", "", "Seed an admin account with this email if it does not exist")
	f.String("admin-password", "", "Initial password of the seeded admin")
	f.String("llm-url", "", "OpenAI-compatible API base URL for answer suggestions")
	f.String("llm-key", "", "API key for the LLM endpoint")
	f.String("llm-model", "", "LLM model name")
	f.String("revoked-cleanup", auth.DefaultCleanupSchedule, "Cron schedule for purging expired revoked tokens")
	return cmd
}

// loadEnvFile reads a dotenv file into the process environment. A missing
// file is not an error.
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("campus")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/campus")
	v.AddConfigPath("/etc/campus")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func loadConfig(v *viper.Viper) config.Config {
	return config.Config{
		Addr:           v.GetString("addr"),
		DBPath:         v.GetString("db"),
		JWTSecret:      v.GetString("jwt-secret"),
		TokenTTL:       v.GetDuration("token-ttl"),
		CORSOrigins:    v.GetStringSlice("cors-origins"),
		Dev:            v.GetBool("dev"),
		Lang:           v.GetString("lang"),
		AdminEmail:     v.GetString("admin-email"),
		AdminPassword:  v.GetString("admin-password"),
		LLMURL:         v.GetString("llm-url"),
		LLMKey:         v.GetString("llm-key"),
		LLMModel:       v.GetString("llm-model"),
		RevokedCleanup: v.GetString("revoked-cleanup"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(viperForCmd(cmd))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedCourses(ctx, db); err != nil {
		return fmt.Errorf("seed courses: %w", err)
	}
	if err := seedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, db)
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}
	cleanup, err := tokens.ScheduleCleanup(cfg.RevokedCleanup)
	if err != nil {
		return fmt.Errorf("schedule token cleanup: %w", err)
	}
	cleanup.Start()
	defer cleanup.Stop()

	var suggester handler.Suggester
	if cfg.LLMEnabled() {
		client := llm.New(cfg.LLMURL, cfg.LLMKey, cfg.LLMModel)
		if err := client.Ping(ctx); err != nil {
			slog.Warn("LLM endpoint unreachable, suggestions may fail", "url", cfg.LLMURL, "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", cfg.LLMURL, "model", cfg.LLMModel)
		}
		suggester = client
	}

	policy, err := config.NewOriginPolicy(cfg.CORSOrigins, cfg.Dev)
	if err != nil {
		return fmt.Errorf("cors origins: %w", err)
	}
	if policy.Empty() {
		slog.Warn("no CORS origins configured, browser clients on other origins will be rejected")
	}

	h := handler.New(db, exam.NewService(db), tokens, suggester)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(policy))
	r.Use(appI18n.Middleware())
	h.Routes(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Addr,
			"db", cfg.DBPath,
			"lang", cfg.Lang,
			"dev", cfg.Dev,
			"llm", cfg.LLMEnabled(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsHandler(policy *config.OriginPolicy) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return policy.Allowed(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// defaultCourses are the two tracks every installation offers.
var defaultCourses = []model.Course{
	{Name: "Curso Tipo A", Code: "MOTO"},
	{Name: "Curso Tipo B", Code: "AUTO"},
}

func seedCourses(ctx context.Context, db *store.Store) error {
	for _, c := range defaultCourses {
		existing, err := db.GetCourseByCode(ctx, c.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := db.CreateCourse(ctx, c); err != nil {
			return fmt.Errorf("create course %s: %w", c.Code, err)
		}
		slog.Info("seeded course", "code", c.Code)
	}
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, email, password string) error {
	if email == "" {
		count, err := db.UserCount(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			slog.Warn("no users exist: set --admin-email and --admin-password or CAMPUS_ADMIN_EMAIL and CAMPUS_ADMIN_PASSWORD")
		}
		return nil
	}

	existing, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = db.CreateUser(ctx, model.User{
		Email:              email,
		FullName:           "Administrador",
		PasswordHash:       hash,
		Role:               model.UserRoleAdmin,
		MustChangePassword: true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("seeded admin user", "email", email)
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicecrm/internal/agent"
	"voicecrm/internal/audit"
	"voicecrm/internal/auth"
	"voicecrm/internal/calls"
	"voicecrm/internal/campaigns"
	"voicecrm/internal/config"
	"voicecrm/internal/contacts"
	"voicecrm/internal/conversations"
	"voicecrm/internal/httpapi"
	"voicecrm/internal/reporting"
	"voicecrm/internal/speech"
	"voicecrm/internal/users"
	"voicecrm/pkg/logger"
	"voicecrm/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local convenience only; real deployments inject env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		log.Error("data dir init failed", "dir", cfg.Store.DataDir, "err", err)
		os.Exit(1)
	}

	userRepo, err := users.Open(cfg.Store.DataDir)
	if err != nil {
		log.Error("users store init failed", "err", err)
		os.Exit(1)
	}
	contactRepo, err := contacts.Open(cfg.Store.DataDir)
	if err != nil {
		log.Error("contacts store init failed", "err", err)
		os.Exit(1)
	}
	campaignRepo, err := campaigns.Open(cfg.Store.DataDir)
	if err != nil {
		log.Error("campaigns store init failed", "err", err)
		os.Exit(1)
	}
	callRepo, err := calls.Open(cfg.Store.DataDir)
	if err != nil {
		log.Error("calls store init failed", "err", err)
		os.Exit(1)
	}
	convoRepo, err := conversations.Open(cfg.Store.DataDir)
	if err != nil {
		log.Error("conversations store init failed", "err", err)
		os.Exit(1)
	}

	userManager := users.NewManager(userRepo)
	campaignManager := campaigns.NewManager(campaignRepo)

	// Tenant custom-field allow-list flows from account settings.
	contactRepo.SetCustomFieldPolicy(userManager.ContactFieldAllowList)

	// Erasure sweep covers every per-tenant collection.
	userManager.RegisterPurger("contacts", contactRepo)
	userManager.RegisterPurger("campaigns", campaignRepo)
	userManager.RegisterPurger("calls", callRepo)
	userManager.RegisterPurger("conversations", convoRepo)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var auditRepo audit.Repository = audit.NewMemoryRepo()
	if cfg.Audit.PostgresDSN != "" {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.Audit.PostgresDSN, utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("audit db init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		auditRepo = audit.NewPostgresRepo(db)
	}
	auditService := audit.NewService(auditRepo)

	speechCfg := speech.Config{
		STTEndpoint:  cfg.Speech.STTEndpoint,
		STTModelSize: cfg.Speech.STTModelSize,
		TTSEndpoint:  cfg.Speech.TTSEndpoint,
		TTSVoice:     cfg.Speech.TTSVoice,
		LLMEndpoint:  cfg.Speech.LLMEndpoint,
		LLMModel:     cfg.Speech.LLMModel,
		Timeout:      cfg.Speech.Timeout,
	}
	var responder speech.Responder = speech.ScriptResponder{}
	if cfg.Speech.LLMEndpoint != "" {
		responder = speech.NewHTTPResponder(speechCfg)
	}
	var tts speech.Synthesizer
	if cfg.Speech.TTSEndpoint != "" {
		tts = speech.NewHTTPSynthesizer(speechCfg)
	}

	callAgent := agent.New(
		log,
		callRepo,
		contactRepo,
		campaignManager,
		convoRepo,
		userManager,
		speech.NewHTTPTranscriber(speechCfg),
		tts,
		responder,
		rdb,
		agent.Config{
			RetryAttempts:      cfg.Agent.RetryAttempts,
			RetrySleep:         cfg.Agent.RetrySleep,
			MaxConcurrentCalls: cfg.Agent.MaxConcurrentCalls,
		},
	)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:          authManager,
		Users:         userManager,
		Contacts:      contactRepo,
		Campaigns:     campaignManager,
		Calls:         callRepo,
		Convos:        convoRepo,
		Agent:         callAgent,
		Reports:       reporting.NewService(callRepo, convoRepo, campaignManager),
		Audit:         auditService,
		SecureCookies: cfg.IsProduction(),
	}
	registerRoutes(r, h, auth.RequireIdentity(authManager, userManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

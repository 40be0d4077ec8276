package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/adapters/llm"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/adapters/messaging"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/app"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	pgrepo "github.com/wowthedoge/nudgebot/internal/conversation_service/repository/postgres"
	httptransport "github.com/wowthedoge/nudgebot/internal/conversation_service/transport/http"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/transport/http/middleware"
	"github.com/wowthedoge/nudgebot/internal/platform/config"
	"github.com/wowthedoge/nudgebot/internal/platform/database"
	"github.com/wowthedoge/nudgebot/internal/platform/logger"
	"github.com/wowthedoge/nudgebot/internal/platform/messagebroker"
)

const serviceName = "conversation_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Conversation service starting...", "http_port", cfg.ServerPort, "grpc_port", cfg.GRPCPort)

	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "conversation-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS", "url", cfg.NATSUrl)

	userRepo := pgrepo.NewPgUserRepository(dbPool, appLogger)
	memoryRepo := pgrepo.NewPgMemoryRepository(dbPool, appLogger)
	scheduledRepo := pgrepo.NewPgScheduledMessageRepository(dbPool, appLogger)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	llmClient := llm.NewAnthropicClient(llm.Config{
		BaseURL:          cfg.LLMBaseURL,
		APIKey:           cfg.ClaudeAPIKey,
		Model:            cfg.LLMModel,
		MaxTokens:        cfg.LLMMaxTokens,
		SummaryMaxTokens: cfg.LLMSummaryMaxTokens,
	}, httpClient, appLogger)
	if cfg.ClaudeAPIKey == "" {
		appLogger.Warn("CLAUDE_API_KEY is not set; chat completions will fail")
	}

	var sender domain.MessageSender
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		sender = messaging.NewWhatsAppProvider(appLogger, cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, httpClient)
		appLogger.Info("Using WhatsApp delivery channel")
	} else {
		sender = messaging.NewDryRunProvider(appLogger, false)
		appLogger.Warn("WhatsApp credentials not set; outbound messages are logged only")
	}

	validate := validator.New()
	interpreter := app.NewInterpreter(llmClient, scheduledRepo, validate, appLogger)
	compactor := app.NewCompactor(memoryRepo, llmClient, cfg.CompactionThreshold, appLogger)
	dispatcher := app.NewDispatcher(scheduledRepo, sender, memoryRepo, compactor, app.DispatcherConfig{
		PollInterval:      cfg.DispatcherPollInterval(),
		SendRatePerSecond: cfg.DispatcherSendRatePerSecond,
	}, appLogger)
	conversationSvc := app.NewConversationService(userRepo, memoryRepo, interpreter, compactor, sender, appLogger)
	consumer := app.NewInboundConsumer(natsClient, conversationSvc, validate, appLogger)

	webhookHandler := httptransport.NewWebhookHandler(natsClient, validate, httptransport.WebhookConfig{
		VerifyToken:    cfg.WhatsAppVerifyToken,
		AppSecret:      cfg.WhatsAppAppSecret,
		InboundSubject: cfg.NATSInboundSubject,
	}, appLogger)
	adminHandler := httptransport.NewAdminHandler(scheduledRepo, dispatcher, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "Conversation service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/webhook", webhookHandler.Verify)
	r.Post("/webhook", webhookHandler.Receive)
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.AuthMiddleware(cfg.JWTAccessSecret, appLogger))
		adminHandler.Routes(v1)
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "port", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen on port %d: %w", cfg.GRPCPort, err)
		}
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		appLogger.Info("gRPC health server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return consumer.StartConsuming(groupCtx, cfg.NATSInboundSubject, cfg.NATSQueueGroup)
	})

	g.Go(func() error {
		return dispatcher.Run(groupCtx)
	})

	if cfg.ReengageEnabled {
		reengager := app.NewReengager(userRepo, memoryRepo, llmClient, sender, app.ReengagerConfig{
			StaleAfter:        cfg.StaleConversationAfter(),
			Interval:          cfg.ReengageInterval(),
			SendRatePerSecond: cfg.DispatcherSendRatePerSecond,
		}, appLogger)
		g.Go(func() error {
			return reengager.Run(groupCtx)
		})
	}

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutdown signal received, stopping servers...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server shutdown failed", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Conversation service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Conversation service shut down.")
}

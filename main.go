package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostelmon/internal/api"
	"hostelmon/internal/complaint"
	"hostelmon/internal/config"
	"hostelmon/internal/health"
	"hostelmon/internal/httpapi"
	"hostelmon/internal/llm"
	"hostelmon/internal/logger"
	"hostelmon/internal/notify"
	"hostelmon/internal/storage"
	"hostelmon/internal/summary"
	"hostelmon/internal/telegram"
	"hostelmon/internal/translate"
	"hostelmon/internal/whatsapp"

	"go.uber.org/zap"
)

const (
	shutdownTimeout = 15 * time.Second
	// long polling holds getUpdates open for 30s
	telegramTimeout = 60 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "hostelmon")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting hostel complaint server",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("debug", cfg.DebugMode))

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("Failed to close store", zap.Error(err))
		}
	}()

	manager := complaint.NewManager(store)
	assembler := complaint.NewAssembler(complaint.NewRoutingTable(cfg.Routes))

	var (
		notifiers []notify.Notifier
		replier   complaint.Replier
		bot       *telegram.Client
		stream    *notify.Kafka
	)

	if cfg.WhatsAppEnabled() {
		wa := whatsapp.New(
			api.NewRestClient(api.Options{BaseURL: whatsapp.GraphBaseURL, Timeout: cfg.HTTPTimeout, RetryCount: 2}),
			cfg.MetaPhoneNumberID, cfg.MetaAccessToken, cfg.MetaAPIVersion, cfg.DebugMode, log)
		replier = wa
		notifiers = append(notifiers, wa)
	} else {
		log.Warn("META_PHONE_NUMBER_ID or META_ACCESS_TOKEN not set, WhatsApp replies disabled")
	}

	if cfg.ResendAPIKey != "" {
		notifiers = append(notifiers, notify.NewEmail(
			api.NewRestClient(api.Options{BaseURL: notify.ResendBaseURL, Timeout: cfg.HTTPTimeout, RetryCount: 2}),
			cfg.ResendAPIKey, cfg.EmailFrom, cfg.BaseURL, cfg.DebugMode, log))
	} else {
		log.Warn("RESEND_API_KEY not set, department email disabled")
	}

	if cfg.TelegramEnabled() {
		bot = telegram.New(
			api.NewRestClient(api.Options{BaseURL: telegram.APIBaseURL, Timeout: telegramTimeout}),
			cfg.TelegramBotToken, cfg.TelegramChatID, cfg.DebugMode, log)
		notifiers = append(notifiers, bot)
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, department chat disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		stream = notify.NewKafka(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic, log)
		notifiers = append(notifiers, stream)
	}

	dispatcher := notify.NewDispatcher(notifiers, cfg.WorkerPoolSize, cfg.NotifyTimeout, log)
	monitor := health.NewMonitor(dispatcher.Stats)

	opts := []complaint.ServiceOption{complaint.WithPublisher(monitor.Tap(dispatcher))}
	if replier != nil {
		opts = append(opts, complaint.WithReplier(replier))
	}

	translator, err := translate.New(ctx, cfg.TranslateAPIKey, log)
	if err != nil {
		log.Warn("Translation unavailable", zap.Error(err))
	} else if translator != nil {
		opts = append(opts, complaint.WithTranslator(translator))
		defer translator.Close()
	}

	if cfg.LLMAPIKey != "" {
		classifier := llm.New(
			api.NewRestClient(api.Options{BaseURL: cfg.LLMBaseURL, Timeout: cfg.HTTPTimeout}),
			cfg.LLMAPIKey, cfg.LLMModel, log)
		opts = append(opts, complaint.WithRemoteClassifier(classifier))
		log.Info("Remote classifier enabled", zap.String("model", cfg.LLMModel))
	}

	svc := complaint.NewService(manager, assembler, log, opts...)
	pendingSummary := summary.NewSource(manager, log)

	if bot != nil {
		bot.SetResolver(svc)
		bot.SetSummary(pendingSummary)
		go bot.HandleUpdates(ctx)
	}

	handlers := &httpapi.Server{
		Service:     svc,
		Replier:     replier,
		Summary:     pendingSummary,
		Monitor:     monitor,
		VerifyToken: cfg.MetaVerifyToken,
		Log:         log,
	}
	server := httpapi.NewHTTPServer(":"+cfg.Port, handlers.Routes())

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}

	// drain queued notifications before closing their sinks
	dispatcher.Close()
	stats := dispatcher.Stats()
	log.Info("Notifications drained",
		zap.Int64("delivered", stats.Delivered),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped))

	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Warn("Failed to close Kafka writer", zap.Error(err))
		}
	}

	log.Info("Server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cutecleansoaps/api/internal/handlers"
	"github.com/cutecleansoaps/api/internal/notifications"
	"github.com/cutecleansoaps/api/internal/payments"
	"github.com/cutecleansoaps/api/internal/platform/auth"
	"github.com/cutecleansoaps/api/internal/platform/config"
	pfirestore "github.com/cutecleansoaps/api/internal/platform/firestore"
	"github.com/cutecleansoaps/api/internal/platform/jobs"
	"github.com/cutecleansoaps/api/internal/platform/observability"
	"github.com/cutecleansoaps/api/internal/platform/ratelimit"
	"github.com/cutecleansoaps/api/internal/platform/secrets"
	"github.com/cutecleansoaps/api/internal/repositories"
	firestoreRepo "github.com/cutecleansoaps/api/internal/repositories/firestore"
	"github.com/cutecleansoaps/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Stripe.APIKey", "Stripe.WebhookSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if strings.TrimSpace(cfg.Orders.ConfirmationSalt) == "" {
		logger.Warn("orders confirmation salt not configured; confirmation codes are guessable")
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}

	var eventPublisher services.OrderEventPublisher
	if topicName := strings.TrimSpace(cfg.Events.Topic); topicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(topicName)
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		eventPublisher, err = jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	} else {
		logger.Info("order events topic not configured; event publishing disabled")
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        zapEventLogger(logger.Named("payments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	var mailer notifications.Mailer
	if strings.TrimSpace(cfg.Email.ResendAPIKey) != "" {
		resendMailer, err := notifications.NewResendMailer(notifications.ResendMailerConfig{
			APIKey:      cfg.Email.ResendAPIKey,
			DefaultFrom: cfg.Email.FromAddress,
			Logger:      zapEventLogger(logger.Named("notifications")),
		})
		if err != nil {
			logger.Fatal("failed to initialise resend mailer", zap.Error(err))
		}
		mailer = resendMailer
	} else {
		logger.Warn("resend api key not configured; transactional email disabled")
	}

	fulfillmentService, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:           orderRepo,
		Payments:         stripeProvider,
		Mailer:           mailer,
		Events:           eventPublisher,
		OwnerRecipients:  cfg.Email.OwnerRecipients,
		ConfirmationSalt: cfg.Orders.ConfirmationSalt,
		Clock:            time.Now,
		Logger:           zapEventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		logger.Fatal("failed to initialise fulfillment service", zap.Error(err))
	}

	orderAdminService, err := services.NewOrderAdminService(services.OrderAdminServiceDeps{
		Orders: orderRepo,
		Mailer: mailer,
		Events: eventPublisher,
		Clock:  time.Now,
		Logger: zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order admin service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Catalog:          catalogRepo,
		Orders:           orderRepo,
		Payments:         stripeProvider,
		SuccessURL:       cfg.Checkout.SuccessURL,
		CancelURL:        cfg.Checkout.CancelURL,
		Currency:         "usd",
		ConfirmationSalt: cfg.Orders.ConfirmationSalt,
		Clock:            time.Now,
		Logger:           zapEventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, fetcher)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	webhookHandlers, err := handlers.NewWebhookHandlers(fulfillmentService)
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}
	checkoutHandlers, err := handlers.NewCheckoutHandlers(checkoutService)
	if err != nil {
		logger.Fatal("failed to initialise checkout handlers", zap.Error(err))
	}
	adminHandlers, err := handlers.NewAdminOrderHandlers(orderAdminService)
	if err != nil {
		logger.Fatal("failed to initialise admin order handlers", zap.Error(err))
	}

	publicLimiter := ratelimit.NewFixedWindow(cfg.RateLimits.PublicPerWindow, cfg.RateLimits.Window, time.Now)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithStorefrontRoutes(checkoutHandlers.Routes),
		handlers.WithStorefrontMiddlewares(
			handlers.CORSMiddleware(cfg.Checkout.AllowedOrigin),
			handlers.RateLimitMiddleware(publicLimiter),
		),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithAdminMiddlewares(auth.StaticTokenMiddleware(cfg.Admin.Token)),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("cutecleansoaps api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts a zap logger to the event/fields callback used across services.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("event", zFields...)
	}
}

func newSystemService(client *firestore.Client, fetcher *secrets.Fetcher) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok {
					switch st.Code() {
					case codes.NotFound:
						return nil
					}
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
	})
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := secretProjectMapFromEnv(env); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}

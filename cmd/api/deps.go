package main

import (
	"context"
	"log"
	"time"

	"bancora/internal/domain/item"
	"bancora/internal/domain/link"
	"bancora/internal/domain/ratelimit"
	"bancora/internal/domain/session"
	"bancora/internal/domain/webhook"
	"bancora/internal/infrastructure/authority"
	"bancora/internal/infrastructure/bankapi"
	"bancora/internal/infrastructure/crypto"
	"bancora/internal/infrastructure/firebase"
	"bancora/internal/infrastructure/postgres"
	"bancora/internal/infrastructure/redis"
	httphandlers "bancora/internal/interfaces/http"
	"bancora/internal/interfaces/scheduler"
	"bancora/internal/shared/config"
	"bancora/internal/shared/messages"
)

// Durable rate-limit counters for closed windows are kept this long before
// the purge job deletes them.
const rateLimitRetention = 24 * time.Hour

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *redis.CounterCache

	// Handlers
	LinkHandler    *httphandlers.LinkHandler
	ItemHandler    *httphandlers.ItemHandler
	WebhookHandler *httphandlers.WebhookHandler

	// Background work: the sweeper owns the worker pool the webhook
	// handler submits to, so it exists even when the interval loop is
	// disabled.
	Sweeper *scheduler.Sweeper
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor for provider access tokens
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	itemRepo := postgres.NewItemRepository(db)
	webhookRepo := postgres.NewWebhookEventRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	rateLimitRepo := postgres.NewRateLimitRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Redis is the fast path for rate-limit counters; the durable table
	// above remains the fallback, so a missing redis only costs speed.
	var counterCache ratelimit.CounterCache
	redisCache, err := redis.NewCounterCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: redis unavailable, rate limiting falls back to the database: %v", err)
	} else {
		counterCache = redisCache
		log.Println("Connected to redis")
	}

	limiter := ratelimit.NewLimiter(counterCache, rateLimitRepo, int64(cfg.RateLimit.Threshold), cfg.RateLimit.Window)

	// Session validation is delegated to the external OAuth authority
	authorityClient := authority.NewClient(cfg.Authority.BaseURL, cfg.Authority.Timeout)
	sessionValidator := session.NewValidator(authorityClient)
	sessionCache := session.NewTTLCache(cfg.Session.TTL)

	// Banking provider client and webhook signature verifier
	bankClient := bankapi.NewClient(bankapi.Config{
		BaseURL:      cfg.BankAPI.BaseURL,
		ClientID:     cfg.BankAPI.ClientID,
		ClientSecret: cfg.BankAPI.ClientSecret,
		Timeout:      cfg.BankAPI.Timeout,
	})
	verifier := bankapi.NewVerifier(bankClient)

	// Initialize domain services
	itemService := item.NewService(itemRepo, encryptor, auditRepo)
	processor := webhook.NewProcessor(webhookRepo, itemService, auditRepo)

	// Push notifications are optional: without Firebase credentials the
	// connection flow simply skips the confirmation push and error
	// transitions stay silent on the user's devices.
	var notifier link.Notifier
	if cfg.Firebase.CredentialsFile != "" {
		fcmClient, err := firebase.NewClient(context.Background(), cfg.Firebase.CredentialsFile, userRepo.DeactivateDeviceToken)
		if err != nil {
			log.Printf("Warning: failed to initialize Firebase, notifications disabled: %v", err)
		} else {
			connNotifier := firebase.NewConnectionNotifier(fcmClient, userRepo, loadMessages(cfg.Firebase.MessagesFile))
			notifier = connNotifier
			itemService.SetErrorNotifier(connNotifier)
			log.Println("Firebase notifications enabled")
		}
	}

	linkService := link.NewService(
		sessionValidator,
		limiter,
		subscriptionRepo,
		itemService,
		bankClient,
		sessionCache,
		auditRepo,
		userRepo,
		notifier,
		link.Config{
			Products:        cfg.BankAPI.Products,
			WebhookURL:      cfg.BankAPI.WebhookURL,
			ExchangeTimeout: cfg.BankAPI.Timeout,
		},
	)

	// The sweeper reprocesses stuck webhooks, evicts expired cached
	// sessions, and prunes closed rate-limit windows.
	sweeper := scheduler.NewSweeper(scheduler.SweeperConfig{
		Interval:    cfg.Scheduler.SweepInterval,
		WorkerCount: cfg.Scheduler.WorkerCount,
		QueueSize:   cfg.Scheduler.QueueSize,
		JobProvider: func(ctx context.Context) []scheduler.Job {
			return []scheduler.Job{
				&scheduler.WebhookSweepJob{Processor: processor, BatchSize: cfg.Scheduler.SweepBatchSize},
				&scheduler.SessionEvictionJob{Cache: sessionCache},
				&scheduler.RateLimitPurgeJob{Store: rateLimitRepo, Retention: rateLimitRetention},
			}
		},
	})

	// Initialize handlers
	linkHandler := httphandlers.NewLinkHandler(linkService)
	itemHandler := httphandlers.NewItemHandler(itemService, sessionValidator)
	webhookHandler := httphandlers.NewWebhookHandler(processor, verifier, sweeper.Pool())

	return &Dependencies{
		DB:             db,
		Redis:          redisCache,
		LinkHandler:    linkHandler,
		ItemHandler:    itemHandler,
		WebhookHandler: webhookHandler,
		Sweeper:        sweeper,
	}, nil
}

func loadMessages(path string) *messages.Messages {
	if path == "" {
		return messages.Defaults()
	}
	texts, err := messages.Load(path)
	if err != nil {
		log.Printf("Warning: failed to load notification messages, using defaults: %v", err)
		return messages.Defaults()
	}
	return texts
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

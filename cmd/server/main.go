package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/volspike/wallet-auth/internal/api"
	"github.com/volspike/wallet-auth/internal/app"
	"github.com/volspike/wallet-auth/internal/chains"
	"github.com/volspike/wallet-auth/internal/config"
	"github.com/volspike/wallet-auth/internal/deeplink"
	"github.com/volspike/wallet-auth/internal/events"
	"github.com/volspike/wallet-auth/internal/keysource"
	"github.com/volspike/wallet-auth/internal/logger"
	"github.com/volspike/wallet-auth/internal/middleware"
	"github.com/volspike/wallet-auth/internal/nonce"
	"github.com/volspike/wallet-auth/internal/session"
	"github.com/volspike/wallet-auth/internal/siwe"
	"github.com/volspike/wallet-auth/internal/siws"
	"github.com/volspike/wallet-auth/internal/storage"
)

const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	store, err := storage.New(cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("connected to database")

	// Optional Redis: shared nonce/handshake stores and cross-instance events
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		slog.Info("connected to redis")
	}

	// Challenge and handshake stores
	var nonceStore nonce.Store
	var handshakeStore deeplink.Store
	if redisClient != nil {
		nonceStore = nonce.NewRedisStore(redisClient)
		handshakeStore = deeplink.NewRedisStore(redisClient)
	} else {
		memNonces := nonce.NewMemoryStore(sweepInterval)
		defer memNonces.Close()
		memHandshakes := deeplink.NewMemoryStore(sweepInterval)
		defer memHandshakes.Close()
		nonceStore = memNonces
		handshakeStore = memHandshakes
	}

	nonces := nonce.NewManager(nonceStore, nonce.WithTTL(cfg.NonceTTL))
	handshakes := deeplink.NewManager(handshakeStore, cfg.WalletAppLinkBase, cfg.SolanaCluster,
		deeplink.WithTTL(cfg.HandshakeTTL))

	// Session signing key custody
	var source keysource.Provider
	if cfg.SessionSigningKeyEnc != "" {
		source, err = keysource.New(&keysource.Config{
			Provider:          cfg.KeysourceProvider,
			LocalMasterKeyHex: cfg.KeysourceMasterKey,
			AWSKMSKeyID:       cfg.KeysourceAWSKeyID,
			AWSKMSRegion:      cfg.KeysourceAWSRegion,
			VaultAddress:      cfg.KeysourceVaultAddr,
			VaultToken:        cfg.KeysourceVaultToken,
			VaultTransitKey:   cfg.KeysourceVaultKey,
		})
		if err != nil {
			slog.Error("failed to initialize keysource provider", "error", err)
			os.Exit(1)
		}
		slog.Info("initialized keysource provider", "provider", source.Provider())
	}

	signKey, err := keysource.LoadSigningKey(context.Background(), &keysource.SigningKeyConfig{
		KeyHex:          cfg.SessionSigningKeyHex,
		EncryptedKeyB64: cfg.SessionSigningKeyEnc,
		Source:          source,
	})
	if err != nil {
		slog.Error("failed to load session signing key", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSigningKeyHex == "" && cfg.SessionSigningKeyEnc == "" {
		slog.Warn("using ephemeral session signing key; sessions will not survive a restart")
	}

	sessions := session.NewIssuer(signKey, session.WithTTL(cfg.SessionTTL))

	// Events
	var publisher events.Publisher
	if redisClient != nil {
		publisher, err = events.NewRedisStreamPublisher(redisClient)
		if err != nil {
			slog.Error("failed to create event publisher", "error", err)
			os.Exit(1)
		}
	} else {
		publisher = events.NewGoChannelPublisher()
	}
	defer publisher.Close()

	// Verifiers and services
	allowlist := chains.New(cfg.EVMChains, cfg.SolanaChains)
	authService := app.NewAuthService(app.AuthServiceParams{
		Nonces:     nonces,
		EVM:        siwe.NewVerifier(nonces, allowlist, cfg.AuthDomain),
		Solana:     siws.NewVerifier(nonces, allowlist),
		Linker:     app.NewLinker(app.NewPostgresAccountStore(store)),
		Sessions:   sessions,
		Handshakes: handshakes,
		Events:     publisher,
		Domain:     cfg.AuthDomain,
		URI:        cfg.AuthURI,
		Statement:  cfg.AuthStatement,
	})

	// Middleware and API server
	authMiddleware := middleware.NewAuthMiddleware(sessions)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled)

	server := api.NewServer(cfg, authService, authMiddleware, rateLimiter)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
		slog.Info("server stopped")
	}
}

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-zookeeper/zk"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/relay-id/authsvc/internal/authsvc"
	"github.com/relay-id/authsvc/internal/cache"
	"github.com/relay-id/authsvc/internal/config"
	"github.com/relay-id/authsvc/internal/front"
	"github.com/relay-id/authsvc/internal/metrics"
	"github.com/relay-id/authsvc/internal/password"
	"github.com/relay-id/authsvc/internal/pool"
	"github.com/relay-id/authsvc/internal/registry"
	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/sqlconn"
	"github.com/relay-id/authsvc/internal/sweeper"
	"github.com/relay-id/authsvc/internal/token"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/relay-id/authsvc/internal/user"
	"github.com/relay-id/authsvc/internal/validate"
	"github.com/relay-id/authsvc/pkg/logger"
)

func main() {
	// Dev/local env files; in production these don't exist and the
	// process relies on real environment variables.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Server.Env)
	log.Info("application_startup", "env", cfg.Server.Env)

	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryDSN,
			Environment: cfg.Server.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	}

	ctx := context.Background()

	// Relational store behind the bounded pool.
	factory := sqlconn.Factory(cfg.DSN(), cfg.Database.MaxRetries,
		time.Duration(cfg.Database.RetryIntervalMs)*time.Millisecond)
	dbPool, err := pool.New(ctx, cfg.Database.PoolSize, factory, log)
	if err != nil {
		log.Error("database_pool_create_failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	metrics.RegisterPoolGauge("postgres", dbPool.InUse)
	log.Info("database_connected", "pool_size", cfg.Database.PoolSize)

	// Cache.
	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: time.Duration(cfg.Redis.DialTimeoutMs) * time.Millisecond,
		ReadTimeout: time.Duration(cfg.Redis.ReadTimeoutMs) * time.Millisecond,
	})
	defer redisClient.Close()
	kv := cache.New(redisClient)
	if err := kv.Ping(ctx); err != nil {
		log.Error("cache_ping_failed", "error", err)
		os.Exit(1)
	}
	log.Info("cache_connected", "addr", cfg.RedisAddr())

	// Core collaborators.
	codec, err := token.New([]byte(cfg.Security.JWTSecret), cfg.Security.JWTIssuer,
		cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		log.Error("token_codec_init_failed", "error", err)
		os.Exit(1)
	}

	users := user.New(dbPool)
	tokens := tokenstore.New(dbPool)
	smsCtrl := sms.New(kv, &sms.LogSender{Logger: log}, sms.Config{
		CodeDigits:    cfg.SMS.CodeLen,
		CodeTTL:       time.Duration(cfg.SMS.CodeTTLSeconds) * time.Second,
		SendInterval:  time.Duration(cfg.SMS.SendIntervalSeconds) * time.Second,
		RetryTTL:      time.Duration(cfg.SMS.RetryTTLSeconds) * time.Second,
		MaxRetryCount: int64(cfg.SMS.MaxRetryCount),
		LockDuration:  time.Duration(cfg.SMS.LockSeconds) * time.Second,
	})
	limiter := authsvc.NewLoginLimiter(kv, int64(cfg.Login.MaxFailedAttempts),
		time.Duration(cfg.Login.FailedAttemptsWindowSeconds)*time.Second,
		time.Duration(cfg.Login.LockDurationSeconds)*time.Second)

	svc := authsvc.New(authsvc.Config{
		RefreshTTL: cfg.RefreshTokenTTL(),
		PasswordPolicy: validate.PasswordPolicy{
			MinLength:      cfg.Password.MinLength,
			MaxLength:      cfg.Password.MaxLength,
			RequireUpper:   cfg.Password.RequireUppercase,
			RequireLower:   cfg.Password.RequireLowercase,
			RequireDigit:   cfg.Password.RequireDigit,
			RequireSpecial: cfg.Password.RequireSpecialChar,
		},
		CodeLength:         cfg.SMS.CodeLen,
		MaxSessionsPerUser: cfg.Login.MaxSessionsPerUser,
	}, users, tokens, codec, smsCtrl, password.NewBcryptHasher(0), limiter)

	// Background sweeper.
	sw := sweeper.New(tokens, 10*time.Minute, log)
	sw.Start()
	defer sw.Stop()

	// Service registration + discovery.
	var registrar *registry.Registrar
	if cfg.Zookeeper.Enabled {
		zkConn, _, err := zk.Connect(cfg.Zookeeper.Hosts, cfg.ZKSessionTimeout())
		if err != nil {
			log.Error("zookeeper_connect_failed", "error", err)
			os.Exit(1)
		}
		defer zkConn.Close()

		if cfg.Zookeeper.RegisterSelf {
			host := advertiseHost(cfg.Server.Host)
			inst := registry.Instance{
				ServiceName: cfg.Zookeeper.ServiceName,
				InstanceID:  fmt.Sprintf("%s:%d", host, cfg.Server.Port),
				Host:        host,
				Port:        cfg.Server.Port,
				Weight:      cfg.Zookeeper.Weight,
			}
			registrar = registry.NewRegistrar(zkConn, cfg.Zookeeper.RootPath, log)

			// The session may need a moment to establish before the
			// ephemeral node can be created.
			deadline := time.Now().Add(cfg.ZKSessionTimeout())
			for {
				err = registrar.Register(inst)
				if err == nil || time.Now().After(deadline) {
					break
				}
				time.Sleep(200 * time.Millisecond)
			}
			if err != nil {
				log.Error("service_register_failed", "error", err)
				os.Exit(1)
			}
			defer func() {
				if err := registrar.Unregister(); err != nil {
					log.Error("service_unregister_failed", "error", err)
				}
			}()
		}

		disco := registry.NewDiscovery(zkConn, cfg.Zookeeper.RootPath, log)
		defer disco.Close()
		if err := disco.Subscribe(cfg.Zookeeper.ServiceName, nil); err != nil {
			log.Warn("discovery_subscribe_failed", "error", err)
		}
	}

	// HTTP surface.
	router := front.NewRouter(svc, codec, front.Options{
		RPS:    20,
		Burst:  40,
		Sentry: sentryDSN != "",
		Health: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kv.Ping(ctx)
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}
		log.Info("server_shutdown_complete")
	}
}

// advertiseHost picks the address peers should dial. A wildcard bind
// address is useless in the registry, so fall back to the first
// non-loopback interface address.
func advertiseHost(bind string) string {
	if bind != "" && bind != "0.0.0.0" && bind != "::" {
		return bind
	}
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
				return ipNet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Harisdckap/Croom/internal/account"
	"github.com/Harisdckap/Croom/internal/config"
	"github.com/Harisdckap/Croom/internal/db"
	"github.com/Harisdckap/Croom/internal/federation"
	internalhttp "github.com/Harisdckap/Croom/internal/http"
	"github.com/Harisdckap/Croom/internal/mail"
	"github.com/Harisdckap/Croom/internal/otp"
	"github.com/Harisdckap/Croom/internal/repository"
	"github.com/Harisdckap/Croom/internal/token"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	var revocation token.RevocationSet = token.NewMemoryRevocationSet()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		revocation = token.NewRedisRevocationSet(redisClient)
	} else {
		log.Printf("REDIS_ADDR not set, revocations are process-local")
	}

	var mailer mail.Mailer = mail.NewLogMailer(logger)
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}

	store := repository.NewStore(pool)
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTokenTTL, revocation)
	otps := otp.NewService(store, cfg.OTPTTL)
	linker := federation.NewLinker(store)
	svc := account.NewService(store, tokens, otps, linker, mailer, logger)
	server := internalhttp.NewServer(svc)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("identity service listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Compunic-startup/compunic-management/internal/config"
	"github.com/Compunic-startup/compunic-management/internal/dashboard"
	internalhttp "github.com/Compunic-startup/compunic-management/internal/http"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/session"
	"github.com/Compunic-startup/compunic-management/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var docs store.Store
	switch cfg.StoreDriver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := client.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		docs = store.NewRedis(client)
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		cancel()
		if err != nil {
			log.Fatalf("mongo connect failed: %v", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect error: %v", err)
			}
		}()
		docs = store.NewMongo(client.Database(cfg.MongoDatabase))
	case "memory":
		docs = store.NewMemory()
	default:
		log.Fatalf("unknown store driver %q", cfg.StoreDriver)
	}

	resolver := session.NewResolver(cfg.JWTSecret, cfg.JWTIssuer, cfg.IdentityBaseURL, cfg.RoleLookupTimeout)
	registry := dashboard.NewRegistry(docs, notify.New(cfg.NotifyEnabled), time.Now)
	server := internalhttp.NewServer(cfg, resolver, registry)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("console http listening on %s", cfg.HTTPAddr)
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
	registry.CloseAll()
}

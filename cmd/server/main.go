package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartys-dev/chatdesk/internal/admin"
	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/config"
	"github.com/smartys-dev/chatdesk/internal/db"
	"github.com/smartys-dev/chatdesk/internal/email"
	"github.com/smartys-dev/chatdesk/internal/httpapi"
	"github.com/smartys-dev/chatdesk/internal/httpapi/handlers"
	"github.com/smartys-dev/chatdesk/internal/i18n"
	"github.com/smartys-dev/chatdesk/internal/realtime"
	"github.com/smartys-dev/chatdesk/internal/storage"
	"github.com/smartys-dev/chatdesk/internal/store/redisstore"
	"github.com/smartys-dev/chatdesk/internal/upload"
	"github.com/smartys-dev/chatdesk/internal/webhook"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	redis := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redis.Close()

	queue, err := webhook.NewQueue(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbitmq connect: %v", err)
	}
	defer queue.Close()

	var store storage.Storage
	if cfg.OSSEndpoint != "" {
		ossStore, err := storage.NewOSS(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey, cfg.OSSBucket, cfg.OSSPublicURL)
		if err != nil {
			log.Fatalf("oss connect: %v", err)
		}
		store = ossStore
	} else {
		log.Printf("oss not configured, attachments held in memory")
		store = storage.NewMemory()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatSvc := chat.NewService(chat.NewRepo(gdb), redis, queue, cfg.MessagePageSize)
	if err := chatSvc.LoadConversations(ctx); err != nil {
		log.Fatalf("load conversations: %v", err)
	}

	adminSvc := admin.NewService(
		admin.NewRepo(gdb),
		email.NewSender(email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}),
		redis,
		cfg.DashboardBaseURL,
	)

	hub := realtime.NewHub()
	go realtime.NewSubscriber(redis, chatSvc, hub).Run(ctx)

	h := handlers.NewHandler(
		chatSvc,
		adminSvc,
		upload.NewService(store),
		hub,
		i18n.New(cfg.DefaultLanguage),
		cfg.JWTSecret,
	)
	router := httpapi.NewRouter(h, adminSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

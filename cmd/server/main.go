package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"petstore-service/config"
	"petstore-service/internal/api"
	"petstore-service/internal/broker"
	"petstore-service/internal/cart"
	"petstore-service/internal/docstore"
	"petstore-service/internal/notifier"
	"petstore-service/internal/objectstore"
	"petstore-service/internal/service"
	"petstore-service/internal/store"
	"petstore-service/internal/util"
	"petstore-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting petstore service")

	tp, err := util.InitTracer("petstore-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var docs docstore.Store
	if cfg.Database.URL != "" {
		docs, err = docstore.NewPostgres(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		log.Println("Database connected")
	} else {
		docs = docstore.NewMemory()
		log.Println("No DATABASE_URL set, using in-memory document store")
	}
	defer docs.Close()

	cartClient, err := cart.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cartClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	images, err := objectstore.NewDisk(cfg.Storage.UploadDir, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}

	db := store.NewStore(docs, cfg.Business.TxMaxAttempts)

	orderService := service.NewOrderService(db, eventPublisher)
	reviewService := service.NewReviewService(db)
	catalogService := service.NewCatalogService(db, images)
	accountService := service.NewAccountService(db, eventPublisher)

	if cfg.Business.SeedCatalog {
		if err := catalogService.Seed(context.Background()); err != nil {
			log.Printf("Failed to seed catalog: %v", err)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, buildMailer(cfg))
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Static(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
	handler := api.NewHandler(orderService, reviewService, catalogService, accountService, cartClient)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}

func buildMailer(cfg *config.Config) notifier.Mailer {
	if cfg.Mail.Host == "" {
		log.Println("No SMTP_HOST set, emails will be logged instead of sent")
		return notifier.LogMailer{}
	}
	port, err := strconv.Atoi(cfg.Mail.Port)
	if err != nil {
		log.Printf("Invalid SMTP_PORT %q, falling back to 587", cfg.Mail.Port)
		port = 587
	}
	return notifier.NewSMTPMailer(cfg.Mail.Host, port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/config"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/api"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/broker"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/redisclient"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/service"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment engine")

	tp, err := util.InitTracer("fulfillment-engine", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	authorizer := service.NewSimulatedAuthorizer(cfg.Business.PaymentDeclineRate)
	orderService := service.NewOrderService(db, authorizer)
	dispatchService := service.NewDispatchService(db, redisClient, cfg.Business)
	ledgerService := service.NewLedgerService(db)
	settlementService := service.NewSettlementService(db, service.NewLoggingRail())

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	outboxRelay := worker.NewOutboxRelay(db, eventPublisher, time.Second)
	go outboxRelay.Run(workerCtx)

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notifyWorker := worker.NewNotificationWorker(notifyConsumer)
	go func() {
		if err := notifyWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	settlementWorker := worker.NewSettlementWorker(settlementService,
		cfg.Business.SettlementInterval, cfg.Business.DayShiftStartHour, cfg.Business.DayShiftEndHour)
	go settlementWorker.Run(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orderService, dispatchService, ledgerService, settlementService)
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
	if err := notifyConsumer.Close(); err != nil {
		log.Printf("Error closing consumer: %v", err)
	}

	log.Println("Server exited")
}

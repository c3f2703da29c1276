package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/shop-analytics/internal/api"
	"github.com/example/shop-analytics/internal/auth"
	"github.com/example/shop-analytics/internal/infrastructure/kafka"
	"github.com/example/shop-analytics/internal/logstream"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	eventsTopic := getEnv("KAFKA_TOPIC", "users-events")
	logsTopic := getEnv("KAFKA_LOGS_TOPIC", "logs")
	jwtSecret := getEnv("JWT_SECRET", "dev-secret")
	httpAddr := getEnv("HTTP_ADDR", ":8080")

	log.Println("[Tracker] ========================================")
	log.Println("[Tracker] Behavior Event Ingest API")
	log.Println("[Tracker] ========================================")
	log.Printf("[Tracker] Kafka: %v", kafkaBrokers)
	log.Printf("[Tracker] Topic: %s", eventsTopic)

	if err := kafka.Ping(ctx, kafkaBrokers); err != nil {
		log.Fatalf("[Tracker] Broker unreachable: %v", err)
	}

	producer := kafka.NewProducer(kafkaBrokers, eventsTopic)
	defer producer.Close()

	logs := logstream.NewPublisher(kafkaBrokers, logsTopic, "tracker")
	defer logs.Close()

	jwtService := auth.NewJWTService(jwtSecret)
	handlers := api.NewTrackHandlers(producer)
	router := api.NewTrackerRouter(handlers, jwtService)

	server := &http.Server{Addr: httpAddr, Handler: router}
	go func() {
		log.Printf("[Tracker] Listening on %s", httpAddr)
		if err := logs.Info(ctx, "tracker started on "+httpAddr); err != nil {
			log.Printf("[Tracker] Failed to publish startup log: %v", err)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Tracker] HTTP server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Tracker] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = logs.Info(shutdownCtx, "tracker stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

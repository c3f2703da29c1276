package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/shop-analytics/internal/api/middleware"
	"github.com/example/shop-analytics/internal/auth"
	"github.com/example/shop-analytics/internal/broadcast"
	"github.com/example/shop-analytics/internal/event"
	"github.com/example/shop-analytics/internal/infrastructure/kafka"
	"github.com/example/shop-analytics/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "logs")
	consumerGroup := getEnv("KAFKA_CONSUMER_GROUP", "log-events-group")
	flushInterval := getEnvDuration("FLUSH_INTERVAL", pipeline.DefaultFlushInterval)
	bufferCapacity := getEnvInt("BUFFER_CAPACITY", 10000)
	httpAddr := getEnv("HTTP_ADDR", ":8082")
	jwtSecret := getEnv("JWT_SECRET", "")

	log.Println("[LogStream] ========================================")
	log.Println("[LogStream] Live Log Fan-out Consumer")
	log.Println("[LogStream] ========================================")
	log.Printf("[LogStream] Kafka: %v", kafkaBrokers)
	log.Printf("[LogStream] Topic: %s", kafkaTopic)
	log.Printf("[LogStream] Group: %s", consumerGroup)

	if err := kafka.Ping(ctx, kafkaBrokers); err != nil {
		log.Fatalf("[LogStream] Broker unreachable: %v", err)
	}

	hub := broadcast.NewHub()
	defer hub.Close()

	batcher := pipeline.NewBatcher("LogStream", bufferCapacity, flushInterval,
		event.ParseLogEvent, hub.Broadcast)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Printf("[LogStream] Listening to topic: %s", kafkaTopic)
		if err := consumer.Consume(ctx, batcher.HandleMessage); err != nil {
			log.Printf("[LogStream] Consumer stopped: %v", err)
		}
	}()

	flushDone := make(chan struct{})
	go func() {
		batcher.Run(ctx)
		close(flushDone)
	}()

	// Dashboard websocket endpoint. With JWT_SECRET set, viewers must
	// present a valid access token to connect.
	var wsHandler http.Handler = http.HandlerFunc(hub.ServeWS)
	if jwtSecret != "" {
		wsHandler = middleware.AuthMiddleware(auth.NewJWTService(jwtSecret))(wsHandler)
		log.Println("[LogStream] Dashboard socket requires a valid access token")
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		log.Printf("[LogStream] Dashboard endpoint listening on %s", httpAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[LogStream] HTTP server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[LogStream] Shutting down...")
	cancel()
	<-flushDone // push whatever is buffered before dropping viewers

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

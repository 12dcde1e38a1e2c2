package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kobbycode/prestige-merchandise/internal/cart"
	cartcache "github.com/kobbycode/prestige-merchandise/internal/cart/cache"
	"github.com/kobbycode/prestige-merchandise/internal/checkout"
	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/email"
	httpapi "github.com/kobbycode/prestige-merchandise/internal/http"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
	"github.com/kobbycode/prestige-merchandise/internal/orders"
	"github.com/kobbycode/prestige-merchandise/internal/payment"
	"github.com/kobbycode/prestige-merchandise/internal/publisher"
	"github.com/kobbycode/prestige-merchandise/internal/rates"
	"github.com/kobbycode/prestige-merchandise/internal/store"
)

const handlerTimeout = 10 * time.Second

func main() {
	httpPort := getEnv("HTTP_PORT", "8080")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	st, err := buildStore(ctx)
	if err != nil {
		log.Fatalf("Failed to set up store: %v", err)
	}
	defer st.Close()

	// Redis backs the cart cache and the notification feeds
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Connected to redis at %s", redisAddr)

	notifStore := notify.NewRedisStore(redisClient)
	dispatcher := notify.NewDispatcher(15 * time.Second)

	ratesProvider := rates.NewStaticProvider("GHS", map[string]float64{
		"USD": 0.067,
		"EUR": 0.061,
		"GBP": 0.052,
	})

	transactor := checkout.NewTransactor(st)
	checkoutSvc := checkout.NewService(transactor, payment.SandboxGateway{}, ratesProvider, notifStore, dispatcher)
	ordersSvc := orders.NewService(st, notifStore, email.LogSender{}, dispatcher)

	cartRepo := cart.NewMemoryRepository()
	cartSvc := cart.NewService(cartRepo, cartcache.NewRedisCache(redisClient), st)

	// Outbox poller publishes committed order events to Kafka
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		topic := getEnv("KAFKA_TOPIC", "order-events")
		poller := publisher.NewOutboxPoller(st, topic, strings.Split(brokers, ",")...)
		go poller.Run(ctx)
		log.Printf("Outbox poller publishing to %s on topic %s", brokers, topic)
	}

	router := httpapi.NewRouter(
		httpapi.NewOrdersHandler(checkoutSvc, ordersSvc, cartSvc, handlerTimeout),
		httpapi.NewCartHandler(cartSvc, handlerTimeout),
		httpapi.NewNotificationsHandler(notifStore, handlerTimeout),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", httpPort),
		Handler: otelhttp.NewHandler(router, "prestige-merchandise"),
	}

	go func() {
		log.Printf("Order engine listening on port %s", httpPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down order engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	dispatcher.Wait() // let in-flight effects drain
	log.Println("Order engine stopped")
}

func buildStore(ctx context.Context) (store.Store, error) {
	backend := getEnv("STORE_BACKEND", "memory")
	switch backend {
	case "postgres":
		port, err := strconv.Atoi(getEnv("POSTGRES_PORT", "5432"))
		if err != nil {
			return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
		}
		cred := &store.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              port,
			User:              getEnv("POSTGRES_USER", "postgres"),
			Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:            getEnv("POSTGRES_DB", "merchandise"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations"),
		}
		pg, err := store.NewPostgresStore(cred)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(cred); err != nil {
			return nil, err
		}
		log.Println("Connected to postgres!")
		return pg, nil
	case "memory":
		mem := store.NewMemoryStore()
		seedDemoCatalog(ctx, mem)
		log.Println("Using in-memory store with demo catalog")
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func seedDemoCatalog(ctx context.Context, st store.Store) {
	demo := []*domain.Product{
		{ID: "tee-classic", Name: "Classic Tee", Price: 120, Stock: 50, Images: []string{"/img/tee-classic.png"}},
		{ID: "hoodie-prestige", Name: "Prestige Hoodie", Price: 350, Stock: 20, Images: []string{"/img/hoodie.png"}},
		{ID: "cap-logo", Name: "Logo Cap", Price: 80, Stock: 35, Images: []string{"/img/cap.png"}},
	}
	for _, product := range demo {
		if err := st.UpsertProduct(ctx, product); err != nil {
			log.Printf("failed to seed product %s: %v", product.ID, err)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

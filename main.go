// main.go
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"instareply-router/resolver"
)

var (
	db     *sql.DB
	config Config

	store            *Store
	proc             *Processor
	recentDeliveries *recentRing

	// timeNow is a seam for tests.
	timeNow = time.Now
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("🚀 Starting InstaReply webhook router...")

	loadConfig()
	initLogLevel()
	setupDatabase()

	store = NewStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("❌ Schema setup failed: %v", err)
	}

	graphClient := NewGraphClient(config.GraphBaseURL)
	profiles := NewProfileCache(graphClient, setupRedis())

	res := resolver.New(store, store, graphClient, resolver.Config{
		Policy:      resolver.Policy(config.MarkerPolicy),
		EnableProbe: config.EnableCredentialProbe,
	})

	proc = NewProcessor(store, res, profiles, nil)
	recentDeliveries = newRecentRing(50)

	// One sweep at boot, then hourly. Idempotent, so racing live requests
	// is tolerated.
	go runSweeper(context.Background(), store, time.Hour, resolver.MarkerTTL)

	router := http.NewServeMux()
	router.HandleFunc("/webhook", recoverMiddleware(validateSignedRequest(handleWebhook)))
	router.HandleFunc("/health", handleHealth)
	router.HandleFunc("/debug/recent", handleRecent)

	log.Printf("🌐 Server starting on port %s", config.Port)
	log.Fatal(http.ListenAndServe(":"+config.Port, router))
}

func loadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("💡 Using platform environment variables (no .env file)")
	}

	config = Config{
		DatabaseURL:           getEnvOrDie("DATABASE_URL"),
		AppSecret:             getEnvOrDie("APP_SECRET"),
		VerifyToken:           getEnvOrDie("VERIFY_TOKEN"),
		Port:                  getEnvOrDefault("PORT", "8080"),
		RedisHost:             os.Getenv("REDIS_HOST"),
		RedisPort:             getEnvOrDefault("REDIS_PORT", "6379"),
		RedisUsername:         os.Getenv("REDIS_USERNAME"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		MarkerPolicy:          getEnvOrDefault("MARKER_POLICY", "strict"),
		EnableCredentialProbe: strings.EqualFold(os.Getenv("ENABLE_CREDENTIAL_PROBE"), "true"),
		GraphBaseURL:          os.Getenv("GRAPH_BASE_URL"),
	}
}

func getEnvOrDie(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("❌ %s environment variable is not set", key)
	}
	return value
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func setupDatabase() {
	log.Printf("📊 Database URL configured (length: %d chars)", len(config.DatabaseURL))

	var err error
	for i := 0; i < 3; i++ {
		log.Printf("🔄 Database connection attempt %d/3...", i+1)
		if db, err = connectDB(); err == nil {
			log.Printf("✅ Successfully connected to database!")
			return
		}
		log.Printf("❌ Connection attempt %d failed: %v", i+1, err)
		time.Sleep(time.Second * 2)
	}

	log.Fatal("❌ Failed to connect to database after 3 attempts")
}

func connectDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Printf("⚙️ Database connection pool configured (max: 25 connections)")
	return db, nil
}

// setupRedis connects the optional profile cache backend. Returns nil when
// Redis is not configured or unreachable; the cache then runs in-memory.
func setupRedis() *redis.Client {
	if config.RedisHost == "" {
		log.Printf("💡 REDIS_HOST not set - profile cache is in-memory only")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisHost + ":" + config.RedisPort,
		Username: config.RedisUsername,
		Password: config.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("⚠️ Redis connection failed, profile cache is in-memory only: %v", err)
		return nil
	}

	log.Printf("✅ Redis connected for profile cache")
	return client
}

func recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				LogError("PANIC RECOVERED: %v", err)
				// The platform retries non-200s; a panic mid-handler still
				// acknowledges so a poison payload cannot cause a redelivery
				// storm.
				w.WriteHeader(http.StatusOK)
			}
		}()
		next(w, r)
	}
}

package storage

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

// InitializeRedis builds the shared Redis client used for daily reward
// counters, streak markers and vendor live presence.
func InitializeRedis() *redis.Client {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
		log.Println("⚠️  REDIS_URL not set, using localhost:6379 (development mode)")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: "",
		DB:       0,
	})

	log.Println("🔧 Redis initialized with address:", redisURL)
	return client
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Canvas    CanvasConfig
	Archive   ArchiveConfig
	Redis     RedisConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	SendQueue         int
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
	EventsPerSecond   float64
	EventBurst        int
	ConnectsPerMinute int
}

type CanvasConfig struct {
	RoomQueueSize     int
	DefaultWidth      float64
	ClearRedoOnAppend bool
}

// Snapshot archive. An empty DBPath disables it.
type ArchiveConfig struct {
	DBPath        string
	KeepSnapshots int
	PruneInterval time.Duration
	QueueSize     int
}

// Presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CORSConfig struct {
	AllowOrigins []string
}

// Load reads an optional .env file, then the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}
	return FromEnv()
}

func FromEnv() *Config {
	dbPath := getEnv("CANVAS_DB_PATH", "./data/canvas.db")
	if dbPath == "off" {
		dbPath = ""
	}

	port := getEnv("PORT", "3001")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize:   getInt("WS_WRITE_BUFFER_SIZE", 4096),
			SendQueue:         getInt("WS_SEND_QUEUE", 512),
			MaxMessageSize:    int64(getInt("WS_MAX_MESSAGE_SIZE", 1024*1024)),
			MessagesPerSecond: getFloat("WS_MESSAGES_PER_SECOND", 100),
			MessageBurst:      getInt("WS_MESSAGE_BURST", 200),
			EventsPerSecond:   getFloat("WS_EVENTS_PER_SECOND", 20),
			EventBurst:        getInt("WS_EVENT_BURST", 100),
			ConnectsPerMinute: getInt("WS_CONNECTS_PER_MINUTE", 60),
		},
		Canvas: CanvasConfig{
			RoomQueueSize:     getInt("ROOM_QUEUE_SIZE", 256),
			DefaultWidth:      getFloat("CANVAS_DEFAULT_WIDTH", 5),
			ClearRedoOnAppend: getBool("CANVAS_CLEAR_REDO_ON_APPEND", false),
		},
		Archive: ArchiveConfig{
			DBPath:        dbPath,
			KeepSnapshots: getInt("ARCHIVE_KEEP_SNAPSHOTS", 20),
			PruneInterval: getDuration("ARCHIVE_PRUNE_INTERVAL", 5*time.Minute),
			QueueSize:     getInt("ARCHIVE_QUEUE_SIZE", 64),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowOrigins: getList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("⚠️ Invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("⚠️ Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// Bare numbers are seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("⚠️ Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

// Comma separated, blanks dropped
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

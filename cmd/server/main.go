package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manpreetbhatti/inkwell/internal/api"
	"github.com/manpreetbhatti/inkwell/internal/archive"
	"github.com/manpreetbhatti/inkwell/internal/config"
	"github.com/manpreetbhatti/inkwell/internal/db"
	"github.com/manpreetbhatti/inkwell/internal/presence"
	"github.com/manpreetbhatti/inkwell/internal/relay"
	"github.com/manpreetbhatti/inkwell/internal/ws"
)

func main() {
	cfg := config.Load()

	hubConfig := relay.Config{
		QueueSize:         cfg.Canvas.RoomQueueSize,
		DefaultWidth:      cfg.Canvas.DefaultWidth,
		ClearRedoOnAppend: cfg.Canvas.ClearRedoOnAppend,
	}

	var database *db.Database
	if cfg.Archive.DBPath != "" {
		var err error
		database, err = db.New(cfg.Archive.DBPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()

		archiver := archive.New(database, archive.Config{
			Interval:      cfg.Archive.PruneInterval,
			KeepSnapshots: cfg.Archive.KeepSnapshots,
			QueueSize:     cfg.Archive.QueueSize,
		})
		archiver.Start()
		defer archiver.Stop()
		hubConfig.Archive = archiver
	} else {
		log.Println("ℹ️ Snapshot archive disabled")
	}

	var mirror *presence.Mirror
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		mirror, err = presence.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Printf("⚠️ Presence mirror unavailable: %v", err)
		} else {
			defer mirror.Close()
			hubConfig.Presence = mirror
		}
	}

	hub := relay.NewHub(hubConfig)

	wsServer := ws.NewServer(hub, ws.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		SendQueue:         cfg.WebSocket.SendQueue,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.WebSocket.MessageBurst,
		EventsPerSecond:   cfg.WebSocket.EventsPerSecond,
		EventBurst:        cfg.WebSocket.EventBurst,
		ConnectsPerMinute: cfg.WebSocket.ConnectsPerMinute,
	})
	defer wsServer.Close()

	apiHandler := api.New(hub, database)
	if mirror != nil {
		apiHandler.SetPresence(mirror)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	apiHandler.Routes(mux)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.CORS(cfg.CORS.AllowOrigins, mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("🎨 Inkwell server starting on %s", cfg.Server.Port)
	if database != nil {
		log.Printf("📁 Database: %s", cfg.Archive.DBPath)
	}
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Rooms:     GET /api/rooms")
	log.Println("  - Room:      GET /api/rooms/{id}")
	log.Println("  - Snapshots: GET /api/rooms/{id}/snapshots")
	log.Println("  - Snapshot:  GET/DELETE /api/snapshots/{id}")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cellstore/internal/config"
	"cellstore/internal/handler"
	"cellstore/internal/hub"
	"cellstore/internal/notify"
	"cellstore/internal/service"
	"cellstore/internal/watcher"
)

func main() {
	// Command line flags
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "config file path (overrides search)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting cellstore server...")

	// Load configuration
	var (
		cfg       *config.Config
		cfgSource string
		err       error
	)
	if *configPath != "" {
		cfg, cfgSource, err = config.LoadFromPath(*configPath)
	} else {
		cfg, cfgSource, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgSource != "" {
		log.Printf("Config loaded from %s", cfgSource)
	} else {
		log.Println("No config file found, using defaults")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	// Initialize event bus
	bus := notify.NewBus()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run()

	// Connect event bus to SSE hub
	eventChan := make(chan notify.Event, 100)
	bus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(event)
		}
	}()

	// Initialize tenant host
	host, err := service.NewHost(cfg, bus)
	if err != nil {
		log.Fatalf("Failed to initialize host: %v", err)
	}
	defer host.Close()
	log.Printf("Data directory: %s", cfg.DataDir)

	// Warm instances for tenants declared in the config
	for _, tenant := range cfg.Tenants {
		if _, err := host.Instance(tenant); err != nil {
			log.Fatalf("Failed to start instance for tenant %q: %v", tenant, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reload table declarations when the config file changes
	if cfgSource != "" {
		w := watcher.New(cfgSource, func() {
			updated, _, err := config.LoadFromPath(cfgSource)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				return
			}
			host.SetTables(updated.Tables)
			bus.Publish(notify.Event{Name: "config:reloaded"})
			log.Println("Config reloaded")
		})
		go func() {
			if err := w.Watch(ctx); err != nil && err != context.Canceled {
				log.Printf("Config watcher stopped: %v", err)
			}
		}()
	}

	// Setup routes
	mux := http.NewServeMux()
	handler.NewRecordsHandler(host).Register(mux)
	mux.Handle("GET /events", sseHub)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := host.Close(); err != nil {
		log.Printf("Host shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

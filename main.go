// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"gcdbackend/internal/catalog"
	"gcdbackend/internal/cleanup"
	"gcdbackend/internal/config"
	"gcdbackend/internal/data"
	"gcdbackend/internal/donation"
	"gcdbackend/internal/logger"
	"gcdbackend/internal/security"
	"gcdbackend/internal/selection"
	"gcdbackend/internal/webhook"
)

type App struct {
	addr          string
	router        chi.Router
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()
	config.ConfigurePaths()

	// Step 2: Setup logging
	loggerConfig := config.LoggerConfig()
	if err := logger.SetupLogger(loggerConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment and paths loaded. Logger ready.")

	// Step 3: Load processor configuration
	if err := config.LoadProcessorConfig(); err != nil {
		logger.LogFatal("Failed to load processor config: %v", err)
	}
	config.LoadCORSConfig()
	config.LoadRedirectConfig()

	// Step 4: Open the donation database
	if err := data.InitDB(config.DatabasePath()); err != nil {
		logger.LogFatal("Failed to initialize database: %v", err)
	}
	if err := data.EnsureSchema(); err != nil {
		logger.LogFatal("Failed to ensure database schema: %v", err)
	}

	// Step 5: Load the gift card catalog and validate the category table
	catalogService := catalog.NewService()
	if err := catalogService.Load(config.CatalogPath()); err != nil {
		logger.LogFatal("Failed to load gift card catalog: %v", err)
	}

	// Step 6: Wire shared state into the handler packages
	store := selection.NewStore()
	donation.SetCatalogService(catalogService)
	donation.SetSelectionStore(store)

	// *** Step 6b: Preload donations still waiting on the processor ***
	if err := donation.PreloadPendingDonations(); err != nil {
		logger.LogFatal("Failed to preload pending donations: %v", err)
	}
	logger.LogInfo("Pending donations preloaded successfully.")

	config.LogCurrentEnvironment()

	// Step 7: Setup app
	app := &App{
		addr:   serverAddress(),
		router: routes(catalogService, store),
	}

	// Step 8: Start background tasks
	go security.CleanExpiredTokens()
	cleanup.StartCleanupRoutine(store)

	// Step 9: Run server
	app.Run()
}

// serverAddress builds the server address from environment variables
func serverAddress() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "5061"
	}
	return host + ":" + port
}

// routes sets up all API routes
func routes(catalogService *catalog.Service, store *selection.Store) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", catalog.CardsHandler(catalogService))
		r.Get("/categories", catalog.CategoriesHandler(catalogService))
		r.Post("/select", selection.SelectHandler(store, catalogService))
		r.Get("/selection", selection.SelectionHandler(store))
		r.Get("/csrf-token", security.CSRFTokenHandler)
		r.Post("/submit-giftcard", donation.SubmitGiftCardHandler)
		r.Get("/donation-status", donation.DonationStatusHandler)
		r.Post("/processor-webhook", webhook.ProcessorWebhookHandler)
	})

	return r
}

// Run starts the HTTP server

func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a separate goroutine
	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	// Wait for a shutdown signal
	<-stop
	logger.LogInfo("Shutdown signal received")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	} else {
		logger.LogInfo("Server shut down gracefully")
	}

	// Wait for active connections to finish
	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
}

// Handler assembles all middleware around the router
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.router

	handler = security.AddCORSHeaders(handler)
	handler = a.trackConnections(handler)
	handler = logRequests(handler)
	// Longer than the processor client timeout so gateway errors surface
	// as JSON instead of a truncated timeout page.
	handler = withTimeout(handler, 35*time.Second)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, "Request timed out")
}

// Middleware: log requests
func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		h.ServeHTTP(w, r)

		duration := time.Since(start)
		logger.LogInfo("%s %s took %v", r.Method, r.URL.Path, duration)
	})
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}

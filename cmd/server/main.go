package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/speakcoach/backend/internal/auth"
	"github.com/speakcoach/backend/internal/avatar"
	"github.com/speakcoach/backend/internal/database"
	"github.com/speakcoach/backend/internal/generator"
	"github.com/speakcoach/backend/internal/media"
	"github.com/speakcoach/backend/internal/middleware"
	"github.com/speakcoach/backend/internal/progress"
	"github.com/speakcoach/backend/internal/scenarios"
	"github.com/speakcoach/backend/internal/sessions"
	"github.com/speakcoach/backend/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Media pipeline: avatar renders land in the bucket.
	uploader, err := storage.NewUploader(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer uploader.Close()

	pipeline := media.NewPipeline(avatar.NewClient(), uploader)

	// Services
	progressService := progress.NewService(db)
	sessionService := sessions.NewService(
		sessions.NewStore(db),
		generator.NewClient(),
		pipeline,
		progressService,
	)

	// Handlers
	authHandler := auth.NewHandler(db)
	sessionHandler := sessions.NewHandler(sessionService)
	progressHandler := progress.NewHandler(progressService)
	scenarioHandler := scenarios.NewHandler(scenarios.NewStore(db), progressService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	authHandler.RegisterRoutes(api)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())
		authHandler.Me(w, r, userID)
	}).Methods("GET")
	sessionHandler.RegisterRoutes(protected)
	progressHandler.RegisterRoutes(protected)
	scenarioHandler.RegisterRoutes(protected)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: c.Handler(r),
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Shut down cleanly so in-flight renders finish their uploads.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down, waiting for background renders")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WARN: server shutdown: %v", err)
	}
	sessionService.Wait()
	log.Println("Shutdown complete")
}

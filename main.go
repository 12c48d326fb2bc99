package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"monkArenaAPI/handlers"
	"monkArenaAPI/internal/invites"
	"monkArenaAPI/internal/notification"
	"monkArenaAPI/internal/streak"
	"monkArenaAPI/internal/workers"
	"monkArenaAPI/middleware"
	"monkArenaAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	redisClient         *redis.Client
	profileService      *services.ProfileService
	streakService       *services.StreakService
	roomService         *services.RoomService
	inviteService       *services.InviteService
	notificationService *services.NotificationService
	roomEvents          *services.RoomEvents
	coreStore           *services.CoreStore
	streakEngines       *streak.Registry
	inviteControllers   *invites.Registry
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Successfully connected to Postgres")

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Failed to parse REDIS_URL:", err)
	}
	redisClient = redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping redis:", err)
	}
	log.Println("Successfully connected to Redis")

	roomEvents = services.NewRoomEvents(redisClient)
	notificationService = services.NewNotificationService(dbPool)
	profileService = services.NewProfileService(dbPool)
	streakService = services.NewStreakService(dbPool, roomEvents)
	roomService = services.NewRoomService(dbPool, roomEvents)
	inviteService = services.NewInviteService(dbPool, notificationService, roomEvents)

	coreStore = &services.CoreStore{
		Profiles:      profileService,
		Streaks:       streakService,
		Rooms:         roomService,
		Invites:       inviteService,
		Notifications: notificationService,
	}
	streakEngines = streak.NewRegistry(coreStore, time.Local)
	inviteControllers = invites.NewRegistry(coreStore)

	fcmService, err := notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
		redisClient.Close()
	}()

	profileHandler := handlers.NewProfileHandler(profileService)
	streakHandler := handlers.NewStreakHandler(streakEngines, profileService)
	roomHandler := handlers.NewRoomHandler(roomService, profileService, coreStore, roomEvents)
	inviteHandler := handlers.NewInviteHandler(inviteControllers, inviteService, profileService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, profileService)
	webhookHandler := handlers.NewWebhookHandler(profileService)

	workers.StartCleanupWorker(dbPool)

	r := mux.NewRouter()

	// The websocket feed authenticates via a query token, so it sits
	// outside the header-based middleware chain.
	r.HandleFunc("/api/v1/rooms/ws/{roomID}", roomHandler.RoomFeed)

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "monkArena-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", profileHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/profile", profileHandler.SetupProfile).Methods("PUT")
	protected.HandleFunc("/user/lookup", profileHandler.LookupByUsername).Methods("GET")
	protected.HandleFunc("/user/leaderboard", profileHandler.GetGlobalLeaderboard).Methods("GET")

	protected.HandleFunc("/user/dashboard", streakHandler.GetDashboard).Methods("GET")
	protected.HandleFunc("/user/streak/confirm", streakHandler.ConfirmStreak).Methods("POST")
	protected.HandleFunc("/user/streak/relapse", streakHandler.Relapse).Methods("POST")

	protected.HandleFunc("/rooms", roomHandler.GetMyRooms).Methods("GET")
	protected.HandleFunc("/rooms", roomHandler.CreateRoom).Methods("POST")
	protected.HandleFunc("/rooms/{roomID}/leaderboard", roomHandler.GetRoomLeaderboard).Methods("GET")
	protected.HandleFunc("/rooms/{roomID}/leave", roomHandler.LeaveRoom).Methods("POST")
	protected.HandleFunc("/rooms/{roomID}/members/{memberID}", roomHandler.RemoveMember).Methods("DELETE")
	protected.HandleFunc("/rooms/{roomID}/invites", inviteHandler.SendInvite).Methods("POST")

	protected.HandleFunc("/invites", inviteHandler.ListInvites).Methods("GET")
	protected.HandleFunc("/invites/{inviteID}/accept", inviteHandler.AcceptInvite).Methods("POST")
	protected.HandleFunc("/invites/{inviteID}/decline", inviteHandler.DeclineInvite).Methods("POST")

	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

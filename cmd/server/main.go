package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pro-chat/internal/chat"
	"pro-chat/internal/db"
	"pro-chat/internal/directory"
	myMiddleware "pro-chat/internal/middleware"
)

func main() {
	// 1. Config & flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("❌ DB_DSN is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("❌ JWT_SECRET is not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// 2. Connect to the database
	database, err := db.NewDatabase(dsn)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database schema initialized")

	// 3. Connect to Redis (cross-instance event bridge)
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// 4. Directory feature (participant lookup + token issuance)
	dirRepo := directory.NewRepository(database.Conn)
	dirService := directory.NewService(dirRepo, jwtSecret)
	dirHandler := directory.NewHandler(dirService)

	// 5. Chat core
	instanceID := uuid.NewString()
	store := chat.NewRepository(database.Conn)
	presence := chat.NewRegistry()
	events := chat.NewBroadcaster(instanceID, presence, redisClient)
	router := chat.NewRouter(store, dirService, presence, events)
	aggregator := chat.NewAggregator(store, dirService)
	guard := chat.NewGuard(store, dirService)

	hub := chat.NewHub(instanceID, presence, router, events, store, redisClient)
	go hub.Run()
	go hub.SubscribeToRedis()
	go hub.SweepStale(chat.SweepInterval, chat.StaleSessionTimeout)

	chatHandler := chat.NewHandler(hub, router, aggregator, guard, store)

	authMiddleware := myMiddleware.NewAuthMiddleware(dirService)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public
	r.Post("/register", dirHandler.Register)
	r.Post("/login", dirHandler.Login)

	// Protected (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/directory/search", dirHandler.Search)

		// WebSocket (real-time)
		r.Get("/ws", chatHandler.ServeWs)

		// REST surface
		r.Get("/api/conversations", chatHandler.GetConversations)
		r.Get("/api/messages/{partnerClass}/{partnerID}", chatHandler.GetMessages)
		r.Put("/api/messages/read/{partnerClass}/{partnerID}", chatHandler.MarkRead)
		r.Get("/api/unread-count", chatHandler.GetUnreadCount)
		r.Post("/api/send", chatHandler.SendMessage)
		r.Delete("/api/conversations/{partnerClass}/{partnerID}", chatHandler.DeleteConversation)
	})

	log.Printf("🚀 Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}

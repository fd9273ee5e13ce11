package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/martin-buur/ccusage/server/internal/auth"
	"github.com/martin-buur/ccusage/server/internal/database"
	"github.com/martin-buur/ccusage/server/internal/handlers"
	"github.com/martin-buur/ccusage/server/internal/middleware"
)

func main() {
	// Load configuration from environment
	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "./ccusage.db")

	// Open database
	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Setup session manager with SQLite store
	sessionMgr := scs.New()
	sessionMgr.Store = sqlite3store.New(db.DB)
	sessionMgr.Lifetime = 7 * 24 * time.Hour
	sessionMgr.Cookie.Secure = false // Set to true in production with HTTPS
	sessionMgr.Cookie.SameSite = http.SameSiteLaxMode

	// Summary updates batch up behind a short delay so bursts of syncs
	// trigger one rebuild.
	debouncer := handlers.NewSummaryDebouncer(db, 30*time.Second)

	h := handlers.New(db, sessionMgr, debouncer)
	authMiddleware := auth.NewMiddleware(db, sessionMgr)

	// Auth endpoints get a tight per-IP limit; sync is chattier.
	authLimiter := middleware.NewIPRateLimiter(1, 5)
	syncLimiter := middleware.NewIPRateLimiter(5, 20)

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/login", authLimiter.LimitFunc(h.Login))
	mux.Handle("/register", authLimiter.LimitFunc(h.Register))

	// Protected routes (session-based)
	mux.Handle("/logout", authMiddleware.RequireAuth(http.HandlerFunc(h.Logout)))
	mux.Handle("/usage/daily", authMiddleware.RequireAuth(http.HandlerFunc(h.UsageDaily)))
	mux.Handle("/usage/monthly", authMiddleware.RequireAuth(http.HandlerFunc(h.UsageMonthly)))
	mux.Handle("/usage/total", authMiddleware.RequireAuth(http.HandlerFunc(h.UsageTotal)))

	// API routes (API key-based)
	mux.Handle("/api/sync", syncLimiter.Limit(authMiddleware.RequireAPIKey(http.HandlerFunc(h.APISync))))
	mux.Handle("/api/sync/status", syncLimiter.Limit(authMiddleware.RequireAPIKey(http.HandlerFunc(h.APISyncStatus))))

	// Wrap with session and security middleware
	handler := middleware.SecurityHeaders(sessionMgr.LoadAndSave(mux))

	addr := ":" + port
	log.Printf("Starting ccusage-server on %s", addr)
	log.Printf("Database: %s", dbPath)

	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

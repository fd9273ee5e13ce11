package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/martin-buur/ccusage/server/internal/auth"
	"github.com/martin-buur/ccusage/server/internal/database"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db         *database.DB
	sessionMgr *scs.SessionManager
	debouncer  *SummaryDebouncer
}

// New creates a new Handler
func New(db *database.DB, sessionMgr *scs.SessionManager, debouncer *SummaryDebouncer) *Handler {
	return &Handler{
		db:         db,
		sessionMgr: sessionMgr,
		debouncer:  debouncer,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string `json:"username"`
	APIKey   string `json:"api_key,omitempty"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(creds.Username)
	password := creds.Password

	if username == "" || password == "" {
		h.jsonError(w, "Username and password are required", http.StatusBadRequest)
		return
	}
	if len(username) < 3 {
		h.jsonError(w, "Username must be at least 3 characters", http.StatusBadRequest)
		return
	}
	if len(password) < 8 {
		h.jsonError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	existing, _ := h.db.GetUserByUsername(username)
	if existing != nil {
		h.jsonError(w, "Username already taken", http.StatusConflict)
		return
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		h.jsonError(w, "An error occurred", http.StatusInternalServerError)
		return
	}

	userID, err := auth.GenerateID()
	if err != nil {
		h.jsonError(w, "An error occurred", http.StatusInternalServerError)
		return
	}

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.jsonError(w, "An error occurred", http.StatusInternalServerError)
		return
	}

	user := &database.User{
		ID:           userID,
		Username:     username,
		PasswordHash: passwordHash,
		APIKey:       apiKey,
		CreatedAt:    time.Now(),
	}

	if err := h.db.CreateUser(user); err != nil {
		h.jsonError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	h.sessionMgr.Put(r.Context(), "userID", user.ID)

	// The API key is shown once, at registration
	h.writeJSON(w, http.StatusCreated, userResponse{Username: user.Username, APIKey: user.APIKey})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(creds.Username)
	password := creds.Password

	if username == "" || password == "" {
		h.jsonError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByUsername(username)
	if err != nil {
		h.jsonError(w, "An error occurred", http.StatusInternalServerError)
		return
	}

	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		h.jsonError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	h.sessionMgr.Put(r.Context(), "userID", user.ID)

	h.writeJSON(w, http.StatusOK, userResponse{Username: user.Username})
}

// Logout handles user logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionMgr.Destroy(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// UsageDaily returns the caller's daily usage rows
func (h *Handler) UsageDaily(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	usage, err := h.db.GetUsageByDay(user.ID)
	if err != nil {
		h.jsonError(w, "Failed to load usage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"daily": usage})
}

// UsageMonthly returns the caller's monthly usage rows
func (h *Handler) UsageMonthly(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	usage, err := h.db.GetUsageByMonth(user.ID)
	if err != nil {
		h.jsonError(w, "Failed to load usage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"monthly": usage})
}

// UsageTotal returns the caller's all-time totals
func (h *Handler) UsageTotal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	total, err := h.db.GetTotalUsage(user.ID)
	if err != nil {
		h.jsonError(w, "Failed to load usage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"total": total})
}

// SyncRequest represents the incoming sync data
type SyncRequest struct {
	ClientID   string       `json:"client_id"`
	ClientName string       `json:"client_name"`
	Records    []SyncRecord `json:"records"`
}

// SyncRecord represents a single usage record in the sync request
type SyncRecord struct {
	Timestamp           string   `json:"timestamp"`
	Version             string   `json:"version"`
	ProjectPath         string   `json:"project_path"`
	Model               string   `json:"model"`
	InputTokens         int64    `json:"input_tokens"`
	OutputTokens        int64    `json:"output_tokens"`
	CacheCreationTokens int64    `json:"cache_creation_tokens"`
	CacheReadTokens     int64    `json:"cache_read_tokens"`
	CostUSD             *float64 `json:"cost_usd,omitempty"`
}

// SyncResponse represents the sync API response
type SyncResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Inserted int64  `json:"inserted,omitempty"`
}

// APISync handles the sync endpoint
func (h *Handler) APISync(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ClientID == "" {
		h.jsonError(w, "client_id is required", http.StatusBadRequest)
		return
	}

	if len(req.Records) == 0 {
		h.writeJSON(w, http.StatusOK, SyncResponse{
			Success:  true,
			Message:  "No records to sync",
			Inserted: 0,
		})
		return
	}

	clientName := req.ClientName
	if clientName == "" {
		clientName = req.ClientID
	}
	if _, err := h.db.GetOrCreateClient(user.ID, req.ClientID, clientName); err != nil {
		h.jsonError(w, "Failed to create client", http.StatusInternalServerError)
		return
	}

	// Records with bad timestamps or negative counts are dropped, matching
	// how the CLI treats malformed log lines.
	var records []database.UsageRecord
	for _, rec := range req.Records {
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			continue
		}
		if rec.InputTokens < 0 || rec.OutputTokens < 0 ||
			rec.CacheCreationTokens < 0 || rec.CacheReadTokens < 0 {
			continue
		}

		records = append(records, database.UsageRecord{
			UserID:              user.ID,
			ClientID:            req.ClientID,
			Timestamp:           ts,
			Version:             rec.Version,
			ProjectPath:         rec.ProjectPath,
			Model:               rec.Model,
			InputTokens:         rec.InputTokens,
			OutputTokens:        rec.OutputTokens,
			CacheCreationTokens: rec.CacheCreationTokens,
			CacheReadTokens:     rec.CacheReadTokens,
			CostUSD:             rec.CostUSD,
		})
	}

	inserted, err := h.db.InsertUsageRecords(records)
	if err != nil {
		h.jsonError(w, "Failed to insert records", http.StatusInternalServerError)
		return
	}

	// Update last sync time
	h.db.UpdateClientLastSync(req.ClientID, time.Now())

	if h.debouncer != nil {
		h.debouncer.Schedule(user.ID, records)
	}

	h.writeJSON(w, http.StatusOK, SyncResponse{
		Success:  true,
		Message:  "Sync completed",
		Inserted: inserted,
	})
}

// SyncStatusResponse represents the sync status response
type SyncStatusResponse struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// APISyncStatus returns the sync status for a client
func (h *Handler) APISyncStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		h.jsonError(w, "client_id is required", http.StatusBadRequest)
		return
	}

	lastSync, err := h.db.GetClientSyncStatus(user.ID, clientID)
	if err != nil {
		h.jsonError(w, "Failed to get sync status", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, SyncStatusResponse{LastSyncAt: lastSync})
}

// Health handles the health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

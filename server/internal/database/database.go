package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/martin-buur/ccusage/internal/model"
	"github.com/martin-buur/ccusage/internal/pricing"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB

	prices *pricing.Client
}

// User represents a user account
type User struct {
	ID           string
	Username     string
	PasswordHash string
	APIKey       string
	CreatedAt    time.Time
}

// Client represents a sync client
type Client struct {
	ID         string
	UserID     string
	Name       string
	LastSyncAt *time.Time
	CreatedAt  time.Time
}

// UsageRecord represents a usage record received from a sync client
type UsageRecord struct {
	ID                  int64
	UserID              string
	ClientID            string
	Timestamp           time.Time
	Version             string
	ProjectPath         string
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	// CostUSD is the client-reported cost; nil means the server prices the
	// record itself.
	CostUSD *float64
}

// Open opens a SQLite database connection
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors under concurrent load
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// The server prices records from the embedded table only.
	return &DB{DB: db, prices: pricing.New(true)}, nil
}

// Close releases the database connection and pricing resources.
func (db *DB) Close() error {
	db.prices.Close()
	return db.DB.Close()
}

// Migrate creates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		api_key TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		last_sync_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		version TEXT,
		project_path TEXT,
		model TEXT,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cache_creation_tokens INTEGER DEFAULT 0,
		cache_read_tokens INTEGER DEFAULT 0,
		cost REAL DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		UNIQUE(user_id, client_id, timestamp, project_path, model)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_user_timestamp ON usage_records(user_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_clients_user ON clients(user_id);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);

	CREATE TABLE IF NOT EXISTS usage_summary (
		user_id TEXT NOT NULL,
		period_type TEXT NOT NULL,
		period_key TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cache_creation_tokens INTEGER NOT NULL,
		cache_read_tokens INTEGER NOT NULL,
		cost REAL DEFAULT 0,
		PRIMARY KEY (user_id, period_type, period_key),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_summary_user_type ON usage_summary(user_id, period_type);
	`

	_, err := db.Exec(schema)
	return err
}

// CreateUser creates a new user
func (db *DB) CreateUser(user *User) error {
	_, err := db.Exec(
		`INSERT INTO users (id, username, password_hash, api_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.APIKey, user.CreatedAt,
	)
	return err
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(username string) (*User, error) {
	user := &User{}
	err := db.QueryRow(
		`SELECT id, username, password_hash, api_key, created_at
		 FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.APIKey, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(id string) (*User, error) {
	user := &User{}
	err := db.QueryRow(
		`SELECT id, username, password_hash, api_key, created_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.APIKey, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByAPIKey retrieves a user by API key
func (db *DB) GetUserByAPIKey(apiKey string) (*User, error) {
	user := &User{}
	err := db.QueryRow(
		`SELECT id, username, password_hash, api_key, created_at
		 FROM users WHERE api_key = ?`,
		apiKey,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.APIKey, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetOrCreateClient gets an existing client or creates a new one
func (db *DB) GetOrCreateClient(userID, clientID, clientName string) (*Client, error) {
	client := &Client{}
	var lastSyncAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, user_id, name, last_sync_at, created_at FROM clients WHERE id = ? AND user_id = ?`,
		clientID, userID,
	).Scan(&client.ID, &client.UserID, &client.Name, &lastSyncAt, &client.CreatedAt)

	if err == nil {
		if lastSyncAt.Valid {
			client.LastSyncAt = &lastSyncAt.Time
		}
		return client, nil
	}

	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now()
	_, err = db.Exec(
		`INSERT INTO clients (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		clientID, userID, clientName, now,
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:        clientID,
		UserID:    userID,
		Name:      clientName,
		CreatedAt: now,
	}, nil
}

// UpdateClientLastSync updates the last sync time for a client
func (db *DB) UpdateClientLastSync(clientID string, lastSyncAt time.Time) error {
	_, err := db.Exec(`UPDATE clients SET last_sync_at = ? WHERE id = ?`, lastSyncAt, clientID)
	return err
}

// recordCost resolves a record's cost on ingest: the client-reported cost
// wins, otherwise the server prices the tokens itself. Records with no model
// or an unknown model are stored at zero cost rather than rejected.
func (db *DB) recordCost(r UsageRecord) float64 {
	if r.CostUSD != nil {
		return *r.CostUSD
	}
	if r.Model == "" {
		return 0
	}
	cost, err := db.prices.CostFromTokens(model.TokenUsage{
		InputTokens:         r.InputTokens,
		OutputTokens:        r.OutputTokens,
		CacheCreationTokens: r.CacheCreationTokens,
		CacheReadTokens:     r.CacheReadTokens,
	}, r.Model)
	if err != nil {
		return 0
	}
	return cost
}

// InsertUsageRecords inserts multiple usage records, ignoring duplicates
func (db *DB) InsertUsageRecords(records []UsageRecord) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO usage_records
		(user_id, client_id, timestamp, version, project_path, model,
		 input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range records {
		result, err := stmt.Exec(
			r.UserID, r.ClientID, r.Timestamp, r.Version, r.ProjectPath, r.Model,
			r.InputTokens, r.OutputTokens, r.CacheCreationTokens, r.CacheReadTokens,
			db.recordCost(r),
		)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	return inserted, tx.Commit()
}

// AggregatedUsage represents aggregated usage data
type AggregatedUsage struct {
	Period              string  `json:"period"`
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// GetUsageByDay returns daily usage for a user. Completed days come from the
// summary table; today is summed from raw records so the view stays current
// between summary updates.
func (db *DB) GetUsageByDay(userID string) ([]AggregatedUsage, error) {
	today := time.Now().Format("2006-01-02")

	var results []AggregatedUsage

	rows, err := db.Query(`
		SELECT period_key, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost
		FROM usage_summary
		WHERE user_id = ? AND period_type = 'day' AND period_key != ?
		ORDER BY period_key DESC
		LIMIT 30
	`, userID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u AggregatedUsage
		if err := rows.Scan(&u.Period, &u.InputTokens, &u.OutputTokens, &u.CacheCreationTokens, &u.CacheReadTokens, &u.Cost); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var todayUsage AggregatedUsage
	todayUsage.Period = today
	err = db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE user_id = ? AND DATE(timestamp) = ?
	`, userID, today).Scan(&todayUsage.InputTokens, &todayUsage.OutputTokens, &todayUsage.CacheCreationTokens, &todayUsage.CacheReadTokens, &todayUsage.Cost)
	if err != nil {
		return nil, err
	}

	if todayUsage.InputTokens > 0 || todayUsage.OutputTokens > 0 {
		results = append([]AggregatedUsage{todayUsage}, results...)
	}

	return results, nil
}

// GetUsageByMonth returns monthly usage for a user
func (db *DB) GetUsageByMonth(userID string) ([]AggregatedUsage, error) {
	currentMonth := time.Now().Format("2006-01")

	var results []AggregatedUsage

	rows, err := db.Query(`
		SELECT period_key, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost
		FROM usage_summary
		WHERE user_id = ? AND period_type = 'month' AND period_key != ?
		ORDER BY period_key DESC
		LIMIT 12
	`, userID, currentMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u AggregatedUsage
		if err := rows.Scan(&u.Period, &u.InputTokens, &u.OutputTokens, &u.CacheCreationTokens, &u.CacheReadTokens, &u.Cost); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var currentUsage AggregatedUsage
	currentUsage.Period = currentMonth
	err = db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE user_id = ? AND strftime('%Y-%m', timestamp) = ?
	`, userID, currentMonth).Scan(&currentUsage.InputTokens, &currentUsage.OutputTokens, &currentUsage.CacheCreationTokens, &currentUsage.CacheReadTokens, &currentUsage.Cost)
	if err != nil {
		return nil, err
	}

	if currentUsage.InputTokens > 0 || currentUsage.OutputTokens > 0 {
		results = append([]AggregatedUsage{currentUsage}, results...)
	}

	return results, nil
}

// GetTotalUsage returns total usage for a user
func (db *DB) GetTotalUsage(userID string) (*AggregatedUsage, error) {
	today := time.Now().Format("2006-01-02")

	var u AggregatedUsage
	u.Period = "Total"

	err := db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_summary
		WHERE user_id = ? AND period_type = 'day' AND period_key != ?
	`, userID, today).Scan(&u.InputTokens, &u.OutputTokens, &u.CacheCreationTokens, &u.CacheReadTokens, &u.Cost)
	if err != nil {
		return nil, err
	}

	var todayInput, todayOutput, todayCacheCreation, todayCacheRead int64
	var todayCost float64
	err = db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE user_id = ? AND DATE(timestamp) = ?
	`, userID, today).Scan(&todayInput, &todayOutput, &todayCacheCreation, &todayCacheRead, &todayCost)
	if err != nil {
		return nil, err
	}

	u.InputTokens += todayInput
	u.OutputTokens += todayOutput
	u.CacheCreationTokens += todayCacheCreation
	u.CacheReadTokens += todayCacheRead
	u.Cost += todayCost

	return &u, nil
}

// GetClientSyncStatus returns the last sync time for a client
func (db *DB) GetClientSyncStatus(userID, clientID string) (*time.Time, error) {
	var lastSyncAt sql.NullTime
	err := db.QueryRow(
		`SELECT last_sync_at FROM clients WHERE id = ? AND user_id = ?`,
		clientID, userID,
	).Scan(&lastSyncAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !lastSyncAt.Valid {
		return nil, nil
	}
	return &lastSyncAt.Time, nil
}

// UpdateSummaries updates only the day and month summaries affected by the
// given records. Much more efficient than rebuilding all summaries.
func (db *DB) UpdateSummaries(userID string, records []UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	affectedDays := make(map[string]bool)
	affectedMonths := make(map[string]bool)
	for _, r := range records {
		affectedDays[r.Timestamp.Format("2006-01-02")] = true
		affectedMonths[r.Timestamp.Format("2006-01")] = true
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO usage_summary
		(user_id, period_type, period_key, period_start, period_end, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, period_type, period_key) DO UPDATE SET
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_creation_tokens = excluded.cache_creation_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			cost = excluded.cost
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for dayKey := range affectedDays {
		dayStart, _ := time.ParseInLocation("2006-01-02", dayKey, time.Local)
		dayEnd := dayStart.Add(24*time.Hour - time.Second)

		var input, output, cacheCreation, cacheRead int64
		var cost float64
		err := tx.QueryRow(`
			SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
			       COALESCE(SUM(cost), 0)
			FROM usage_records
			WHERE user_id = ? AND DATE(timestamp) = ?
		`, userID, dayKey).Scan(&input, &output, &cacheCreation, &cacheRead, &cost)
		if err != nil {
			return err
		}

		if _, err := stmt.Exec(userID, "day", dayKey, dayStart, dayEnd, input, output, cacheCreation, cacheRead, cost); err != nil {
			return err
		}
	}

	for monthKey := range affectedMonths {
		t, _ := time.ParseInLocation("2006-01", monthKey, time.Local)
		monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
		monthEnd := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.Local).Add(-time.Second)

		var input, output, cacheCreation, cacheRead int64
		var cost float64
		err := tx.QueryRow(`
			SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			       COALESCE(SUM(cache_creation_tokens), 0), COALESCE(SUM(cache_read_tokens), 0),
			       COALESCE(SUM(cost), 0)
			FROM usage_records
			WHERE user_id = ? AND strftime('%Y-%m', timestamp) = ?
		`, userID, monthKey).Scan(&input, &output, &cacheCreation, &cacheRead, &cost)
		if err != nil {
			return err
		}

		if _, err := stmt.Exec(userID, "month", monthKey, monthStart, monthEnd, input, output, cacheCreation, cacheRead, cost); err != nil {
			return err
		}
	}

	return tx.Commit()
}

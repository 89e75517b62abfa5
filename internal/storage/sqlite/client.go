package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/storage/models"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// Client is the operational side store: query history and ingestion run
// records. The retrievable content itself lives in the vector index.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		source_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_session ON query_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		seed_urls TEXT NOT NULL,
		crawl_depth INTEGER NOT NULL,
		documents_ingested INTEGER,
		chunks_created INTEGER,
		status TEXT NOT NULL,
		error_message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON ingestion_runs(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	_, err := c.db.Exec(
		`INSERT INTO query_history (id, session_id, query_text, response, source_count, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.QueryText,
		record.Response,
		record.SourceCount,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	return nil
}

// GetQueryHistory returns the most recent records for a session, newest
// first.
func (c *Client) GetQueryHistory(sessionID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.Query(
		`SELECT id, session_id, query_text, response, source_count, latency_ms, created_at
		 FROM query_history
		 WHERE session_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var rec models.QueryRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.QueryText, &rec.Response, &rec.SourceCount, &rec.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (c *Client) InsertIngestionRun(run *models.IngestionRun) error {
	_, err := c.db.Exec(
		`INSERT INTO ingestion_runs (id, seed_urls, crawl_depth, documents_ingested, chunks_created, status, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SeedURLs,
		run.CrawlDepth,
		run.DocumentsIngested,
		run.ChunksCreated,
		run.Status,
		run.ErrorMessage,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion run: %w", err)
	}

	return nil
}

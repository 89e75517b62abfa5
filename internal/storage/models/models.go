package models

import "time"

// QueryRecord is one answered chat query, kept for the history endpoint and
// offline analysis. The session id is an opaque client correlation token;
// nothing reads it back into the pipeline.
type QueryRecord struct {
	ID          string
	SessionID   string
	QueryText   string
	Response    string
	SourceCount int
	LatencyMS   int
	CreatedAt   time.Time
}

// IngestionRun is one crawl-and-index run triggered from the admin surface.
type IngestionRun struct {
	ID                string
	SeedURLs          string
	CrawlDepth        int
	DocumentsIngested int
	ChunksCreated     int
	Status            string
	ErrorMessage      string
	CreatedAt         time.Time
}

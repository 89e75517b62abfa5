package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_retrieval_results",
			Help:    "Number of documents retrieved per query after threshold filtering",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_documents_ingested_total",
			Help: "Total pages turned into documents by ingestion runs",
		},
	)

	ChunksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_chunks_created_total",
			Help: "Total chunks created and upserted by ingestion runs",
		},
	)

	IngestionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_ingestion_runs_total",
			Help: "Total ingestion runs",
		},
		[]string{"status"},
	)

	TelegramUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_telegram_updates_total",
			Help: "Total Telegram updates processed",
		},
		[]string{"kind"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksCreated)
	prometheus.MustRegister(IngestionRuns)
	prometheus.MustRegister(TelegramUpdates)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

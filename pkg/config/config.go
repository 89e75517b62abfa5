package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is built once in main and passed into component constructors.
// Nothing in the codebase reaches for viper after Load returns.
type Config struct {
	Server   ServerConfig
	Milvus   MilvusConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	LLM      LLMConfig
	RAG      RAGConfig
	Crawler  CrawlerConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	EmbeddingModel string
}

type RAGConfig struct {
	TopK                int
	SimilarityThreshold float32
	ChunkSize           int
	ChunkOverlap        int
}

type CrawlerConfig struct {
	BaseDomain      string
	UserAgent       string
	FetchTimeoutSec int
	MaxDepth        int
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/primesandzooms")

	viper.SetEnvPrefix("CHATBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "primesandzooms_docs")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/chatbot.db")

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 500)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("rag.topK", 5)
	viper.SetDefault("rag.similarityThreshold", 0.7)
	viper.SetDefault("rag.chunkSize", 500)
	viper.SetDefault("rag.chunkOverlap", 50)

	viper.SetDefault("crawler.baseDomain", "primesandzooms.com")
	viper.SetDefault("crawler.userAgent", "Mozilla/5.0 (compatible; PrimesAndZoomsBot/1.0)")
	viper.SetDefault("crawler.fetchTimeoutSec", 10)
	viper.SetDefault("crawler.maxDepth", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

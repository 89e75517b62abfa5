package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	MaxMessageLength = 2000
	MinCrawlDepth    = 1
	MaxCrawlDepth    = 3
)

type Config struct {
	Logger *zap.Logger
}

// Middleware rejects malformed chat and ingest requests before any pipeline
// step runs. Handlers re-parse the body; this layer only decides yes or no.
func Middleware(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.HasSuffix(path, "/chat") {
			var req struct {
				Message string `json:"message"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			message := strings.TrimSpace(req.Message)
			if message == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Message is required",
				})
			}
			if len(req.Message) > MaxMessageLength {
				if cfg.Logger != nil {
					cfg.Logger.Warn("Oversized chat message rejected",
						zap.String("ip", c.IP()),
						zap.Int("length", len(req.Message)),
					)
				}
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Message exceeds maximum length",
				})
			}
		}

		if strings.HasSuffix(path, "/ingest") {
			var req struct {
				URLs       []string `json:"urls"`
				CrawlDepth *int     `json:"crawl_depth"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if len(req.URLs) == 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "At least one URL is required",
				})
			}
			if req.CrawlDepth != nil && (*req.CrawlDepth < MinCrawlDepth || *req.CrawlDepth > MaxCrawlDepth) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "crawl_depth must be between 1 and 3",
				})
			}
		}

		return c.Next()
	}
}

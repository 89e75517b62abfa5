package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/telegram"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// TelegramBot is the slice of the bot the webhook surface needs.
type TelegramBot interface {
	ProcessUpdate(ctx context.Context, update telegram.Update)
	SetWebhook(ctx context.Context, webhookURL, secretToken string) error
}

type TelegramHandler struct {
	bot           TelegramBot
	webhookSecret string
}

func NewTelegramHandler(bot TelegramBot, webhookSecret string) *TelegramHandler {
	return &TelegramHandler{bot: bot, webhookSecret: webhookSecret}
}

// HandleWebhook receives Telegram updates. It always answers 200; a non-2xx
// would make Telegram redeliver the same update indefinitely. Processing
// happens off the request path so the webhook responds fast.
func (h *TelegramHandler) HandleWebhook(c *fiber.Ctx) error {
	if h.webhookSecret != "" && c.Get("X-Telegram-Bot-Api-Secret-Token") != h.webhookSecret {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Invalid webhook secret",
		})
	}

	var update telegram.Update
	if err := c.BodyParser(&update); err != nil {
		logger.Warn("Malformed Telegram update", zap.Error(err))
		return c.JSON(fiber.Map{"ok": true})
	}

	go h.bot.ProcessUpdate(context.Background(), update)

	return c.JSON(fiber.Map{"ok": true})
}

// HandleWebhookSetup registers this service's webhook URL with Telegram.
// Called once after deployment.
func (h *TelegramHandler) HandleWebhookSetup(c *fiber.Ctx) error {
	var req struct {
		WebhookURL string `json:"webhook_url"`
	}

	if err := c.BodyParser(&req); err != nil || req.WebhookURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "webhook_url is required",
		})
	}

	if err := h.bot.SetWebhook(c.Context(), req.WebhookURL, h.webhookSecret); err != nil {
		logger.Error("Failed to set Telegram webhook", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set webhook",
		})
	}

	return c.JSON(fiber.Map{
		"status":      "webhook_set",
		"webhook_url": req.WebhookURL,
	})
}

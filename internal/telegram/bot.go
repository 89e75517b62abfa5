// Package telegram is a thin front-end over the Bot API. Free-text messages
// go through the same RAG engine as HTTP chat; commands are answered from
// fixed templates. The Bot API is called directly over HTTP without an SDK:
// the surface needed here is four methods.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/primesandzooms/chatbot-backend/internal/metrics"
	"github.com/primesandzooms/chatbot-backend/internal/rag"
	"github.com/primesandzooms/chatbot-backend/pkg/circuitbreaker"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
	"github.com/primesandzooms/chatbot-backend/pkg/retry"
)

// QueryEngine is the slice of the RAG engine the bot needs.
type QueryEngine interface {
	Query(ctx context.Context, message, sessionID string) (*rag.QueryResult, error)
}

// Update is the subset of a Telegram update the bot reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
	From      User   `json:"from"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	FirstName string `json:"first_name"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Bot wraps the Telegram Bot API with retry and a circuit breaker. Unlike the
// core pipeline, sends here are retried: a dropped Telegram reply is user-
// visible and the API is safe to re-call.
type Bot struct {
	baseURL     string
	engine      QueryEngine
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewBot(token string, engine QueryEngine) *Bot {
	return &Bot{
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", token),
		engine:  engine,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New("telegram", circuitbreaker.Config{
			MaxRequests:      5,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Logger:           logger.GetLogger(),
		}),
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

// ProcessUpdate handles one webhook update end to end: typing indicator,
// command or RAG answer, reply. Errors are logged, never returned to
// Telegram, since a non-200 would make it retry the same update forever.
func (b *Bot) ProcessUpdate(ctx context.Context, update Update) {
	if update.Message == nil || update.Message.Text == "" || update.Message.Chat.ID == 0 {
		return
	}

	chatID := update.Message.Chat.ID
	text := update.Message.Text
	userName := update.Message.From.FirstName
	if userName == "" {
		userName = "there"
	}

	b.sendTypingAction(ctx, chatID)

	var reply string
	if strings.HasPrefix(text, "/") {
		reply = b.handleCommand(text, userName)
	}

	// Each update counts under exactly one kind: a recognized command, or a
	// message answered through the engine (unknown commands included).
	if reply != "" {
		metrics.TelegramUpdates.WithLabelValues("command").Inc()
	} else {
		reply = b.answerWithRAG(ctx, chatID, strings.TrimPrefix(text, "/"))
		metrics.TelegramUpdates.WithLabelValues("message").Inc()
	}

	if err := b.SendMessage(ctx, chatID, reply); err != nil {
		logger.Error("Failed to send Telegram reply",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func (b *Bot) answerWithRAG(ctx context.Context, chatID int64, text string) string {
	// Chat id doubles as the opaque session identifier for history.
	result, err := b.engine.Query(ctx, text, fmt.Sprintf("telegram:%d", chatID))
	if err != nil {
		logger.Error("RAG query failed for Telegram message", zap.Error(err))
		return "I apologize, but I'm having trouble accessing our information right now. " +
			"Please try again in a moment, or visit primesandzooms.com for immediate assistance."
	}

	answer := result.Response
	if len(result.Sources) == 0 {
		answer += "\n\nFor specific questions about availability and pricing, please visit " +
			"primesandzooms.com or contact us directly."
	}

	return answer
}

func (b *Bot) handleCommand(command, userName string) string {
	command = strings.ToLower(strings.TrimSpace(command))
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		return welcomeMessage(userName)
	case "/help":
		return helpMessage
	case "/equipment":
		return equipmentMessage
	case "/contact":
		return contactMessage
	default:
		// Unrecognized commands fall through to the RAG engine.
		return ""
	}
}

// SendMessage posts a text reply to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

func (b *Bot) sendTypingAction(ctx context.Context, chatID int64) {
	// Best effort; the reply matters, the indicator does not.
	if err := b.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	}); err != nil {
		logger.Debug("Failed to send typing action", zap.Error(err))
	}
}

// SetWebhook points Telegram at our webhook URL.
func (b *Bot) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	payload := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message"},
	}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}

	if err := b.call(ctx, "setWebhook", payload); err != nil {
		return err
	}

	logger.Info("Telegram webhook set", zap.String("url", webhookURL))
	return nil
}

// DeleteWebhook switches the bot back to polling mode.
func (b *Bot) DeleteWebhook(ctx context.Context) error {
	return b.call(ctx, "deleteWebhook", nil)
}

func (b *Bot) call(ctx context.Context, method string, payload map[string]any) error {
	return b.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, b.retryConfig, func() error {
			return b.post(ctx, method, payload)
		})
	})
}

func (b *Bot) post(ctx context.Context, method string, payload map[string]any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+method, &body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("telegram %s rejected: %s", method, result.Description)
	}

	return nil
}

func welcomeMessage(userName string) string {
	return fmt.Sprintf(`Welcome to Primes and Zooms, %s!

I'm your rental assistant for premium camera and video equipment in Pune.

How can I help you today?
- Ask about our equipment (cameras, lenses, lighting)
- Learn about rental pricing and packages
- Understand our booking process
- Get shop location and contact info

Just type your question and I'll find the answer!

Type /help to see all commands`, userName)
}

const helpMessage = `Available commands:

/start - Welcome message
/help - Show this help
/equipment - Browse equipment categories
/contact - Get our contact information

Or just ask me anything! For example:
- "What cameras do you have?"
- "How much does it cost to rent a Sony A7S III?"
- "What's your cancellation policy?"
- "Do you require a security deposit?"

I'll search our knowledge base and give you accurate answers!`

const equipmentMessage = `Equipment categories at Primes and Zooms:

Cameras
- Cinema cameras (RED, ARRI, Blackmagic)
- Mirrorless (Sony, Canon, Nikon)
- DSLRs

Lenses
- Prime lenses (Zeiss, Sigma Art)
- Zoom lenses (24-70mm, 70-200mm)
- Cinema lenses
- Specialty (Macro, Tilt-shift)

Lighting
- LED panels, softboxes, RGB lights, stands and modifiers

Audio
- Wireless microphones, boom mics, audio recorders

Grip and support
- Tripods, gimbals, sliders, rigs and cages

Ask me about any specific equipment for details and pricing!`

const contactMessage = `Contact Primes and Zooms:

Visit us: Pune, Maharashtra, India
Website: https://www.primesandzooms.com

Rental process:
1. Browse equipment online
2. Check availability
3. Book your rental
4. Pick up or get delivery

Visit our website for the most up-to-date information!`

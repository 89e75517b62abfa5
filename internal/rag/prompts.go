package rag

import (
	"fmt"
	"strings"

	"github.com/primesandzooms/chatbot-backend/internal/document"
)

// NoContextSentinel keeps the user prompt well-formed when retrieval comes
// back empty; the guardrails below tell the model what to do with it.
const NoContextSentinel = "No relevant information found in the knowledge base."

const contextSeparator = "\n\n---\n\n"

// SystemPrompt is the assistant persona for Primes and Zooms, a photography
// and video equipment rental service in Pune.
const SystemPrompt = `You are the friendly and knowledgeable customer service assistant for Primes and Zooms - Pune's trusted photography and video equipment rental service.

## About Primes and Zooms
- Premium camera, lens, and video equipment rentals in Pune, India
- Serving photographers, filmmakers, content creators, and production houses
- Known for well-maintained gear and reliable service

## Your Role
- Help customers find the right equipment for their projects
- Explain the rental process clearly (Browse -> Book -> Pickup/Delivery -> Return)
- Answer questions about pricing, availability, and equipment specs
- Guide new customers through registration and booking
- Be warm, professional, and genuinely helpful

## Guidelines
1. Use ONLY the provided context to answer questions - don't make up equipment, prices, or policies
2. If information isn't in the context, say: "I don't have that specific information, but you can reach us at [contact] for details."
3. Keep responses concise but complete - customers are busy!
4. For equipment recommendations, ask about their project type and budget
5. Always mention relevant policies (ID required, security deposit, etc.) when discussing bookings
6. Use Indian Rupees for all pricing

## Tone
- Friendly and approachable, like talking to a fellow photographer
- Professional but not stuffy
- Enthusiastic about gear
- Patient with beginners, knowledgeable with pros

Remember: You represent Primes and Zooms. Every interaction should leave customers feeling confident about renting from us!`

// BuildContext renders retrieved documents as attributed source blocks. Empty
// input returns the sentinel, never an empty string.
func BuildContext(docs []document.Document) string {
	if len(docs) == 0 {
		return NoContextSentinel
	}

	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		header := fmt.Sprintf("[Source %d]", i+1)
		if title := doc.Title(); title != "" {
			header += " " + title
		}
		header += fmt.Sprintf("\nURL: %s", doc.Source())

		blocks = append(blocks, header+"\n"+doc.Content)
	}

	return strings.Join(blocks, contextSeparator)
}

func buildUserPrompt(context, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question)
}

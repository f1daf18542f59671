package llm

import (
	"errors"

	"diagnosis-assistant-service/models"
)

// ErrGeneration is returned when a remote generation or chat call fails.
// Callers catch it at the call boundary and surface a user-visible message;
// it never crashes a session.
var ErrGeneration = errors.New("llm generation failed")

// Client abstracts the hosted language model used for note drafting and
// follow-up chat. Implementations must be concurrency-safe if used across
// goroutines.
type Client interface {
	// GenerateNote performs a one-shot completion over the composed prompt
	// and returns the drafted clinical note text.
	GenerateNote(prompt string) (string, error)
	// Chat sends the ordered session history plus one new user message and
	// returns the assistant's reply text.
	Chat(history []models.ChatMessage, userMessage string) (string, error)
	// SourceName returns a short provider label to persist with records
	// (e.g., "Gemini").
	SourceName() string
}

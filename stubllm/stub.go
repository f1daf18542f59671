package stubllm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"diagnosis-assistant-service/models"
)

// Client is a deterministic, no-network LLM stub intended for CI and local
// end-to-end tests. Set Err to force the generation-failure path.
type Client struct {
	Err error
}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

// GenerateNote returns a stable pseudo-note derived from the prompt so the
// downstream persistence and rendering paths are exercised repeatably.
func (c *Client) GenerateNote(prompt string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	sum := sha256.Sum256([]byte(prompt))
	short := hex.EncodeToString(sum[:8])
	return fmt.Sprintf("Stub clinical note (%s): findings consistent with the provided intake data and imaging diagnosis.", short), nil
}

// Chat echoes a stable reply derived from the history length and message.
func (c *Client) Chat(history []models.ChatMessage, userMessage string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	sum := sha256.Sum256([]byte(userMessage))
	short := hex.EncodeToString(sum[:4])
	return fmt.Sprintf("Stub reply %s (turn %d): %s", short, len(history)/2+1, truncate(userMessage, 80)), nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"diagnosis-assistant-service/llm"
	"diagnosis-assistant-service/models"
)

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type geminiRequest struct {
	Contents []content `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls the Gemini generateContent API over plain HTTP.
type Client struct {
	apiKey    string
	model     string
	endpoints []string
	http      *http.Client
}

// NewClient creates a Gemini client with a bounded per-call timeout.
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		// try v1beta first, then v1
		endpoints: []string{
			fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", model, apiKey),
			fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", model, apiKey),
		},
		http: &http.Client{Timeout: timeout},
	}
}

// SourceName identifies this provider in saved records.
func (c *Client) SourceName() string {
	return "Gemini"
}

// GenerateNote performs a one-shot completion over the composed prompt.
func (c *Client) GenerateNote(prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}
	return c.generateContent(reqBody)
}

// Chat maps the ordered session log plus the new user message onto Gemini
// contents. Gemini names the assistant role "model".
func (c *Client) Chat(history []models.ChatMessage, userMessage string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: userMessage}}})

	return c.generateContent(geminiRequest{Contents: contents})
}

func (c *Client) generateContent(body geminiRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", llm.ErrGeneration, err)
	}

	var lastErr error
	for _, ep := range c.endpoints {
		req, err := http.NewRequest("POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", fmt.Errorf("%w: %v", llm.ErrGeneration, lastErr)
}

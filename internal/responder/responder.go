// Package responder generates caller-facing replies from retrieved knowledge
// via a chat-completions API.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/config"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 150
	defaultTimeout   = 30 * time.Second
)

// Client talks to a chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *zap.Logger
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// NewClient builds a responder client. The API key is read from the
// environment variable named in opts (OPENAI_API_KEY by default).
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "OPENAI_API_KEY"
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("responder API key not set: %s", opts.APIKeyEnv)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     apiKey,
		model:      opts.Model,
		maxTokens:  opts.MaxTokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     opts.Logger,
	}, nil
}

// Respond produces a reply to the caller's transcript using the organization
// profile and retrieved context chunks. Any failure returns the profile's
// fallback text; the call flow never stalls on the language model.
func (c *Client) Respond(ctx context.Context, profile *config.OrgProfile, transcript string, contextChunks []string) string {
	reply, err := c.complete(ctx, buildSystemPrompt(profile, contextChunks), transcript)
	if err != nil {
		c.logger.Warn("response generation failed, using fallback",
			zap.String("org", profile.OrgName), zap.Error(err))
		return profile.FallbackReply
	}
	if reply == "" {
		return profile.FallbackReply
	}
	return reply
}

// buildSystemPrompt renders the assistant instructions for one turn. Context
// chunks are numbered so the model can ground its answer; with no chunks the
// model is told to admit it does not know.
func buildSystemPrompt(profile *config.OrgProfile, contextChunks []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s for %s.", profile.AssistantRole, profile.OrgName)
	fmt.Fprintf(&b, " Respond in %s with a %s tone.", profile.Language, profile.Tone)
	b.WriteString(" Keep answers short and suitable for being read aloud over the phone.")
	if len(contextChunks) == 0 {
		b.WriteString(" No relevant knowledge was found; say you do not have that information and offer to take a message.")
		return b.String()
	}
	b.WriteString(" Answer using only the following knowledge:\n")
	for i, chunk := range contextChunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, chunk)
	}
	return b.String()
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat API status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

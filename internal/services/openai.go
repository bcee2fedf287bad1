// OpenAI chat completions implementation of [Extractor]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"setlistbot/internal/shared"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	defaultModel  = "gpt-4o-mini"

	// Max payload bytes echoed into warning logs.
	logSnippetLen = 200
)

const extractionPrompt = `Context: you are an assistant that extracts information from text.
You help build Spotify playlists from concert setlists. The user sends a
message naming an artist and, optionally, a city and a year.

Task: interpret the text below and extract the JSON fields: artist, city, year (YYYY).
If city or year are not present, return null for them. Do not invent values.
If the artist name is not exact, consider whether it is a nickname, a common
abbreviation, a typo or a phone autocorrect slip. Correct it only when the
chance of an error is high.

Response format: return only a raw JSON object with keys artist, city, year (YYYY),
with no other text and no markdown.

Text: %q`

// OpenAIClient implements [Extractor] using the chat completions API with
// temperature zero for deterministic single-completion behavior.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewOpenAIClient creates a new extraction client. The model defaults to
// gpt-4o-mini and the HTTP client to [http.DefaultClient].
func NewOpenAIClient(apiKey, model string, client *http.Client, logger *log.Logger) *OpenAIClient {
	if model == "" {
		model = defaultModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openAIBaseURL,
		httpClient: client,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractionFields mirrors the JSON contract the prompt demands from the model.
type extractionFields struct {
	Artist *string `json:"artist"`
	City   *string `json:"city"`
	Year   *string `json:"year"`
}

// Extract issues one temperature-zero completion and parses the JSON reply.
//
// Every failure mode short of a programming defect degrades to a zero
// [Extraction]: the caller sees "artist not understood" rather than a crash.
// No retry is made for transient model errors.
func (o *OpenAIClient) Extract(ctx context.Context, text string) Extraction {
	content, err := o.complete(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		o.logger.Warn("extraction request failed", "error", err)
		return Extraction{}
	}

	content = stripCodeFence(strings.TrimSpace(content))

	var fields extractionFields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		o.logger.Warn("could not decode extraction JSON", "content", shared.Truncate(content, logSnippetLen))
		return Extraction{}
	}

	return Extraction{
		Artist: deref(fields.Artist),
		City:   deref(fields.City),
		Year:   deref(fields.Year),
	}
}

// complete performs a single chat completion request and returns the first
// choice's message content.
func (o *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatCompletionRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: openai status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", shared.ErrAPIRequest)
	}

	return completion.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown fence when both the first and
// last lines are fence markers. Models occasionally wrap JSON this way despite
// the prompt forbidding markdown.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}

	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

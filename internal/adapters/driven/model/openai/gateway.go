// Package openai provides a model gateway adapter using OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.ModelGateway = (*Gateway)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultChatModel   = "gpt-4o-mini"
	DefaultEmbedModel  = "text-embedding-3-small"
	DefaultDimensions  = 1536
	DefaultTimeout     = 120 * time.Second
	DefaultRequestRate = 3 // requests per second
)

// maxTagCount caps how many tags one item receives.
const maxTagCount = 7

// defaultTagConfidence is assigned when the model returns bare labels.
const defaultTagConfidence = 0.9

// Config holds configuration for the OpenAI gateway.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// ChatModel is used for OCR, tagging and query parsing
	// (default: gpt-4o-mini).
	ChatModel string

	// EmbedModel is the embedding model (default: text-embedding-3-small).
	EmbedModel string

	// Dimensions is the embedding vector size (default: 1536).
	Dimensions int

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestRate throttles outgoing requests per second (default: 3).
	RequestRate float64
}

// Gateway provides text extraction, tagging, embedding and query parsing
// through the OpenAI API. All calls share one client-side rate limiter.
type Gateway struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	dimensions int
	limiter    *rate.Limiter
}

// NewGateway creates a new OpenAI model gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestRate == 0 {
		cfg.RequestRate = DefaultRequestRate
	}

	return &Gateway{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestRate), 1),
	}, nil
}

// Dimensions returns the embedding vector size.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// Close releases resources.
func (g *Gateway) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// textExtensions are file formats read directly from disk.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".json": true,
	".csv": true, ".log": true, ".xml": true, ".yaml": true, ".yml": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".html": true,
}

// imageExtensions are file formats sent through vision OCR.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true,
}

// ExtractText extracts text from an item's source. Photos and image
// files go through vision OCR; text formats are read from disk. Formats
// with no extractor yield an empty string, which is a valid result.
func (g *Gateway) ExtractText(ctx context.Context, kind domain.SourceKind, ref string) (string, error) {
	if kind == domain.SourceKindPhoto {
		return g.ocrImage(ctx, ref)
	}

	ext := strings.ToLower(filepath.Ext(ref))
	switch {
	case textExtensions[ext]:
		data, err := os.ReadFile(ref)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case imageExtensions[ext]:
		return g.ocrImage(ctx, ref)
	default:
		logger.Debug("no text extractor for %s, skipping extraction", ext)
		return "", nil
	}
}

const ocrPrompt = `Extract all readable text from this image. ` +
	`Return only the extracted text. If the image contains no text, return an empty response.`

// ocrImage sends an image through the vision chat endpoint.
func (g *Gateway) ocrImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	mime := "image/jpeg"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".png" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	req := chatRequest{
		Model: g.chatModel,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: ocrPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens: 2000,
	}

	text, err := g.chatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}

const tagPrompt = `Generate 3 to 7 short tags describing this content. ` +
	`Tags are single lowercase words or short phrases. ` +
	`Return ONLY a comma-separated list, nothing else.

Content:
%s`

// tagInputLimit bounds how much text is sent for tagging.
const tagInputLimit = 4000

// GenerateTags produces short lowercase tags from extracted text.
func (g *Gateway) GenerateTags(ctx context.Context, text string) ([]domain.Tag, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) > tagInputLimit {
		text = string(runes[:tagInputLimit])
	}

	req := chatRequest{
		Model: g.chatModel,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(tagPrompt, text)},
		},
		MaxTokens:   100,
		Temperature: 0.3,
	}

	raw, err := g.chatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate tags: %w", err)
	}

	var tags []domain.Tag
	for _, part := range strings.Split(raw, ",") {
		label := strings.ToLower(strings.TrimSpace(part))
		label = strings.Trim(label, `"'.`)
		if label == "" {
			continue
		}
		tags = append(tags, domain.Tag{
			ID:         uuid.NewString(),
			Label:      label,
			Confidence: defaultTagConfidence,
		})
		if len(tags) >= maxTagCount {
			break
		}
	}
	return tags, nil
}

// embeddingRequest is the OpenAI /embeddings request format.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the OpenAI /embeddings response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// EmbedText generates one embedding vector for the given text.
func (g *Gateway) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{Model: g.embedModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := g.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return embResp.Data[0].Embedding, nil
}

const parseQueryPrompt = `Interpret this search query over a personal photo and file library.
Extract the semantic search text and any structured filters.

Respond with ONLY a JSON object:
{"query": "<search text>", "kind": "photo"|"file"|"", "date_op": "on"|"after"|"before"|"range"|"none", "from": "YYYY-MM-DD"|"", "to": "YYYY-MM-DD"|"", "level": 0|1|2|3}

The level is how loosely to match: 0 for exact phrases, 1 for normal queries,
2 for vague descriptions, 3 for very broad associations.

Query: %s`

// parsedQuery is the model's structured interpretation of a query.
// Level is a pointer so an absent field is distinguishable from 0.
type parsedQuery struct {
	Query  string `json:"query"`
	Kind   string `json:"kind"`
	DateOp string `json:"date_op"`
	From   string `json:"from"`
	To     string `json:"to"`
	Level  *int   `json:"level"`
}

// ParseQuery interprets a natural-language query into structured search
// filters. Model failure or unparseable output falls back to the literal
// query with no structured filters.
func (g *Gateway) ParseQuery(ctx context.Context, query string) (domain.SearchFilters, error) {
	fallback := domain.SearchFilters{Query: query, Level: 1}

	req := chatRequest{
		Model: g.chatModel,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(parseQueryPrompt, query)},
		},
		MaxTokens:   200,
		Temperature: 0,
	}

	raw, err := g.chatCompletion(ctx, req)
	if err != nil {
		return fallback, fmt.Errorf("parse query: %w", err)
	}

	// Models sometimes wrap JSON in a code fence.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed parsedQuery
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		logger.Debug("query parse returned non-JSON, using literal query")
		return fallback, nil
	}

	filters := domain.SearchFilters{
		Query: strings.TrimSpace(parsed.Query),
		Level: 1,
	}
	if filters.Query == "" {
		filters.Query = query
	}
	if parsed.Level != nil {
		if level := domain.AssociationLevel(*parsed.Level); level.IsValid() {
			filters.Level = level
		}
	}
	if kind := domain.SourceKind(parsed.Kind); kind.IsValid() {
		filters.Kind = kind
	}
	if op := domain.DateOp(parsed.DateOp); op.IsValid() && op != domain.DateOpNone {
		filters.DateOp = op
		if t, err := time.Parse("2006-01-02", parsed.From); err == nil {
			filters.From = &t
		}
		if t, err := time.Parse("2006-01-02", parsed.To); err == nil {
			filters.To = &t
		}
		// A date operator with no parseable bound is meaningless.
		if filters.From == nil {
			filters.DateOp = domain.DateOpNone
			filters.To = nil
		}
	}
	return filters, nil
}

// chatRequest is the OpenAI /chat/completions request format. Content is
// either a plain string or a multimodal part list.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatResponse is the OpenAI /chat/completions response format.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// chatCompletion posts a chat request and returns the first choice.
func (g *Gateway) chatCompletion(ctx context.Context, req chatRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := g.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// post sends one authenticated JSON request and reads the full body.
// Transport failures surface as ErrGatewayUnavailable.
func (g *Gateway) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.baseURL+path,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// Ping validates the API key against the /models endpoint without
// running inference.
func (g *Gateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: API returned status %d", resp.StatusCode)
	}
	return nil
}

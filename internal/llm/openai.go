package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/pkg/httpretry"
)

const (
	openAIChatURL      = "https://api.openai.com/v1/chat/completions"
	openAIEmbeddingURL = "https://api.openai.com/v1/embeddings"
)

// OpenAIProvider implements Provider against the OpenAI HTTP API.
type OpenAIProvider struct {
	apiKey         string
	chatModel      string
	embeddingModel string
	httpClient     httpretry.HTTPDoer

	// overridable endpoints, used by tests
	chatURL      string
	embeddingURL string
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(apiKey, chatModel, embeddingModel string, timeout time.Duration) *OpenAIProvider {
	if chatModel == "" {
		chatModel = "gpt-4-turbo-preview"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-large"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		httpClient:     httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
		chatURL:        openAIChatURL,
		embeddingURL:   openAIEmbeddingURL,
	}
}

// OpenAIChatMessage represents a message in the chat completions payload.
type OpenAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest is the request to OpenAI chat completions.
type OpenAIRequest struct {
	Model          string              `json:"model"`
	Messages       []OpenAIChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// OpenAIResponse is the response from chat completions.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int               `json:"index"`
		Message      OpenAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EnrichContact asks the chat model for a structured prospect profile.
func (p *OpenAIProvider) EnrichContact(ctx context.Context, name, email string) (*EnrichmentResult, error) {
	prompt := fmt.Sprintf(`Research the following B2B prospect and return a JSON object with keys
"industry", "title", "company", "painpoint", "relevance_score" (0-10).
Name: %s
Email: %s
Infer the company from the email domain when possible. Return ONLY the JSON object.`, name, email)

	resp, err := p.chat(ctx, "enrichment", []OpenAIChatMessage{
		{Role: "system", Content: "You are a B2B sales research assistant. Always answer with a single JSON object."},
		{Role: "user", Content: prompt},
	}, 0.3, true)
	if err != nil {
		return nil, err
	}

	var result EnrichmentResult
	if err := json.Unmarshal([]byte(extractJSON(resp.content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "enrichment", Raw: resp.content, Err: err}
	}
	result.Usage = resp.usage
	return &result, nil
}

// GenerateDraft asks the chat model for a personalized outreach email.
func (p *OpenAIProvider) GenerateDraft(ctx context.Context, req DraftRequest) (*DraftResult, error) {
	var sb strings.Builder
	if req.FollowupNumber > 0 {
		fmt.Fprintf(&sb, "Write follow-up email #%d in an ongoing B2B outreach thread.\n", req.FollowupNumber)
		for i, prev := range req.PreviousEmails {
			fmt.Fprintf(&sb, "Previous email %d:\n%s\n\n", i+1, prev)
		}
	} else {
		sb.WriteString("Write a short, personalized B2B cold outreach email.\n")
	}
	fmt.Fprintf(&sb, `Prospect: %s, %s at %s (industry: %s). Known painpoint: %s.
Sender: %s at %s.
Return a JSON object with keys "subject" and "body". Plain text body, no HTML.`,
		req.ContactName, req.Title, req.Company, req.Industry, req.Painpoint,
		req.SenderName, req.SenderCompany)

	resp, err := p.chat(ctx, "draft", []OpenAIChatMessage{
		{Role: "system", Content: "You are an expert B2B email copywriter. Always answer with a single JSON object."},
		{Role: "user", Content: sb.String()},
	}, 0.7, true)
	if err != nil {
		return nil, err
	}

	var result DraftResult
	if err := json.Unmarshal([]byte(extractJSON(resp.content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "draft", Raw: resp.content, Err: err}
	}
	if result.Subject == "" || result.Body == "" {
		return nil, &MalformedResponseError{Operation: "draft", Raw: resp.content,
			Err: fmt.Errorf("missing subject or body")}
	}
	result.Usage = resp.usage
	return &result, nil
}

// ClassifyReply asks the chat model for the intent of an inbound reply.
func (p *OpenAIProvider) ClassifyReply(ctx context.Context, req ClassifyRequest) (*ClassificationResult, error) {
	prompt := fmt.Sprintf(`Classify the intent of this reply to a B2B outreach email.
Intents: INTERESTED, MAYBE, DECLINE, AUTO_REPLY.
Also extract any meeting availability the sender mentions, verbatim, or "" if none.
Return a JSON object with keys "intent", "confidence" (0.0-1.0), "availability".

Original email:
%s

Reply subject: %s
Reply body:
%s`, req.OriginalBody, req.Subject, req.Body)

	resp, err := p.chat(ctx, "reply_classification", []OpenAIChatMessage{
		{Role: "system", Content: "You classify inbound sales replies. Always answer with a single JSON object."},
		{Role: "user", Content: prompt},
	}, 0.0, true)
	if err != nil {
		return nil, err
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(extractJSON(resp.content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "reply_classification", Raw: resp.content, Err: err}
	}
	result.Intent = strings.ToUpper(strings.TrimSpace(result.Intent))
	result.Usage = resp.usage
	return &result, nil
}

// EmbedText returns an embedding for the given text.
func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) (*EmbeddingResult, error) {
	body, err := json.Marshal(openAIEmbeddingRequest{Model: p.embeddingModel, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	data, status, err := p.post(ctx, p.embeddingURL, body)
	if err != nil {
		return nil, &TransientError{Operation: "embedding", Err: err}
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return nil, &TransientError{Operation: "embedding", StatusCode: status, Err: fmt.Errorf("status %d", status)}
	}

	var resp openAIEmbeddingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Operation: "embedding", Raw: string(data), Err: err}
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("embedding request failed: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Operation: "embedding", Raw: string(data),
			Err: fmt.Errorf("empty data")}
	}

	return &EmbeddingResult{
		Vector: resp.Data[0].Embedding,
		Usage: Usage{
			Model:        p.embeddingModel,
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

type chatResult struct {
	content string
	usage   Usage
}

func (p *OpenAIProvider) chat(ctx context.Context, op string, messages []OpenAIChatMessage, temperature float64, jsonMode bool) (*chatResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	req := OpenAIRequest{
		Model:       p.chatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   2000,
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	data, status, err := p.post(ctx, p.chatURL, body)
	if err != nil {
		return nil, &TransientError{Operation: op, Err: err}
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return nil, &TransientError{Operation: op, StatusCode: status, Err: fmt.Errorf("status %d", status)}
	}

	var resp OpenAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Operation: op, Raw: string(data), Err: err}
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s request failed: %s", op, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Operation: op, Raw: string(data),
			Err: fmt.Errorf("no choices")}
	}

	return &chatResult{
		content: resp.Choices[0].Message.Content,
		usage: Usage{
			Model:        p.chatModel,
			PromptTokens: resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) post(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("http post: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, httpResp.StatusCode, nil
}

// extractJSON strips markdown code fences that models sometimes wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	// Fall back to the outermost object if the model added prose around it.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider implements the chat half of Provider against AWS Bedrock
// (Anthropic models). Embeddings are delegated to a fallback provider since
// the configured Anthropic models do not serve embeddings.
type BedrockProvider struct {
	client   *bedrockruntime.Client
	modelID  string
	embedder Provider
}

// BedrockMessage is a message in the Anthropic-on-Bedrock payload format.
type BedrockMessage struct {
	Role    string                `json:"role"`
	Content []BedrockContentBlock `json:"content"`
}

// BedrockContentBlock is one content block in a Bedrock message.
type BedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []BedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockProvider creates a Bedrock-backed provider. Static credentials
// are optional; when empty the default AWS credential chain is used.
// embedder handles EmbedText calls and may not be nil.
func NewBedrockProvider(ctx context.Context, region, modelID, accessKey, secretKey string, embedder Provider) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:   bedrockruntime.NewFromConfig(cfg),
		modelID:  modelID,
		embedder: embedder,
	}, nil
}

// EnrichContact asks the model for a structured prospect profile.
func (p *BedrockProvider) EnrichContact(ctx context.Context, name, email string) (*EnrichmentResult, error) {
	prompt := fmt.Sprintf(`Research the following B2B prospect and return a JSON object with keys
"industry", "title", "company", "painpoint", "relevance_score" (0.0-1.0).
Name: %s
Email: %s
Infer the company from the email domain when possible. Return ONLY the JSON object.`, name, email)

	content, usage, err := p.invoke(ctx, "enrichment",
		"You are a B2B sales research assistant. Always answer with a single JSON object.",
		prompt, 0.3)
	if err != nil {
		return nil, err
	}

	var result EnrichmentResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "enrichment", Raw: content, Err: err}
	}
	result.Usage = usage
	return &result, nil
}

// GenerateDraft asks the model for a personalized outreach email.
func (p *BedrockProvider) GenerateDraft(ctx context.Context, req DraftRequest) (*DraftResult, error) {
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

	content, usage, err := p.invoke(ctx, "draft",
		"You are an expert B2B email copywriter. Always answer with a single JSON object.",
		sb.String(), 0.7)
	if err != nil {
		return nil, err
	}

	var result DraftResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "draft", Raw: content, Err: err}
	}
	if result.Subject == "" || result.Body == "" {
		return nil, &MalformedResponseError{Operation: "draft", Raw: content,
			Err: fmt.Errorf("missing subject or body")}
	}
	result.Usage = usage
	return &result, nil
}

// ClassifyReply asks the model for the intent of an inbound reply.
func (p *BedrockProvider) ClassifyReply(ctx context.Context, req ClassifyRequest) (*ClassificationResult, error) {
	prompt := fmt.Sprintf(`Classify the intent of this reply to a B2B outreach email.
Intents: INTERESTED, MAYBE, DECLINE, AUTO_REPLY.
Also extract any meeting availability the sender mentions, verbatim, or "" if none.
Return a JSON object with keys "intent", "confidence" (0.0-1.0), "availability".

Original email:
%s

Reply subject: %s
Reply body:
%s`, req.OriginalBody, req.Subject, req.Body)

	content, usage, err := p.invoke(ctx, "reply_classification",
		"You classify inbound sales replies. Always answer with a single JSON object.",
		prompt, 0.0)
	if err != nil {
		return nil, err
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, &MalformedResponseError{Operation: "reply_classification", Raw: content, Err: err}
	}
	result.Intent = strings.ToUpper(strings.TrimSpace(result.Intent))
	result.Usage = usage
	return &result, nil
}

// EmbedText delegates to the configured embedding provider.
func (p *BedrockProvider) EmbedText(ctx context.Context, text string) (*EmbeddingResult, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured for bedrock")
	}
	return p.embedder.EmbedText(ctx, text)
}

func (p *BedrockProvider) invoke(ctx context.Context, op, system, prompt string, temperature float64) (string, Usage, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        2000,
		System:           system,
		Temperature:      temperature,
		Messages: []BedrockMessage{
			{Role: "user", Content: []BedrockContentBlock{{Type: "text", Text: prompt}}},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal bedrock request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", Usage{}, &TransientError{Operation: op, Err: err}
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", Usage{}, &MalformedResponseError{Operation: op, Raw: string(output.Body), Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := Usage{
		Model:        p.modelID,
		PromptTokens: resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return text.String(), usage, nil
}

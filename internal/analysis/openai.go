package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nagarpalika/backend/internal/models"

	"github.com/lib/pq"
	"github.com/sashabaranov/go-openai"
)

const triagePrompt = `You triage municipal infrastructure complaints.
Reply with a single JSON object and nothing else:
{"severityScore": <integer 0-10>, "detectedObjects": [<short labels>], "confidence": <0-100>, "flaggedForReview": <bool>, "isDuplicate": <bool>}
10 means immediate danger to life, 0 means cosmetic.`

// OpenAIClassifier asks a chat model for a severity score.
// The threat level is always derived locally with ThreatForSeverity.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier builds a classifier for apiKey. baseURL may be empty.
func NewOpenAIClassifier(apiKey, model, baseURL string) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(clientConfig), model: model}, nil
}

type triageReply struct {
	SeverityScore    *int     `json:"severityScore"`
	DetectedObjects  []string `json:"detectedObjects"`
	Confidence       float64  `json:"confidence"`
	FlaggedForReview bool     `json:"flaggedForReview"`
	IsDuplicate      bool     `json:"isDuplicate"`
}

// Analyze implements Classifier.
func (o *OpenAIClassifier) Analyze(ctx context.Context, in Input) (models.Classification, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Title: %s\nDescription: %s\n", in.Title, in.Description)
	if in.ImageRef != "" {
		user.WriteString("A photo was attached.\n")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: triagePrompt},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		MaxTokens:      200,
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: openai: %v", models.ErrClassificationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return models.Classification{}, fmt.Errorf("%w: openai returned no choices", models.ErrClassificationFailed)
	}

	var reply triageReply
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return models.Classification{}, fmt.Errorf("%w: decode reply: %v", models.ErrClassificationFailed, err)
	}
	if reply.SeverityScore == nil {
		return models.Classification{}, fmt.Errorf("%w: reply has no severityScore", models.ErrClassificationFailed)
	}

	severity := ClampSeverity(*reply.SeverityScore)
	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}
	objects := pq.StringArray{}
	for _, obj := range reply.DetectedObjects {
		if obj = strings.TrimSpace(obj); obj != "" {
			objects = append(objects, obj)
		}
	}

	return models.Classification{
		ThreatLevel:      ThreatForSeverity(severity),
		SeverityScore:    severity,
		DetectedObjects:  objects,
		Confidence:       confidence,
		IsDuplicate:      reply.IsDuplicate,
		FlaggedForReview: reply.FlaggedForReview,
	}, nil
}

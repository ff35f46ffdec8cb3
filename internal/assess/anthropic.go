package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/codefleet/foreman/pkg/models"
)

// AnthropicAssessor implements SecondaryAssessor against the Anthropic
// API (or AWS Bedrock). It uses a cheap model: the point of the secondary
// opinion is a better-than-keywords read of the task text, not frontier
// reasoning.
type AnthropicAssessor struct {
	client  anthropic.Client
	model   anthropic.Model
	tracker *TokenTracker
}

// AnthropicConfig contains configuration for creating an AnthropicAssessor.
type AnthropicConfig struct {
	// Model is the model to use. Defaults to a Haiku-class model.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewAnthropicAssessor creates a secondary assessor backed by the
// Anthropic API.
func NewAnthropicAssessor(cfg AnthropicConfig) (*AnthropicAssessor, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaude3_5Haiku20241022
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &AnthropicAssessor{
		client:  anthropic.NewClient(opts...),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

const assessSystemPrompt = `You estimate software task complexity. Given a task, respond with ONLY a JSON object:
{"score": <number 1-10>, "reasoning": "<one sentence>"}
1 = trivial one-line change, 10 = cross-cutting architectural work.`

// opinionPayload is the JSON shape the model is instructed to return.
type opinionPayload struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// AssessComplexity asks the model for a 1-10 complexity estimate of the
// task. Errors (including context deadline) are returned to the caller,
// which falls back to the rule-based score.
func (a *AnthropicAssessor) AssessComplexity(ctx context.Context, task *models.Task) (*SecondaryOpinion, error) {
	prompt := fmt.Sprintf("Task kind: %s\nPriority: %d\nPrevious failed attempts: %d\n\n%s",
		task.Kind, task.Priority, task.CurrentIteration, task.Text())

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: assessSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("secondary assessment call: %w", err)
	}

	a.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	payload, err := parseOpinion(text)
	if err != nil {
		return nil, err
	}
	return &SecondaryOpinion{Score: payload.Score, Reasoning: payload.Reasoning}, nil
}

// Tracker returns the token tracker for this assessor.
func (a *AnthropicAssessor) Tracker() *TokenTracker {
	return a.tracker
}

// parseOpinion extracts the JSON object from the model response. Models
// sometimes wrap JSON in prose or code fences, so scan for the braces.
func parseOpinion(text string) (*opinionPayload, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in assessment response: %q", text)
	}

	var payload opinionPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse assessment response: %w", err)
	}
	if payload.Score == 0 {
		return nil, fmt.Errorf("assessment response missing score: %q", text)
	}
	return &payload, nil
}

var _ SecondaryAssessor = (*AnthropicAssessor)(nil)

//go:build bedrock

// Package bedrock implements an llm.Provider backed by AWS Bedrock's
// Converse API, adapted from the teacher's build-tagged bedrock AI client
// (kept optional via the same "bedrock" build tag so the aws-sdk-go-v2
// dependency is only pulled in when the deployment actually uses it).
package bedrock

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/llm"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Bedrock providers.
type Factory struct{}

func (f *Factory) Name() string        { return "bedrock" }
func (f *Factory) Description() string { return "AWS Bedrock Converse API (Claude, Llama, Titan)" }

func (f *Factory) DetectEnvironment() (priority int, available bool) {
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		return 60, true
	}
	if os.Getenv("AWS_PROFILE") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return 60, true
	}
	return 0, false
}

func (f *Factory) Create(cfg *llm.ProviderConfig) llm.Provider {
	region := cfg.BedrockRegion
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return &errorProvider{err: fmt.Errorf("bedrock: load AWS config: %w", err)}
	}

	model := cfg.Model
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &Provider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  model,
	}
}

// Provider invokes models hosted on Bedrock through the provider-agnostic
// Converse API.
type Provider struct {
	client *bedrockruntime.Client
	model  string
}

func (p *Provider) Name() string { return "bedrock" }

func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
			},
		},
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}
	inference := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	input.InferenceConfig = inference

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, core.NewFrameworkError("bedrock.Generate", "Transient", core.ErrLLMTransient)
	}

	outMsg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(outMsg.Value.Content) == 0 {
		return nil, core.NewFrameworkError("bedrock.Generate", "Transient", core.ErrLLMTransient)
	}
	block, ok := outMsg.Value.Content[0].(*types.ContentBlockMemberText)
	if !ok {
		return nil, core.NewFrameworkError("bedrock.Generate", "SchemaMismatch", core.ErrLLMSchemaMismatch)
	}

	usage := llm.TokenUsage{}
	if out.Usage != nil {
		usage = llm.TokenUsage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return &llm.Response{Content: block.Value, Model: model, Usage: usage}, nil
}

// errorProvider is returned by Create when the AWS configuration fails to
// load, so Create still yields a provider; every call just surfaces the error.
type errorProvider struct{ err error }

func (e *errorProvider) Name() string { return "bedrock" }
func (e *errorProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return nil, e.err
}

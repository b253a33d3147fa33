package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/sethvargo/go-retry"
)

const analysisToolName = "submit_analysis"

// ConverseAPI is the slice of the Bedrock runtime client this package uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient invokes Claude models through the Bedrock Converse API,
// forcing structured output via tool use.
type BedrockClient struct {
	api              ConverseAPI
	guardrailID      string
	guardrailVersion string
	log              *slog.Logger
}

// BedrockOption configures a BedrockClient.
type BedrockOption func(*BedrockClient)

// WithGuardrail sets the default provider-side guardrail applied to calls.
func WithGuardrail(id, version string) BedrockOption {
	return func(c *BedrockClient) {
		c.guardrailID = id
		if version != "" {
			c.guardrailVersion = version
		}
	}
}

// WithBedrockLogger sets the operational logger.
func WithBedrockLogger(log *slog.Logger) BedrockOption {
	return func(c *BedrockClient) { c.log = log }
}

// NewBedrockClient builds a client from the ambient AWS configuration.
func NewBedrockClient(ctx context.Context, region string, opts ...BedrockOption) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrockClientFromAPI(bedrockruntime.NewFromConfig(cfg), opts...), nil
}

// NewBedrockClientFromAPI wraps an existing Converse API implementation.
func NewBedrockClientFromAPI(api ConverseAPI, opts ...BedrockOption) *BedrockClient {
	c := &BedrockClient{
		api:              api,
		guardrailVersion: "DRAFT",
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvokeStructured implements Client.
func (c *BedrockClient) InvokeStructured(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = analystSystemPrompt
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.ModelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(req.MaxTokens)),
		},
		ToolConfig: &types.ToolConfiguration{
			Tools: []types.Tool{
				&types.ToolMemberToolSpec{
					Value: types.ToolSpecification{
						Name:        aws.String(analysisToolName),
						Description: aws.String("Submit the structured analysis results. You must use this tool to provide your analysis."),
						InputSchema: &types.ToolInputSchemaMemberJson{
							Value: document.NewLazyDocument(outputSchema()),
						},
					},
				},
			},
			ToolChoice: &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: aws.String(analysisToolName)},
			},
		},
	}

	if c.guardrailID != "" && !req.DisableGuardrails {
		gid, version := c.guardrailID, c.guardrailVersion
		if req.GuardrailID != "" {
			gid = req.GuardrailID
		}
		if req.GuardrailVersion != "" {
			version = req.GuardrailVersion
		}
		input.GuardrailConfig = &types.GuardrailConfiguration{
			GuardrailIdentifier: aws.String(gid),
			GuardrailVersion:    aws.String(version),
			Trace:               types.GuardrailTraceEnabled,
		}
	}

	out, err := c.converseWithRetry(ctx, input)
	if err != nil {
		c.log.Error("bedrock converse failed", "model", req.ModelID, "err", err)
		return nil, &ServiceError{Message: "bedrock invocation failed", Err: err}
	}

	elapsed := time.Since(start).Milliseconds()

	var trace any
	if out.Trace != nil && out.Trace.Guardrail != nil {
		trace = out.Trace.Guardrail
	}

	if out.StopReason == types.StopReasonGuardrailIntervened {
		return nil, &BlockedError{
			Message: "content blocked by provider guardrails",
			Trace:   trace,
		}
	}

	result := extractToolResult(out)
	if result == nil {
		c.log.Warn("no structured output received from model", "model", req.ModelID)
		result = map[string]any{}
	}

	resp := &Response{
		Result:         result,
		StopReason:     string(out.StopReason),
		ElapsedMS:      elapsed,
		GuardrailTrace: trace,
	}
	if out.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	return resp, nil
}

func (c *BedrockClient) converseWithRetry(ctx context.Context, input *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
	var out *bedrockruntime.ConverseOutput
	backoff := retry.NewFibonacci(500 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(3, backoff), func(ctx context.Context) error {
		var callErr error
		out, callErr = c.api.Converse(ctx, input)
		if callErr == nil {
			return nil
		}
		if isTransient(callErr) {
			c.log.Warn("transient bedrock error, retrying", "err", callErr)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// extractToolResult pulls the analysis tool payload out of the response,
// falling back to parsing any text block as JSON.
func extractToolResult(out *bedrockruntime.ConverseOutput) map[string]any {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil
	}

	for _, block := range msg.Value.Content {
		tu, ok := block.(*types.ContentBlockMemberToolUse)
		if !ok || aws.ToString(tu.Value.Name) != analysisToolName {
			continue
		}
		var result map[string]any
		if err := tu.Value.Input.UnmarshalSmithyDocument(&result); err == nil {
			return result
		}
	}

	for _, block := range msg.Value.Content {
		text, ok := block.(*types.ContentBlockMemberText)
		if !ok {
			continue
		}
		var result map[string]any
		if err := json.Unmarshal([]byte(text.Value), &result); err == nil {
			return result
		}
	}

	return nil
}

func isTransient(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException",
		"TooManyRequestsException",
		"ServiceUnavailableException",
		"ModelNotReadyException",
		"InternalServerException":
		return true
	}
	return false
}

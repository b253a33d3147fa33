// Package llm defines the model-invocation client consumed by the
// orchestrator, with a Bedrock implementation and a demo implementation.
// The client contract distinguishes three outcomes: a structured result, an
// explicit content block by the provider-side guardrail, and a transport or
// service failure.
package llm

import (
	"context"
	"fmt"
)

// Request carries one structured-analysis invocation.
type Request struct {
	Prompt       string
	SystemPrompt string
	ModelID      string
	MaxTokens    int

	// GuardrailID enables the provider-side guardrail when non-empty.
	GuardrailID      string
	GuardrailVersion string
	// DisableGuardrails skips the guardrail config for this call. Only the
	// orchestrator's bypass path sets it.
	DisableGuardrails bool
}

// Usage is the token accounting for one invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a successful invocation outcome.
type Response struct {
	// Result is the structured tool-use payload.
	Result map[string]any
	Usage  Usage
	// StopReason is the provider's termination reason (e.g. end_turn,
	// tool_use).
	StopReason string
	ElapsedMS  int64
	// GuardrailTrace carries the guardrail assessment when tracing is on.
	GuardrailTrace any
	// DemoMode marks simulated responses.
	DemoMode bool
}

// BlockedError signals that the provider-side guardrail refused the content.
type BlockedError struct {
	Message string
	Trace   any
}

func (e *BlockedError) Error() string { return e.Message }

// ServiceError signals a transport or provider failure. Callers may retry.
type ServiceError struct {
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client invokes a model for structured analysis output.
type Client interface {
	// InvokeStructured dispatches the prompt and returns the structured
	// result. It returns *BlockedError on an explicit content block and
	// *ServiceError on transport/provider failure; the caller-supplied
	// context bounds the call.
	InvokeStructured(ctx context.Context, req Request) (*Response, error)
}

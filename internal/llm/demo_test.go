package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestDemoClient() *DemoClient {
	return NewDemoClient(
		WithDemoDelay(0, 0),
		WithDemoRand(rand.New(rand.NewPCG(1, 2))),
	)
}

func TestDemoClient_ProducesStructuredResult(t *testing.T) {
	client := newTestDemoClient()

	resp, err := client.InvokeStructured(context.Background(), Request{
		Prompt: "What drives the seasonal revenue pattern in our data?",
	})
	if err != nil {
		t.Fatalf("InvokeStructured: %v", err)
	}
	if !resp.DemoMode {
		t.Error("demo response not marked as demo")
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}

	hyps, ok := resp.Result["hypotheses"].([]any)
	if !ok || len(hyps) < 1 || len(hyps) > 3 {
		t.Fatalf("hypotheses = %v", resp.Result["hypotheses"])
	}
	first, ok := hyps[0].(map[string]any)
	if !ok {
		t.Fatalf("first hypothesis has type %T", hyps[0])
	}
	summary, _ := first["summary"].(string)
	if !strings.HasPrefix(summary, "Based on your query about '") {
		t.Errorf("first summary not tied to query: %q", summary)
	}

	if _, ok := resp.Result["explanation"].(map[string]any); !ok {
		t.Error("missing explanation")
	}
	if results, ok := resp.Result["search_results"].([]any); !ok || len(results) == 0 {
		t.Error("missing search results")
	}
}

func TestDemoClient_UsageTracksPromptSize(t *testing.T) {
	client := newTestDemoClient()

	resp, err := client.InvokeStructured(context.Background(), Request{
		Prompt: "one two three four five",
	})
	if err != nil {
		t.Fatalf("InvokeStructured: %v", err)
	}
	if resp.Usage.InputTokens != 10 {
		t.Errorf("input tokens = %d, want 10", resp.Usage.InputTokens)
	}
	if resp.Usage.OutputTokens < 400 || resp.Usage.OutputTokens > 800 {
		t.Errorf("output tokens = %d, want 400..800", resp.Usage.OutputTokens)
	}
	if resp.ElapsedMS < 800 || resp.ElapsedMS > 2500 {
		t.Errorf("elapsed = %d, want 800..2500", resp.ElapsedMS)
	}
}

func TestDemoClient_LongPromptTruncatedInSummary(t *testing.T) {
	client := newTestDemoClient()
	long := strings.Repeat("metrics ", 20)

	resp, err := client.InvokeStructured(context.Background(), Request{Prompt: long})
	if err != nil {
		t.Fatalf("InvokeStructured: %v", err)
	}
	first := resp.Result["hypotheses"].([]any)[0].(map[string]any)
	summary := first["summary"].(string)
	if !strings.Contains(summary, long[:50]+"...") {
		t.Errorf("summary does not contain truncated prompt: %q", summary)
	}
}

func TestDemoClient_MultibytePromptTruncatedOnRuneBoundary(t *testing.T) {
	client := newTestDemoClient()
	// Byte 50 falls mid-rune; the cut must back up instead of splitting it.
	long := strings.Repeat("デ", 30)

	resp, err := client.InvokeStructured(context.Background(), Request{Prompt: long})
	if err != nil {
		t.Fatalf("InvokeStructured: %v", err)
	}
	first := resp.Result["hypotheses"].([]any)[0].(map[string]any)
	summary := first["summary"].(string)
	if !utf8.ValidString(summary) {
		t.Errorf("summary is not valid UTF-8: %q", summary)
	}
	if strings.ContainsRune(summary, '�') {
		t.Errorf("summary contains a replacement character: %q", summary)
	}
	if !strings.Contains(summary, long[:48]+"...") {
		t.Errorf("summary does not contain rune-aligned truncated prompt: %q", summary)
	}
}

func TestDemoClient_HonorsContextCancellation(t *testing.T) {
	client := NewDemoClient(
		WithDemoDelay(time.Minute, time.Minute),
		WithDemoRand(rand.New(rand.NewPCG(1, 2))),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.InvokeStructured(ctx, Request{Prompt: "anything"})
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err does not wrap deadline exceeded: %v", err)
	}
}

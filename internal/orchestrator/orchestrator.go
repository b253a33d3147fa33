// Package orchestrator drives one analysis request through input
// selection, validation, dispatch, parsing and recording. Every request
// terminates in Completed, Blocked or Errored, and every terminal state
// leaves exactly one audit record.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/promptops/insightgate/internal/audit"
	"github.com/promptops/insightgate/internal/llm"
	"github.com/promptops/insightgate/internal/parser"
	"github.com/promptops/insightgate/internal/security"
	"github.com/promptops/insightgate/internal/settings"
	"github.com/promptops/insightgate/internal/template"
	"github.com/promptops/insightgate/internal/unicode"
)

// State names the stages of a request. Exposed for result reporting.
type State string

const (
	StateSelectingInput State = "selecting_input"
	StateValidating     State = "validating"
	StateDispatching    State = "dispatching"
	StateParsing        State = "parsing"
	StateRecording      State = "recording"
	StateCompleted      State = "completed"
	StateBlocked        State = "blocked"
	StateErrored        State = "errored"
)

// PolicySource supplies the current system policy. settings.Cache
// satisfies it.
type PolicySource interface {
	Get() (settings.Policy, error)
	Hardened() bool
}

// TemplateStore supplies active templates and tracks usage.
type TemplateStore interface {
	GetActive(id string) (*template.Template, error)
	IncrementUsage(id string)
}

// Sink persists audit records. audit.Logger satisfies it.
type Sink interface {
	Write(rec audit.Record) error
}

// Request is one analysis transaction.
type Request struct {
	Actor string
	// Elevated marks a privileged acting identity, one of the three bypass
	// conditions.
	Elevated bool

	// Prompt is the free-text input for guided and open modes.
	Prompt string
	// TemplateID selects a stored template; required in constrained mode.
	TemplateID string
	Variables  map[string]string

	// Bypass is the explicit per-transaction opt-in to skip the
	// classifier. Only honored in open mode, with policy allowance and an
	// elevated actor, and never in a hardened deployment.
	Bypass bool
}

// Result is the outcome of one request.
type Result struct {
	State      State
	Record     audit.Record
	Analysis   *parser.AnalysisResult
	BypassUsed bool
}

// Orchestrator wires the pipeline components together. Stateless across
// requests; safe for concurrent use.
type Orchestrator struct {
	policies   PolicySource
	templates  TemplateStore
	classifier *security.Classifier
	parser     *parser.Parser
	live       llm.Client
	demo       llm.Client
	sink       Sink
	log        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLiveClient sets the client used when demo mode is off.
func WithLiveClient(c llm.Client) Option {
	return func(o *Orchestrator) { o.live = c }
}

// WithDemoClient overrides the simulated-response client.
func WithDemoClient(c llm.Client) Option {
	return func(o *Orchestrator) { o.demo = c }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithClassifier overrides the default classifier.
func WithClassifier(c *security.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// New builds an orchestrator over the given policy source, template store
// and audit sink.
func New(policies PolicySource, templates TemplateStore, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		policies:  policies,
		templates: templates,
		sink:      sink,
		demo:      llm.NewDemoClient(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.classifier == nil {
		o.classifier = security.NewClassifier(security.WithLogger(o.log))
	}
	if o.parser == nil {
		o.parser = parser.New(o.log)
	}
	return o
}

// Run processes one request to a terminal state. The returned error is one
// of *ValidationError, *SecurityBlockedError, *ServiceError or
// *ConfigurationError; a nil error means Completed. In every case the
// audit record has been written before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	policy, err := o.policies.Get()
	if err != nil {
		rec := audit.NewRecord(req.Actor, "")
		rec.Outcome = audit.OutcomeErrored
		rec.Prompt = req.Prompt
		rec.Error = err.Error()
		o.record(rec)
		return &Result{State: StateErrored, Record: rec}, &ConfigurationError{Message: "load system policy", Err: err}
	}

	rec := audit.NewRecord(req.Actor, string(policy.Mode))
	rec.Prompt = req.Prompt
	rec.TemplateID = req.TemplateID

	// SelectingInput
	prompt, tmpl, err := o.selectInput(policy, req)
	if err != nil {
		rec.Outcome = audit.OutcomeBlocked
		rec.Filtered = true
		rec.FilterReason = err.Error()
		o.record(rec)
		return &Result{State: StateBlocked, Record: rec}, err
	}
	if tmpl != nil {
		rec.RenderedPrompt = prompt
	}

	bypass := o.bypassActive(policy, req)
	rec.Bypass = bypass
	if req.Bypass && !bypass {
		o.log.Warn("bypass request refused",
			"actor", req.Actor,
			"mode", policy.Mode,
			"hardened", o.policies.Hardened())
	}

	// Validating: length bounds always apply; the classifier is skipped
	// only under an active bypass.
	if ok, reason := security.ValidateLength(prompt); !ok {
		rec.Outcome = audit.OutcomeBlocked
		rec.Filtered = true
		rec.FilterReason = reason
		o.record(rec)
		return &Result{State: StateBlocked, Record: rec, BypassUsed: bypass}, &ValidationError{Message: reason}
	}
	if !bypass {
		if scan := unicode.Scan(prompt); !scan.Clean {
			if threat, blocking := scan.FirstBlocking(); blocking {
				rec.Outcome = audit.OutcomeBlocked
				rec.Filtered = true
				rec.FilterReason = threat.Description
				rec.Severity = string(security.SeverityHigh)
				rec.MatchedText = threat.Codepoint
				o.record(rec)
				return &Result{State: StateBlocked, Record: rec}, &SecurityBlockedError{}
			}
			o.log.Warn("suspicious codepoints in prompt",
				"actor", req.Actor,
				"codepoints", scan.RawHex)
		}
		if verdict := o.classifier.Validate(prompt); !verdict.IsSafe {
			rec.Outcome = audit.OutcomeBlocked
			rec.Filtered = true
			rec.FilterReason = verdict.Reason
			rec.Severity = string(verdict.Severity)
			rec.MatchedText = verdict.MatchedText
			o.record(rec)
			return &Result{State: StateBlocked, Record: rec}, &SecurityBlockedError{}
		}
	}

	// Dispatching
	client := o.live
	if policy.DemoMode {
		client = o.demo
	}
	if client == nil {
		rec.Outcome = audit.OutcomeErrored
		rec.Error = "no analysis client configured"
		o.record(rec)
		return &Result{State: StateErrored, Record: rec, BypassUsed: bypass},
			&ConfigurationError{Message: "no analysis client configured"}
	}

	resp, err := client.InvokeStructured(ctx, llm.Request{
		Prompt:            prompt,
		ModelID:           policy.ModelID,
		MaxTokens:         policy.MaxTokens,
		DisableGuardrails: bypass,
	})
	if err != nil {
		return o.recordDispatchFailure(&rec, bypass, err)
	}

	rec.DemoMode = resp.DemoMode
	rec.InputTokens = resp.Usage.InputTokens
	rec.OutputTokens = resp.Usage.OutputTokens
	rec.ElapsedMS = resp.ElapsedMS
	if raw, err := json.Marshal(resp.Result); err == nil {
		rec.Response = string(raw)
	}

	// Parsing
	analysis := o.parser.Parse(resp.Result)

	// Recording
	rec.Outcome = audit.OutcomeCompleted
	o.record(rec)
	if tmpl != nil && policy.Mode == settings.ModeConstrained {
		o.templates.IncrementUsage(tmpl.ID)
	}

	return &Result{
		State:      StateCompleted,
		Record:     rec,
		Analysis:   &analysis,
		BypassUsed: bypass,
	}, nil
}

// selectInput resolves the prompt text, rendering a template when one is
// selected. Constrained mode requires a template.
func (o *Orchestrator) selectInput(policy settings.Policy, req Request) (string, *template.Template, error) {
	if req.TemplateID == "" {
		if policy.Mode == settings.ModeConstrained {
			return "", nil, &ValidationError{Message: "constrained mode requires a template selection"}
		}
		return req.Prompt, nil, nil
	}

	tmpl, err := o.templates.GetActive(req.TemplateID)
	if err != nil {
		return "", nil, &ConfigurationError{Message: "unknown template", Err: err}
	}
	if ok, reason := template.ValidateVariables(req.Variables, tmpl.Variables); !ok {
		return "", nil, &ValidationError{Message: reason}
	}
	return tmpl.Render(req.Variables), tmpl, nil
}

// bypassActive applies the tri-condition bypass gate. A hardened
// deployment refuses bypass regardless of policy, and only open mode is
// eligible.
func (o *Orchestrator) bypassActive(policy settings.Policy, req Request) bool {
	if o.policies.Hardened() {
		return false
	}
	if policy.Mode != settings.ModeOpen {
		return false
	}
	return policy.BypassAllowed && req.Elevated && req.Bypass
}

func (o *Orchestrator) recordDispatchFailure(rec *audit.Record, bypass bool, err error) (*Result, error) {
	var blocked *llm.BlockedError
	if errors.As(err, &blocked) {
		rec.Outcome = audit.OutcomeBlocked
		rec.Filtered = true
		rec.FilterReason = blocked.Message
		o.record(*rec)
		return &Result{State: StateBlocked, Record: *rec, BypassUsed: bypass},
			&SecurityBlockedError{Trace: blocked.Trace}
	}

	rec.Outcome = audit.OutcomeErrored
	rec.Error = err.Error()
	o.record(*rec)
	return &Result{State: StateErrored, Record: *rec, BypassUsed: bypass}, &ServiceError{Err: err}
}

func (o *Orchestrator) record(rec audit.Record) {
	if err := o.sink.Write(rec); err != nil {
		// Storage failure is an operational condition; the transaction
		// outcome stands.
		o.log.Error("audit write failed", "record_id", rec.ID, "err", err)
	}
}

// Package security provides the pattern-based prompt classification layer
// that runs before any model invocation. It complements the provider-side
// guardrails with deterministic, ordered-rule detection of prompt injection
// and out-of-scope requests.
package security

import (
	"log/slog"
	"regexp"
	"strings"
)

// Severity classifies the impact of a detected violation. It is used for
// audit prioritization, not for the block/allow decision itself.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Verdict is the result of a single classification pass.
// A fresh Verdict is produced per check and never persisted directly;
// the orchestrator summarizes it into the audit record.
type Verdict struct {
	IsSafe      bool
	Reason      string
	MatchedText string
	Severity    Severity
}

func safe() Verdict { return Verdict{IsSafe: true} }

// rule is a single detection pattern with its static reason and severity.
// Rules are evaluated in declared order; the first match wins.
type rule struct {
	pattern  *regexp.Regexp
	unless   *regexp.Regexp // optional carve-out; a match here suppresses the rule
	reason   string
	severity Severity
}

func mustRule(pattern, reason string, severity Severity) rule {
	return rule{
		pattern:  regexp.MustCompile(`(?i)` + pattern),
		reason:   reason,
		severity: severity,
	}
}

func mustRuleUnless(pattern, unless, reason string, severity Severity) rule {
	r := mustRule(pattern, reason, severity)
	r.unless = regexp.MustCompile(`(?i)` + unless)
	return r
}

// injectionRules covers the known prompt-injection techniques, ordered by
// category. First match wins, so more specific phrasings come first within
// each category.
var injectionRules = []rule{
	// Direct instruction override
	mustRule(`ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|guidelines?)`,
		"Instruction override attempt", SeverityCritical),
	mustRule(`disregard\s+(all\s+)?(your|the|my)?\s*(instructions?|rules?|guidelines?|training)`,
		"Instruction disregard attempt", SeverityCritical),
	mustRule(`forget\s+(everything|all|what)\s+(you\s+)?(know|learned|were\s+told)`,
		"Memory reset attempt", SeverityCritical),

	// Role/identity manipulation
	mustRuleUnless(`you\s+are\s+now\s+`, `you\s+are\s+now\s+a\s+data\s+analyst`,
		"Role override attempt", SeverityHigh),
	mustRule(`pretend\s+(to\s+be|you\s+are|you'?re)`,
		"Role pretend attempt", SeverityHigh),
	mustRuleUnless(`act\s+as\s+if\s+you\s+(are|were)\s+`, `act\s+as\s+if\s+you\s+(are|were)\s+analyzing`,
		"Role acting attempt", SeverityHigh),
	mustRule(`roleplay\s+as`,
		"Roleplay attempt", SeverityHigh),
	mustRule(`from\s+now\s+on\s+you\s+(are|will)`,
		"Persistent role change", SeverityHigh),

	// System prompt extraction
	mustRule(`(show|tell|reveal|display|print|output)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?|rules?)`,
		"System prompt extraction", SeverityCritical),
	mustRule(`what\s+(are|is)\s+your\s+(system\s+)?(prompt|instructions?|rules?)`,
		"System prompt inquiry", SeverityHigh),
	mustRule(`repeat\s+(your|the)\s+(initial|original|first|system)\s+(prompt|instructions?|message)`,
		"Prompt repeat attempt", SeverityCritical),

	// Jailbreak techniques
	mustRule(`\b(DAN|STAN|DUDE)\b\s*(mode)?`,
		"Known jailbreak persona", SeverityCritical),
	mustRule(`do\s+anything\s+now`,
		"DAN jailbreak attempt", SeverityCritical),
	mustRule(`(developer|debug|maintenance|god)\s+mode`,
		"Privilege escalation attempt", SeverityCritical),
	mustRule(`bypass\s+(safety|security|filter|guardrail)`,
		"Bypass attempt", SeverityCritical),

	// Encoding/obfuscation
	mustRule(`base64\s*(encode|decode)`,
		"Encoding manipulation", SeverityMedium),
	mustRule(`rot13`,
		"Encoding manipulation", SeverityMedium),
	mustRule(`in\s+(hex|binary|morse)`,
		"Encoding manipulation", SeverityMedium),

	// Output manipulation
	mustRule(`respond\s+(only\s+)?with\s+(yes|no|true|false|1|0)`,
		"Output constraint attempt", SeverityMedium),
	mustRule(`only\s+say\s+`,
		"Output constraint attempt", SeverityMedium),

	// Context injection
	mustRule(`\[\s*system\s*\]`,
		"System message injection", SeverityCritical),
	mustRule(`<\s*/?system\s*>`,
		"System tag injection", SeverityCritical),
	mustRule(`###\s*(system|instructions?)\s*:`,
		"System marker injection", SeverityHigh),

	// Delimiter attacks
	mustRule(`---+\s*(end|ignore|new)\s*(prompt|instructions?)?`,
		"Delimiter injection", SeverityHigh),
	mustRule("```" + `\s*(system|hidden|ignore)`,
		"Code block injection", SeverityHigh),
}

// offTopicRules flags requests outside the data-analysis scope.
var offTopicRules = []rule{
	mustRule(`(write|create|generate)\s+(a\s+)?(story|poem|song|essay|fiction)`,
		"Creative writing request", SeverityLow),
	mustRule(`(tell\s+me\s+)?a\s+joke`,
		"Entertainment request", SeverityLow),
	mustRule(`(how\s+to\s+)?(hack|crack|exploit|attack)\s+`,
		"Security attack request", SeverityHigh),
	mustRule(`(make|create|write)\s+(a\s+)?(malware|virus|ransomware)`,
		"Malware request", SeverityCritical),
}

// Classifier runs the ordered rule tables against prompt text.
// It is stateless and safe for concurrent use.
type Classifier struct {
	offTopicEnabled bool
	log             *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithoutOffTopicCheck disables the off-topic rule table.
func WithoutOffTopicCheck() Option {
	return func(c *Classifier) { c.offTopicEnabled = false }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Classifier) { c.log = log }
}

// NewClassifier creates a classifier with the built-in rule tables.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		offTopicEnabled: true,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) scan(text string, rules []rule) Verdict {
	for _, r := range rules {
		m := r.pattern.FindString(text)
		if m == "" {
			continue
		}
		if r.unless != nil && r.unless.MatchString(text) {
			continue
		}
		return Verdict{
			IsSafe:      false,
			Reason:      r.reason,
			MatchedText: m,
			Severity:    r.severity,
		}
	}
	return safe()
}

// CheckInjection scans the text against the injection rule table.
// It never fails; absence of a match is the safe default.
func (c *Classifier) CheckInjection(text string) Verdict {
	v := c.scan(text, injectionRules)
	if !v.IsSafe {
		c.log.Warn("prompt injection detected",
			"reason", v.Reason, "matched", v.MatchedText, "severity", string(v.Severity))
	}
	return v
}

// CheckOffTopic scans the text against the off-topic rule table.
func (c *Classifier) CheckOffTopic(text string) Verdict {
	if !c.offTopicEnabled {
		return safe()
	}
	v := c.scan(text, offTopicRules)
	if !v.IsSafe {
		c.log.Info("off-topic request detected",
			"reason", v.Reason, "matched", v.MatchedText, "severity", string(v.Severity))
	}
	return v
}

// Validate runs the full classification: injection rules first, then
// off-topic rules, short-circuiting on the first unsafe verdict.
// Injection takes precedence because it is the higher-criticality class.
func (c *Classifier) Validate(text string) Verdict {
	if v := c.CheckInjection(text); !v.IsSafe {
		return v
	}
	if v := c.CheckOffTopic(text); !v.IsSafe {
		return v
	}
	return safe()
}

var (
	systemBracketRe  = regexp.MustCompile(`(?i)\[\s*system\s*\]`)
	systemTagRe      = regexp.MustCompile(`(?i)<\s*/?system\s*>`)
	excessiveSpaceRe = regexp.MustCompile(`\s{10,}`)
	controlCharRe    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// Sanitize strips system-marker tokens, collapses whitespace runs, and
// removes control characters. Best effort only, for defensive display and
// logging; it is never a substitute for rejecting an unsafe prompt.
func Sanitize(text string) string {
	s := systemBracketRe.ReplaceAllString(text, "[filtered]")
	s = systemTagRe.ReplaceAllString(s, "")
	s = excessiveSpaceRe.ReplaceAllString(s, " ")
	s = controlCharRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

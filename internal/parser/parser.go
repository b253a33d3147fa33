// Package parser converts loosely-typed structured model output into typed
// analysis results. Parsing is tolerant by design: malformed items are
// skipped individually and absent quality signals default conservatively.
package parser

import (
	"log/slog"
)

// Confidence and relevance share the same three-level scale.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Visualization kinds a hypothesis may recommend.
const (
	VizChart = "chart"
	VizTable = "table"
	VizText  = "text"
	VizNone  = "none"
)

// Hypothesis is a single finding from the analysis.
type Hypothesis struct {
	Title             string   `json:"title"`
	Confidence        string   `json:"confidence"`
	Summary           string   `json:"summary"`
	Evidence          []string `json:"evidence"`
	VisualizationType string   `json:"visualization_type"`
}

// SearchResult references a data source consulted by the analysis.
type SearchResult struct {
	Source    string `json:"source"`
	Relevance string `json:"relevance"`
	Snippet   string `json:"snippet"`
	URL       string `json:"url,omitempty"`
}

// Explanation describes how the analysis was conducted.
type Explanation struct {
	Methodology string   `json:"methodology"`
	Limitations string   `json:"limitations"`
	NextSteps   []string `json:"next_steps"`
}

// AnalysisResult is the typed form of one structured model response.
// It is rebuilt per request and never mutated after construction.
type AnalysisResult struct {
	Hypotheses    []Hypothesis   `json:"hypotheses"`
	SearchResults []SearchResult `json:"search_results"`
	Explanation   *Explanation   `json:"explanation,omitempty"`
	IsValid       bool           `json:"is_valid"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// HypothesisCount reports the number of parsed hypotheses.
func (r *AnalysisResult) HypothesisCount() int { return len(r.Hypotheses) }

// HighConfidenceCount reports how many hypotheses carry high confidence.
func (r *AnalysisResult) HighConfidenceCount() int {
	n := 0
	for _, h := range r.Hypotheses {
		if h.Confidence == LevelHigh {
			n++
		}
	}
	return n
}

// HasHypotheses reports whether any hypothesis was parsed.
func (r *AnalysisResult) HasHypotheses() bool { return len(r.Hypotheses) > 0 }

// HasSearchResults reports whether any search result was parsed.
func (r *AnalysisResult) HasSearchResults() bool { return len(r.SearchResults) > 0 }

// Parser turns raw structured output into an AnalysisResult.
type Parser struct {
	log *slog.Logger
}

// New creates a parser. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log}
}

// Parse converts a raw structured response into an AnalysisResult.
// It never fails hard: an empty payload yields an invalid result with an
// error message, and malformed list items are dropped while the rest of the
// payload is still parsed.
func (p *Parser) Parse(raw map[string]any) AnalysisResult {
	if len(raw) == 0 {
		return AnalysisResult{
			IsValid:      false,
			ErrorMessage: "empty response",
		}
	}

	result := AnalysisResult{IsValid: true}

	for i, item := range asSlice(raw["hypotheses"]) {
		h, ok := parseHypothesis(item)
		if !ok {
			p.log.Warn("skipping malformed hypothesis", "index", i)
			continue
		}
		result.Hypotheses = append(result.Hypotheses, h)
	}

	for i, item := range asSlice(raw["search_results"]) {
		r, ok := parseSearchResult(item)
		if !ok {
			p.log.Warn("skipping malformed search result", "index", i)
			continue
		}
		result.SearchResults = append(result.SearchResults, r)
	}

	if exp, ok := raw["explanation"].(map[string]any); ok && len(exp) > 0 {
		result.Explanation = &Explanation{
			Methodology: asString(exp["methodology"], ""),
			Limitations: asString(exp["limitations"], ""),
			NextSteps:   asStringSlice(exp["next_steps"]),
		}
	}

	return result
}

func parseHypothesis(item any) (Hypothesis, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return Hypothesis{}, false
	}
	return Hypothesis{
		Title:             asString(m["title"], "Untitled"),
		Confidence:        asLevel(m["confidence"]),
		Summary:           asString(m["summary"], ""),
		Evidence:          asStringSlice(m["evidence"]),
		VisualizationType: asVisualization(m["visualization_type"]),
	}, true
}

func parseSearchResult(item any) (SearchResult, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return SearchResult{}, false
	}
	return SearchResult{
		Source:    asString(m["source"], "Unknown"),
		Relevance: asLevel(m["relevance"]),
		Snippet:   asString(m["snippet"], ""),
		URL:       asString(m["url"], ""),
	}, true
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// asLevel maps a stated confidence/relevance onto the three-level scale.
// Absence of a stated level is read as low, never as favorable.
func asLevel(v any) string {
	switch v {
	case LevelHigh, LevelMedium, LevelLow:
		return v.(string)
	default:
		return LevelLow
	}
}

func asVisualization(v any) string {
	switch v {
	case VizChart, VizTable, VizText, VizNone:
		return v.(string)
	default:
		return VizNone
	}
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

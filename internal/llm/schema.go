package llm

// analystSystemPrompt steers the model toward structured, evidence-based
// analysis output submitted through the analysis tool.
const analystSystemPrompt = `You are an expert data analyst assistant. Your role is to:

1. Analyze data and generate hypotheses based on the information provided
2. Provide evidence-based insights with clear confidence levels
3. Be transparent about limitations and methodology
4. Suggest actionable next steps

Guidelines:
- Always cite specific evidence for your hypotheses
- Be conservative with confidence levels - use "high" only when strongly supported
- Consider alternative explanations
- Focus on actionable insights
- If data is insufficient, clearly state what additional information would help

You must respond using the provided analysis tool to structure your output.`

// SystemPrompt returns the default analyst system prompt.
func SystemPrompt() string { return analystSystemPrompt }

// outputSchema is the tool-use input schema the model must satisfy. This is
// the dispatch contract; the parser package holds the looser validation
// schema applied on the way back.
func outputSchema() map[string]any {
	levelEnum := []any{"high", "medium", "low"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hypotheses": map[string]any{
				"type":        "array",
				"description": "List of hypotheses generated from the analysis",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":      map[string]any{"type": "string", "description": "Brief title for the hypothesis"},
						"confidence": map[string]any{"type": "string", "enum": levelEnum, "description": "Confidence level in this hypothesis"},
						"summary":    map[string]any{"type": "string", "description": "Detailed summary of the hypothesis"},
						"evidence": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "List of evidence supporting this hypothesis",
						},
						"visualization_type": map[string]any{
							"type":        "string",
							"enum":        []any{"chart", "table", "text", "none"},
							"description": "Recommended visualization type",
						},
					},
					"required": []any{"title", "confidence", "summary", "evidence"},
				},
			},
			"search_results": map[string]any{
				"type":        "array",
				"description": "Relevant data sources or references",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source":    map[string]any{"type": "string", "description": "Name or identifier of the source"},
						"relevance": map[string]any{"type": "string", "enum": levelEnum, "description": "Relevance to the query"},
						"snippet":   map[string]any{"type": "string", "description": "Key excerpt or finding"},
						"url":       map[string]any{"type": "string", "description": "Optional URL or reference link"},
					},
					"required": []any{"source", "relevance", "snippet"},
				},
			},
			"explanation": map[string]any{
				"type":        "object",
				"description": "Explanation of the analysis methodology",
				"properties": map[string]any{
					"methodology": map[string]any{"type": "string", "description": "How the analysis was conducted"},
					"limitations": map[string]any{"type": "string", "description": "Known limitations of this analysis"},
					"next_steps": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Recommended follow-up actions",
					},
				},
				"required": []any{"methodology", "limitations", "next_steps"},
			},
		},
		"required": []any{"hypotheses", "explanation"},
	}
}

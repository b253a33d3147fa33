package template

// DefaultCatalog returns the built-in template set used when no catalog file
// is present. Covers the common analysis workflows so a fresh install is
// usable in constrained mode out of the box.
func DefaultCatalog() []*Template {
	return []*Template{
		{
			ID:          "trend-analysis",
			Name:        "Trend Analysis",
			Description: "Analyze trends in your data over a specified time period",
			Category:    "Analysis",
			Body:        "Analyze the trends in {dataset} data, focusing on {metric} over the past {time_period}. Identify any significant patterns, anomalies, or seasonal variations.",
			Variables: []Variable{
				{Name: "dataset", Label: "Dataset Name", Type: TypeText, Required: true, HelpText: "Name or description of your dataset"},
				{Name: "metric", Label: "Key Metric", Type: TypeText, Required: true, HelpText: "The primary metric to analyze"},
				{Name: "time_period", Label: "Time Period", Type: TypeSelect, Required: true, Choices: []string{"last 7 days", "last 30 days", "last quarter", "last year"}},
			},
			Active: true,
		},
		{
			ID:          "comparative-analysis",
			Name:        "Comparative Analysis",
			Description: "Compare two groups or segments within your data",
			Category:    "Analysis",
			Body:        "Compare {group_a} against {group_b} based on {comparison_metrics}. Highlight key differences, similarities, and provide statistical significance where applicable.",
			Variables: []Variable{
				{Name: "group_a", Label: "First Group", Type: TypeText, Required: true},
				{Name: "group_b", Label: "Second Group", Type: TypeText, Required: true},
				{Name: "comparison_metrics", Label: "Metrics to Compare", Type: TypeTextarea, Required: true, HelpText: "List the metrics or dimensions to compare"},
			},
			Active: true,
		},
		{
			ID:          "anomaly-detection",
			Name:        "Anomaly Detection",
			Description: "Identify unusual patterns or outliers in your data",
			Category:    "Analysis",
			Body:        "Analyze {dataset} for anomalies and outliers in {target_variables}. Flag any data points that deviate significantly from expected patterns and suggest potential causes.",
			Variables: []Variable{
				{Name: "dataset", Label: "Dataset Description", Type: TypeText, Required: true},
				{Name: "target_variables", Label: "Variables to Analyze", Type: TypeTextarea, Required: true, HelpText: "Which variables should be checked for anomalies?"},
			},
			Active: true,
		},
		{
			ID:          "kpi-summary",
			Name:        "KPI Dashboard Summary",
			Description: "Generate a summary of key performance indicators",
			Category:    "Reporting",
			Body:        "Generate an executive summary of the following KPIs for {business_unit}: {kpi_list}. Include current values, trends, and recommendations for improvement.",
			Variables: []Variable{
				{Name: "business_unit", Label: "Business Unit", Type: TypeText, Required: true},
				{Name: "kpi_list", Label: "KPIs", Type: TypeTextarea, Required: true, HelpText: "List the KPIs to summarize"},
			},
			Active: true,
		},
		{
			ID:          "correlation-analysis",
			Name:        "Correlation Analysis",
			Description: "Find relationships between different variables",
			Category:    "Analysis",
			Body:        "Analyze the correlation between {variable_x} and {variable_y} in the context of {context}. Determine if there is a significant relationship and explain potential causal mechanisms.",
			Variables: []Variable{
				{Name: "variable_x", Label: "First Variable", Type: TypeText, Required: true},
				{Name: "variable_y", Label: "Second Variable", Type: TypeText, Required: true},
				{Name: "context", Label: "Business Context", Type: TypeTextarea, Required: true, HelpText: "Describe the business context for this analysis"},
			},
			Active: true,
		},
		{
			ID:          "forecast-request",
			Name:        "Forecast Request",
			Description: "Request predictions based on historical data",
			Category:    "Forecasting",
			Body:        "Based on historical {metric} data, provide a forecast for the next {forecast_period}. Consider any known factors such as {external_factors} that might influence the forecast.",
			Variables: []Variable{
				{Name: "metric", Label: "Metric to Forecast", Type: TypeText, Required: true},
				{Name: "forecast_period", Label: "Forecast Period", Type: TypeSelect, Required: true, Choices: []string{"1 week", "1 month", "1 quarter", "6 months", "1 year"}},
				{Name: "external_factors", Label: "External Factors", Type: TypeTextarea, Required: false, HelpText: "Any known external factors that might affect the forecast"},
			},
			Active: true,
		},
		{
			ID:          "data-quality",
			Name:        "Data Quality Assessment",
			Description: "Evaluate the quality and completeness of your data",
			Category:    "Data Quality",
			Body:        "Assess the quality of {dataset} data, focusing on: completeness, accuracy, consistency, and timeliness. Identify any data quality issues and recommend remediation steps.",
			Variables: []Variable{
				{Name: "dataset", Label: "Dataset Description", Type: TypeTextarea, Required: true, HelpText: "Describe the dataset and its structure"},
			},
			Active: true,
		},
		{
			ID:          "root-cause",
			Name:        "Root Cause Analysis",
			Description: "Investigate the underlying causes of an observed issue",
			Category:    "Investigation",
			Body:        "Perform a root cause analysis for the following issue: {issue_description}. The issue was observed in {affected_area} starting around {start_time}. Provide a hypothesis tree and recommended investigation steps.",
			Variables: []Variable{
				{Name: "issue_description", Label: "Issue Description", Type: TypeTextarea, Required: true},
				{Name: "affected_area", Label: "Affected Area", Type: TypeText, Required: true},
				{Name: "start_time", Label: "When Issue Started", Type: TypeText, Required: true, HelpText: "Approximate time the issue was first noticed"},
			},
			Active: true,
		},
	}
}

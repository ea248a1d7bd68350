package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// UsageReport represents aggregated token and cost metrics.
type UsageReport struct {
	Model        string  `json:"model,omitempty"`
	Runs         int64   `json:"runs"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost_usd"`
}

// QueryService provides methods to query recorded metrics from Prometheus.
type QueryService struct {
	client    api.Client
	queryAPI  v1.API
	namespace string
}

// NewQueryService creates a metrics query service against a Prometheus
// server scraping this process.
func NewQueryService(prometheusURL, namespace string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:    client,
		queryAPI:  v1.NewAPI(client),
		namespace: namespace,
	}, nil
}

// GetUsage retrieves aggregated token and cost metrics. A positive window
// restricts the report to the given trailing duration; zero reports
// all-time counter totals.
func (q *QueryService) GetUsage(ctx context.Context, window time.Duration) (*UsageReport, error) {
	report := &UsageReport{}

	runs, err := q.scalar(ctx, q.sumQuery(q.namespace+"_runs_total", "", window))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	report.Runs = int64(runs)

	input, err := q.scalar(ctx, q.sumQuery(q.namespace+"_tokens_total", `type="input"`, window))
	if err != nil {
		return nil, fmt.Errorf("failed to query input tokens: %w", err)
	}
	report.InputTokens = int64(input)

	output, err := q.scalar(ctx, q.sumQuery(q.namespace+"_tokens_total", `type="output"`, window))
	if err != nil {
		return nil, fmt.Errorf("failed to query output tokens: %w", err)
	}
	report.OutputTokens = int64(output)

	report.TotalTokens = report.InputTokens + report.OutputTokens

	cost, err := q.scalar(ctx, q.sumQuery(q.namespace+"_costs_usd_total", "", window))
	if err != nil {
		return nil, fmt.Errorf("failed to query total cost: %w", err)
	}
	report.TotalCost = cost

	return report, nil
}

// GetUsageByModel retrieves usage broken down by model.
func (q *QueryService) GetUsageByModel(ctx context.Context, window time.Duration) (map[string]*UsageReport, error) {
	result := make(map[string]*UsageReport)

	modelsQuery := fmt.Sprintf(`group by (model) (%s_tokens_total)`, q.namespace)
	modelsResult, _, err := q.queryAPI.Query(ctx, modelsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	var models []string
	if vector, ok := modelsResult.(model.Vector); ok {
		for _, sample := range vector {
			if modelName, ok := sample.Metric["model"]; ok {
				models = append(models, string(modelName))
			}
		}
	}

	for _, modelName := range models {
		report := &UsageReport{Model: modelName}

		input, err := q.scalar(ctx, q.sumQuery(q.namespace+"_tokens_total",
			fmt.Sprintf(`model=%q, type="input"`, modelName), window))
		if err != nil {
			return nil, fmt.Errorf("failed to query input tokens for model %s: %w", modelName, err)
		}
		report.InputTokens = int64(input)

		output, err := q.scalar(ctx, q.sumQuery(q.namespace+"_tokens_total",
			fmt.Sprintf(`model=%q, type="output"`, modelName), window))
		if err != nil {
			return nil, fmt.Errorf("failed to query output tokens for model %s: %w", modelName, err)
		}
		report.OutputTokens = int64(output)

		report.TotalTokens = report.InputTokens + report.OutputTokens

		cost, err := q.scalar(ctx, q.sumQuery(q.namespace+"_costs_usd_total",
			fmt.Sprintf(`model=%q`, modelName), window))
		if err != nil {
			return nil, fmt.Errorf("failed to query cost for model %s: %w", modelName, err)
		}
		report.TotalCost = cost

		result[modelName] = report
	}

	return result, nil
}

// sumQuery builds a PromQL sum over a counter, optionally windowed with
// increase().
func (q *QueryService) sumQuery(metric, selector string, window time.Duration) string {
	series := metric
	if selector != "" {
		series = fmt.Sprintf("%s{%s}", metric, selector)
	}
	if window > 0 {
		return fmt.Sprintf("sum(increase(%s[%s]))", series, model.Duration(window).String())
	}
	return fmt.Sprintf("sum(%s)", series)
}

// scalar runs an instant query and returns the first vector sample, or zero
// when the series does not exist yet.
func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}

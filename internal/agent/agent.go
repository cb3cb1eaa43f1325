package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Agent is the standard Executor: plan, then run each planned tool.
type Agent struct {
	planner Planner
	tools   *Toolbox
	logger  *zap.Logger
}

// NewAgent assembles an agent from its parts.
func NewAgent(planner Planner, tools *Toolbox, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{planner: planner, tools: tools, logger: logger}
}

// New builds the agent selected by cfg.Agent.Mode.
func New(cfg *config.Config, logger *zap.Logger) (*Agent, error) {
	switch cfg.Agent.Mode {
	case config.AgentModeOffline:
		return NewOffline(logger), nil
	case config.AgentModeLLM:
		llm, err := NewLLM(cfg.Agent)
		if err != nil {
			return nil, err
		}
		search, err := NewTavilySearch(cfg.Search)
		if err != nil {
			return nil, err
		}
		return NewAgent(NewLLMPlanner(llm), NewToolbox(search, NewLLMWriter(llm)), logger), nil
	default:
		return nil, fmt.Errorf("unknown agent mode %q", cfg.Agent.Mode)
	}
}

// NewOffline returns an agent that needs no network.
func NewOffline(logger *zap.Logger) *Agent {
	return NewAgent(OfflinePlanner{}, NewToolbox(CannedSearch{}, OfflineWriter{}), logger)
}

// Execute implements Executor. Tools run in plan order. Sentiment is
// skipped while no news has been collected. The utilization signal
// reflects the collected outputs at the first report call, so data
// gathered afterwards counts as unused.
func (a *Agent) Execute(ctx context.Context, req Request) (*Result, error) {
	plan, err := a.planner.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("plan decided",
		zap.Int("run.number", req.RunNumber),
		zap.Strings("plan", policy.Trace(plan).Strings()),
	)

	collected := make(map[policy.Tool]string)
	result := &Result{ToolsCalled: []string{}, Outputs: map[string]string{}}

	for _, tool := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var out string
		switch tool {
		case policy.ToolOverview, policy.ToolPrice, policy.ToolNews, policy.ToolMetrics:
			out, err = a.tools.Research(ctx, tool, req.Query)
		case policy.ToolSentiment:
			news, ok := collected[policy.ToolNews]
			if !ok {
				a.logger.Debug("sentiment skipped, no news collected", zap.Int("run.number", req.RunNumber))
				continue
			}
			out, err = a.tools.Sentiment(ctx, news)
		case policy.ToolReport:
			out, err = a.tools.Report(ctx, req.Query, collected)
			if err == nil && result.Utilization == nil {
				result.Utilization = Utilized(collected)
				result.ReportText = out
			}
		default:
			continue
		}
		if err != nil {
			return nil, err
		}

		collected[tool] = out
		result.Outputs[tool.Label()] = out
		result.ToolsCalled = append(result.ToolsCalled, string(tool))
		a.logger.Debug("tool called", zap.Int("run.number", req.RunNumber), zap.String("tool", string(tool)))
	}

	return result, nil
}

var _ Executor = (*Agent)(nil)

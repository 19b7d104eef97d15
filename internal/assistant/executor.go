package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/deltapoly/assistant/internal/providers/llm"
	"github.com/sirupsen/logrus"
)

// FunctionResult is the transient outcome of one tool call, keyed by name
// and position within the batch. Folded into the follow-up generation turn
// and then discarded.
type FunctionResult struct {
	Name    string
	Index   int
	Success bool
	Data    map[string]any
	Error   string
}

// Executor runs a batch of tool calls against domain state.
type Executor interface {
	ExecuteAll(ctx context.Context, calls []llm.FunctionCall, cc CallContext) []FunctionResult
	Schemas() []llm.ToolSchema
}

type ToolExecutor struct {
	tools map[string]Tool
	order []llm.ToolSchema
	log   *logrus.Logger
}

func NewToolExecutor(tools []Tool, log *logrus.Logger) *ToolExecutor {
	m := make(map[string]Tool, len(tools))
	schemas := make([]llm.ToolSchema, 0, len(tools))
	for _, t := range tools {
		m[t.Schema.Name] = t
		schemas = append(schemas, t.Schema)
	}
	return &ToolExecutor{tools: m, order: schemas, log: log}
}

func (e *ToolExecutor) Schemas() []llm.ToolSchema { return e.order }

// ExecuteAll fans the batch out concurrently and waits for every call to
// finish or fail. Results keep the batch order regardless of completion
// order; one failing tool never aborts its siblings.
func (e *ToolExecutor) ExecuteAll(ctx context.Context, calls []llm.FunctionCall, cc CallContext) []FunctionResult {
	results := make([]FunctionResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.FunctionCall) {
			defer wg.Done()
			results[i] = e.runOne(ctx, i, call, cc)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (e *ToolExecutor) runOne(ctx context.Context, index int, call llm.FunctionCall, cc CallContext) FunctionResult {
	res := FunctionResult{Name: call.Name, Index: index}

	tool, ok := e.tools[call.Name]
	if !ok {
		res.Error = "unknown function: " + call.Name
		return res
	}

	start := time.Now()
	data, err := tool.Run(ctx, call.Args, cc)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tool":       call.Name,
			"session":    cc.SessionKey,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Warn("tool execution failed")
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Data = data
	return res
}

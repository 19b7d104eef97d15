package llm

import "context"

type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// FunctionCall is a tool invocation requested by the model mid-stream.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// FunctionResponse feeds one tool result back for a follow-up turn.
type FunctionResponse struct {
	Name     string
	Response map[string]any
}

// Turn is one entry of the generation history.
type Turn struct {
	Role      Role
	Text      string
	Calls     []FunctionCall
	Responses []FunctionResponse
}

// Event is one streamed generation event: an incremental text fragment,
// zero or more function calls, or a terminal finish reason.
type Event struct {
	Text         string
	Calls        []FunctionCall
	FinishReason string
}

// Property is a provider-neutral parameter schema node.
type Property struct {
	Type        string // "string" | "number" | "integer" | "boolean" | "array"
	Description string
	Enum        []string
	Items       *Property
}

// ToolSchema declares one callable tool to the generation backend.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// Streamer is the narrow generation capability the orchestrator depends on.
// Both channels are closed when the stream ends; errs carries at most one
// error. Cancelling ctx releases the backend stream.
type Streamer interface {
	Stream(ctx context.Context, system string, history []Turn, tools []ToolSchema) (events <-chan Event, errs <-chan error)
	Close() error
}

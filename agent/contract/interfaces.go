package contract

import "context"

// Completer is the opaque language-model completion service. Given a
// transcript and the tools available to this call, it returns either
// final text or tool call requests.
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Completion, error)
}

// CustomerDirectory resolves a structural identifier candidate (numeric
// id, email, or phone) to a customer id. Returns ErrCustomerNotFound
// when no customer matches.
type CustomerDirectory interface {
	FindCustomer(ctx context.Context, candidate string) (int64, error)
}

// MemoryStore is the long-term personalization profile store.
// Load never fails a turn for a missing profile; it returns a zero
// value instead. Merge must be idempotent and commutative on set
// fields so crash-retry re-application is safe.
type MemoryStore interface {
	Load(ctx context.Context, customerID int64) (UserMemory, error)
	Merge(ctx context.Context, customerID int64, delta MemoryDelta) error
}

// PromptStore serves named prompt texts. Prompts are fetched at
// node-entry time so operators can edit them live without redeploying.
type PromptStore interface {
	Get(ctx context.Context, name string) (string, error)
}

// ToolGateway executes one tool call scoped to a sub-agent tag against
// the external data services. Execution failures are folded into
// ToolResult.Error, never returned as errors, so the model can retry
// or apologize in-turn.
type ToolGateway interface {
	Execute(ctx context.Context, tag SubagentTag, customerID int64, call ToolCall) ToolResult
	Specs(tag SubagentTag) []ToolSpec
}

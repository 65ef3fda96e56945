package nodes

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	statex "github.com/soundvault/support-agent/agent/state"
)

// Subagents runs one delegated sub-agent turn against the thread state.
// It reports the reply text and how many budget steps the run consumed.
type Subagents interface {
	Invoke(ctx context.Context, tag contractx.SubagentTag, st *statex.Conversation, budget int) (reply string, used int, err error)
}

// InvokeSubagent executes the route the supervisor committed to,
// charges the step budget, and hands control back to the supervisor.
func InvokeSubagent(
	ctx context.Context,
	st *statex.Conversation,
	shell Subagents,
	now func() time.Time,
) (enginex.Directive, error) {
	tag := st.PendingRoute
	if !contractx.IsValidTag(tag) {
		return enginex.Directive{}, fmt.Errorf("%w: no pending route for thread %s", contractx.ErrValidation, st.ThreadID)
	}
	if !st.Verified() {
		return enginex.Directive{}, fmt.Errorf("%w: subagent %s invoked on unverified thread %s", contractx.ErrUnverifiedRoute, tag, st.ThreadID)
	}

	reply, used, err := shell.Invoke(ctx, tag, st, st.RemainingSteps)
	if err != nil {
		return enginex.Directive{}, err
	}

	// A delegation always costs at least one step, even when the
	// sub-agent answered without calling tools. Otherwise a model that
	// keeps delegating could spin the supervise loop forever.
	if used < 1 {
		used = 1
	}
	st.RemainingSteps -= used
	st.PendingRoute = ""
	st.Append(contractx.Message{
		Role:    contractx.RoleAgent,
		Name:    string(tag),
		Content: reply,
		At:      now(),
	})
	return enginex.Goto(NodeSupervise), nil
}

package nodes

import (
	"context"
	"time"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	statex "github.com/soundvault/support-agent/agent/state"
)

const budgetExhaustedReply = "I've done as much digging as I can this turn. " +
	"Here's what I have so far - feel free to ask a follow-up and I'll continue."

// Supervise is the control node: it routes the conversation to a
// sub-agent, answers directly, or closes the turn toward memory
// write-back. A drained step budget downgrades delegation to a
// degraded reply so the supervise loop always terminates.
func Supervise(
	ctx context.Context,
	st *statex.Conversation,
	completer contractx.Completer,
	prompts contractx.PromptStore,
	now func() time.Time,
) (enginex.Directive, error) {
	decision, err := Route(ctx, st, completer, prompts)
	if err != nil {
		return enginex.Directive{}, err
	}

	switch decision.Action {
	case contractx.ActionDelegate:
		if st.RemainingSteps <= 0 {
			st.AppendAgent(budgetExhaustedReply, now())
			return enginex.Goto(NodeCreateMemory), nil
		}
		st.PendingRoute = decision.Tag
		return enginex.Goto(NodeInvokeSubagent), nil

	case contractx.ActionRespond:
		st.AppendAgent(decision.Reply, now())
		return enginex.Goto(NodeCreateMemory), nil

	default: // ActionDone
		if decision.Reply != "" {
			st.AppendAgent(decision.Reply, now())
		}
		return enginex.Goto(NodeCreateMemory), nil
	}
}

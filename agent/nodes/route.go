package nodes

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/soundvault/support-agent/agent/contract"
	memoryx "github.com/soundvault/support-agent/agent/memory"
	promptx "github.com/soundvault/support-agent/agent/prompt"
	statex "github.com/soundvault/support-agent/agent/state"
)

type routeLLMOutput struct {
	Action string             `json:"action"`
	Scores map[string]float64 `json:"scores,omitempty"`
	Reply  string             `json:"reply,omitempty"`
}

// Route asks the completion service to classify the conversation and
// resolves the answer into a routing decision. Delegation is refused
// outright for unverified threads, independently of the verification
// gate upstream.
func Route(
	ctx context.Context,
	st *statex.Conversation,
	completer contractx.Completer,
	prompts contractx.PromptStore,
) (contractx.RouteDecision, error) {
	system, err := prompts.Get(ctx, promptx.NameSupervisor)
	if err != nil {
		return contractx.RouteDecision{}, err
	}
	if summary := memoryx.Format(st.UserMemory); summary != "" {
		system += "\n\nCustomer profile:\n" + summary
	}

	completion, err := completer.Complete(ctx, withSystem(system, st), nil)
	if err != nil {
		return contractx.RouteDecision{}, fmt.Errorf("%w: supervisor classification: %v", contractx.ErrModelInvoke, err)
	}

	var out routeLLMOutput
	if err := decodeModelJSON(completion.Text, &out); err != nil {
		return contractx.RouteDecision{}, err
	}

	reply := strings.TrimSpace(out.Reply)
	switch contractx.RouteAction(strings.TrimSpace(out.Action)) {
	case contractx.ActionDelegate:
		if !st.Verified() {
			return contractx.RouteDecision{}, contractx.ErrUnverifiedRoute
		}
		tag, ok := pickTag(out.Scores)
		if !ok {
			return contractx.RouteDecision{}, fmt.Errorf("%w: delegate without usable scores", contractx.ErrSchemaViolation)
		}
		return contractx.RouteDecision{Action: contractx.ActionDelegate, Tag: tag}, nil

	case contractx.ActionRespond:
		if reply == "" {
			return contractx.RouteDecision{}, fmt.Errorf("%w: respond without reply text", contractx.ErrSchemaViolation)
		}
		return contractx.RouteDecision{Action: contractx.ActionRespond, Reply: reply}, nil

	case contractx.ActionDone:
		return contractx.RouteDecision{Action: contractx.ActionDone, Reply: reply}, nil

	default:
		return contractx.RouteDecision{}, fmt.Errorf("%w: unknown action %q", contractx.ErrSchemaViolation, out.Action)
	}
}

// pickTag selects exactly one sub-agent: highest score wins, and equal
// scores resolve by the fixed priority order (invoice, music, concert)
// because earlier tags are visited first and only a strictly greater
// score displaces the pick.
func pickTag(scores map[string]float64) (contractx.SubagentTag, bool) {
	var (
		best      contractx.SubagentTag
		bestScore float64
		found     bool
	)
	for _, tag := range contractx.RoutePriority {
		score, ok := scores[string(tag)]
		if !ok || score <= 0 {
			continue
		}
		if !found || score > bestScore {
			best = tag
			bestScore = score
			found = true
		}
	}
	return best, found
}

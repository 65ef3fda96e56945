package nodes

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	memoryx "github.com/soundvault/support-agent/agent/memory"
	promptx "github.com/soundvault/support-agent/agent/prompt"
	statex "github.com/soundvault/support-agent/agent/state"
)

// CreateMemory closes the turn by extracting a preference delta from
// the transcript and merging it into the customer's durable profile.
// Extraction failures degrade to a no-op; a failed merge propagates so
// the node can be retried, and the merge itself is idempotent under
// retry.
func CreateMemory(
	ctx context.Context,
	st *statex.Conversation,
	completer contractx.Completer,
	prompts contractx.PromptStore,
	profiles contractx.MemoryStore,
) (enginex.Directive, error) {
	if !st.Verified() {
		return enginex.End(), nil
	}

	delta, ok := extractDelta(ctx, st, completer, prompts)
	if !ok || delta.IsZero() {
		return enginex.End(), nil
	}

	if err := profiles.Merge(ctx, st.CustomerID, delta); err != nil {
		return enginex.Directive{}, err
	}
	st.UserMemory = memoryx.Apply(st.UserMemory, delta)
	return enginex.End(), nil
}

// extractDelta asks the completion service for a profile delta. Any
// failure is logged and reported as absence: memory write-back is best
// effort and must never lose the turn's reply.
func extractDelta(
	ctx context.Context,
	st *statex.Conversation,
	completer contractx.Completer,
	prompts contractx.PromptStore,
) (contractx.MemoryDelta, bool) {
	system, err := prompts.Get(ctx, promptx.NameCreateMemory)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("memory prompt unavailable, skipping write-back")
		return contractx.MemoryDelta{}, false
	}
	if summary := memoryx.Format(st.UserMemory); summary != "" {
		system += "\n\nCurrent profile:\n" + summary
	}

	completion, err := completer.Complete(ctx, withSystem(system, st), nil)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("memory extraction failed, skipping write-back")
		return contractx.MemoryDelta{}, false
	}

	var delta contractx.MemoryDelta
	if err := decodeModelJSON(completion.Text, &delta); err != nil {
		log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("memory extraction returned malformed delta, skipping write-back")
		return contractx.MemoryDelta{}, false
	}
	return delta, true
}

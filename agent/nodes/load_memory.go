package nodes

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	statex "github.com/soundvault/support-agent/agent/state"
)

// LoadMemory hydrates the thread with the customer's long-term profile.
// An absent or unreadable profile degrades to a zero value; it never
// fails the turn.
func LoadMemory(
	ctx context.Context,
	st *statex.Conversation,
	profiles contractx.MemoryStore,
) (enginex.Directive, error) {
	profile, err := profiles.Load(ctx, st.CustomerID)
	if err != nil {
		log.Warn().Err(err).Int64("customer_id", st.CustomerID).Msg("memory load failed, continuing without profile")
		profile = contractx.UserMemory{}
	}
	st.UserMemory = profile
	return enginex.Goto(NodeSupervise), nil
}

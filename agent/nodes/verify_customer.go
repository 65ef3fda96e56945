package nodes

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/soundvault/support-agent/agent/contract"
	enginex "github.com/soundvault/support-agent/agent/engine"
	statex "github.com/soundvault/support-agent/agent/state"
)

const (
	// VerifyPrompt is the fixed suspension prompt of the gate.
	VerifyPrompt = "Before I can help you, I need to verify your identity. " +
		"Could you share your customer ID, the email address on your account, or your phone number?"

	verifyRetryPrompt = "I couldn't find an account matching that. " +
		"Could you double-check your customer ID, email, or phone number?"

	verifyTransientPrompt = "I'm having trouble reaching our account system right now. " +
		"Could you share your customer ID, email, or phone number once more?"

	verifyExhaustedReply = "I'm sorry, I wasn't able to verify your identity, so I can't help " +
		"with account questions today. Please contact support@soundvault.example for assistance."
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d().-]{7,}$`)
)

// ExtractIdentifier scans free text for a customer identifier
// candidate. Policy: numeric ID first, then email, then phone; first
// structural match wins. Tokens are tried whole, so the digit groups
// inside a phone number never masquerade as a numeric ID.
func ExtractIdentifier(text string) (string, bool) {
	tokens := strings.Fields(text)
	trimmed := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		trimmed = append(trimmed, strings.Trim(tok, ".,!?;:'\""))
	}

	for _, tok := range trimmed {
		if tok != "" && isAllDigits(tok) {
			return tok, true
		}
	}
	for _, tok := range trimmed {
		if emailPattern.MatchString(tok) {
			return tok, true
		}
	}
	for _, tok := range trimmed {
		if strings.IndexFunc(tok, isDigit) >= 0 && phonePattern.MatchString(tok) {
			return tok, true
		}
	}
	return "", false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// VerifyCustomer is the identity gate. It passes verified threads
// through untouched, resolves a fresh identifier candidate against the
// customer directory, and suspends the turn for human input otherwise.
// maxAttempts > 0 adds the defensive retry limit; 0 means loop forever.
func VerifyCustomer(
	ctx context.Context,
	st *statex.Conversation,
	directory contractx.CustomerDirectory,
	maxAttempts int,
	now func() time.Time,
) (enginex.Directive, error) {
	if st.Verified() {
		return enginex.Goto(NodeLoadMemory), nil
	}

	last, ok := st.LastUserMessage()
	if ok {
		if candidate, found := ExtractIdentifier(last); found {
			id, err := directory.FindCustomer(ctx, candidate)
			switch {
			case err == nil:
				st.CustomerID = id
				return enginex.Goto(NodeLoadMemory), nil
			case errors.Is(err, contractx.ErrCustomerNotFound):
				// fall through to the reprompt below
			default:
				// Directory unreachable: keep the turn alive and ask
				// again rather than failing the conversation.
				log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("customer lookup failed")
				return enginex.SuspendWith(verifyTransientPrompt), nil
			}
		}
	}

	st.VerifyAttempts++
	if maxAttempts > 0 && st.VerifyAttempts >= maxAttempts {
		st.AppendAgent(verifyExhaustedReply, now())
		return enginex.End(), nil
	}

	if st.VerifyAttempts > 1 {
		return enginex.SuspendWith(verifyRetryPrompt), nil
	}
	return enginex.SuspendWith(VerifyPrompt), nil
}

// HumanInput is the resume entry point. The engine injects the human's
// text as the latest user message before re-entering here; the node
// only hands control back to the gate.
func HumanInput(ctx context.Context, st *statex.Conversation) (enginex.Directive, error) {
	return enginex.Goto(NodeVerifyCustomer), nil
}
